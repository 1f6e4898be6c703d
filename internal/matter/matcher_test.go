// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package matter

import (
	"context"
	"fmt"
	"testing"

	"github.com/anaislegal/intake/internal/models"
)

// fakeRegistry maps search tokens to scripted results.
type fakeRegistry struct {
	results map[string][]models.CaseRecord
	err     error
	queries []string
}

func (f *fakeRegistry) SearchCases(ctx context.Context, token string) ([]models.CaseRecord, error) {
	f.queries = append(f.queries, token)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[token], nil
}

func email(subject, body string) *models.EmailRecord {
	return &models.EmailRecord{Subject: subject, Body: body}
}

// TestMatch_ExactIndexNumber verifies the straightforward docket-number case.
func TestMatch_ExactIndexNumber(t *testing.T) {
	reg := &fakeRegistry{results: map[string][]models.CaseRecord{
		"2024-974": {{CaseID: "case-1", DisplayName: "Martinez v. ABC Corp", StoredIdentifier: "2024-974"}},
	}}
	m := NewMatcher(reg)

	match := m.Match(context.Background(), email("Index No. 2024-974 - Discovery", "See demands."))
	if match.MatterID != "case-1" {
		t.Errorf("matter_id = %q, want case-1", match.MatterID)
	}
	if match.Confidence != models.MatchExact {
		t.Errorf("confidence = %q, want exact", match.Confidence)
	}
}

// TestMatch_CaptionFromSubject verifies the Martinez scenario: a "v." caption
// in the subject resolves to the matching case.
func TestMatch_CaptionFromSubject(t *testing.T) {
	reg := &fakeRegistry{results: map[string][]models.CaseRecord{
		"Martinez v. ABC Corp": {{CaseID: "case-martinez", DisplayName: "Martinez v. ABC Corp", StoredIdentifier: "2024-974"}},
	}}
	m := NewMatcher(reg)

	match := m.Match(context.Background(), email("Fw: Martinez v. ABC Corp - Discovery Demands", "One request inside."))
	if match.MatterID != "case-martinez" {
		t.Errorf("matter_id = %q, want case-martinez", match.MatterID)
	}
	if match.Confidence != models.MatchExact {
		t.Errorf("confidence = %q, want exact", match.Confidence)
	}
}

// TestMatch_SubjectBeatsBody verifies subject tokens are tried before body
// tokens.
func TestMatch_SubjectBeatsBody(t *testing.T) {
	reg := &fakeRegistry{results: map[string][]models.CaseRecord{
		"2024-111": {{CaseID: "subject-case", StoredIdentifier: "2024-111"}},
		"2024-222": {{CaseID: "body-case", StoredIdentifier: "2024-222"}},
	}}
	m := NewMatcher(reg)

	match := m.Match(context.Background(), email("Re: 2024-111", "This also mentions 2024-222."))
	if match.MatterID != "subject-case" {
		t.Errorf("matter_id = %q, want subject-case", match.MatterID)
	}
	if len(reg.queries) == 0 || reg.queries[0] != "2024-111" {
		t.Errorf("first query = %v, want 2024-111", reg.queries)
	}
}

// TestMatch_FuzzyFallback verifies a normalized comparison when no exact
// identifier matches.
func TestMatch_FuzzyFallback(t *testing.T) {
	reg := &fakeRegistry{results: map[string][]models.CaseRecord{
		"123456/2024": {{CaseID: "case-2", StoredIdentifier: "123456 / 2024"}},
	}}
	m := NewMatcher(reg)

	match := m.Match(context.Background(), email("Filing 123456/2024", ""))
	if match.MatterID != "case-2" {
		t.Errorf("matter_id = %q, want case-2", match.MatterID)
	}
	if match.Confidence != models.MatchFuzzy {
		t.Errorf("confidence = %q, want fuzzy", match.Confidence)
	}
}

// TestMatch_AmbiguityDeclines verifies ambiguous results yield no match
// rather than a guess.
func TestMatch_AmbiguityDeclines(t *testing.T) {
	reg := &fakeRegistry{results: map[string][]models.CaseRecord{
		"2024-974": {
			{CaseID: "case-1", StoredIdentifier: "2024-974"},
			{CaseID: "case-2", StoredIdentifier: "2024-974"},
		},
	}}
	m := NewMatcher(reg)

	match := m.Match(context.Background(), email("Re: 2024-974", ""))
	if match.MatterID != "" {
		t.Errorf("matter_id = %q, want empty on ambiguity", match.MatterID)
	}
	if match.Confidence != models.MatchNone {
		t.Errorf("confidence = %q, want none", match.Confidence)
	}
}

// TestMatch_NoTokens verifies emails without case-shaped tokens return no
// match without querying the registry.
func TestMatch_NoTokens(t *testing.T) {
	reg := &fakeRegistry{}
	m := NewMatcher(reg)

	match := m.Match(context.Background(), email("lunch on friday?", "no case references here"))
	if match.Confidence != models.MatchNone {
		t.Errorf("confidence = %q, want none", match.Confidence)
	}
	if len(reg.queries) != 0 {
		t.Errorf("registry queried %d times, want 0", len(reg.queries))
	}
}

// TestMatch_RegistryErrorIsNotFatal verifies a registry failure degrades to
// no match instead of failing the pipeline.
func TestMatch_RegistryErrorIsNotFatal(t *testing.T) {
	reg := &fakeRegistry{err: fmt.Errorf("registry down")}
	m := NewMatcher(reg)

	match := m.Match(context.Background(), email("Re: 2024-974", ""))
	if match.Confidence != models.MatchNone {
		t.Errorf("confidence = %q, want none", match.Confidence)
	}
}
