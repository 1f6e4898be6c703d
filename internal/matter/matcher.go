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

// Package matter links an email to a legal case record. Candidate tokens are
// pulled from the subject and body (docket numbers first, then "X v. Y"
// captions) and looked up in the case registry. When tie-breaking leaves any
// ambiguity the matcher returns no match rather than guessing. Absence of a
// match is a normal outcome, never an error.
package matter

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/anaislegal/intake/internal/models"
)

// Registry is the case registry search capability.
type Registry interface {
	SearchCases(ctx context.Context, token string) ([]models.CaseRecord, error)
}

var (
	// Docket/index numbers: "2024-974", "123456/2024".
	indexNumberRe = regexp.MustCompile(`\b\d{4}-\d{1,6}\b|\b\d{1,6}/\d{4}\b`)

	// Case captions: "Martinez v. ABC Corp", "Walker v Metro Ten Hotel".
	captionRe = regexp.MustCompile(`\b([A-Z][\w'.&-]*(?: [A-Z][\w'.&-]*)*) v\.? ([A-Z][\w'.&-]*(?: [A-Z][\w'.&-]*)*)`)

	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Matcher resolves emails to matters via the registry.
type Matcher struct {
	registry Registry
}

// NewMatcher creates a matcher backed by the given registry.
func NewMatcher(registry Registry) *Matcher {
	return &Matcher{registry: registry}
}

// Match returns the best matter for an email, or a no-match result.
// Subject tokens outrank body tokens; within one source, index numbers
// outrank captions; exact registry matches outrank fuzzy ones.
func (m *Matcher) Match(ctx context.Context, rec *models.EmailRecord) models.MatterMatch {
	for _, token := range candidateTokens(rec.Subject, rec.Body) {
		records, err := m.registry.SearchCases(ctx, token)
		if err != nil {
			slog.Warn("case registry search failed", "token", token, "error", err)
			continue
		}
		if match, ok := resolve(token, records); ok {
			return match
		}
	}
	return models.MatterMatch{Confidence: models.MatchNone}
}

// candidateTokens lists lookup tokens in tie-break order, deduplicated.
func candidateTokens(subject, body string) []string {
	var tokens []string
	seen := make(map[string]bool)

	add := func(t string) {
		t = strings.TrimSpace(t)
		if t != "" && !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}

	for _, source := range []string{subject, body} {
		for _, t := range indexNumberRe.FindAllString(source, -1) {
			add(t)
		}
		for _, t := range captionRe.FindAllString(source, -1) {
			add(t)
		}
	}

	return tokens
}

// resolve applies the exact-over-fuzzy tie-break to one token's search
// results. A token that remains ambiguous yields no match and the caller
// moves on to the next token.
func resolve(token string, records []models.CaseRecord) (models.MatterMatch, bool) {
	var exact, fuzzy []models.CaseRecord
	norm := normalize(token)

	for _, r := range records {
		switch {
		case r.StoredIdentifier == token || r.DisplayName == token:
			exact = append(exact, r)
		case normalize(r.StoredIdentifier) == norm || normalize(r.DisplayName) == norm:
			fuzzy = append(fuzzy, r)
		}
	}

	if len(exact) == 1 {
		return models.MatterMatch{MatterID: exact[0].CaseID, Confidence: models.MatchExact}, true
	}
	if len(exact) > 1 {
		slog.Warn("ambiguous exact matter matches, declining to guess", "token", token, "candidates", len(exact))
		return models.MatterMatch{}, false
	}
	if len(fuzzy) == 1 {
		return models.MatterMatch{MatterID: fuzzy[0].CaseID, Confidence: models.MatchFuzzy}, true
	}
	if len(fuzzy) > 1 {
		slog.Warn("ambiguous fuzzy matter matches, declining to guess", "token", token, "candidates", len(fuzzy))
	}
	return models.MatterMatch{}, false
}

// normalize lowercases and strips everything outside [a-z0-9] so whitespace
// and punctuation differences don't block a fuzzy comparison.
func normalize(s string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(s), "")
}
