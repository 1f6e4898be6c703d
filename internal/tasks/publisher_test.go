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

package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/anaislegal/intake/internal/models"
)

// fakeStore records created tasks and fails on scripted titles.
type fakeStore struct {
	created []*models.TaskRecord
	failOn  map[string]bool
	nextID  int
}

func (f *fakeStore) CreateTask(ctx context.Context, task *models.TaskRecord) (string, error) {
	if f.failOn[task.Title] {
		return "", fmt.Errorf("store rejected task %q", task.Title)
	}
	f.created = append(f.created, task)
	f.nextID++
	return fmt.Sprintf("task-%d", f.nextID), nil
}

func exactMatch() models.MatterMatch {
	return models.MatterMatch{MatterID: "case-1", Confidence: models.MatchExact}
}

func noMatch() models.MatterMatch {
	return models.MatterMatch{Confidence: models.MatchNone}
}

// TestPublish_CleanTask verifies an exact match with no attachments leaves
// the model's own review judgment untouched.
func TestPublish_CleanTask(t *testing.T) {
	store := &fakeStore{}
	p := NewPublisher(store)

	created, err := p.Publish(context.Background(),
		[]models.ExtractedTask{{Title: "Respond to demands", Priority: models.PriorityHigh}},
		exactMatch(), "fp-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %d, want 1", len(created))
	}

	rec := store.created[0]
	if rec.NeedsReview {
		t.Errorf("needs_review = true, want false for clean exact-match task")
	}
	if rec.ReviewNote != "" {
		t.Errorf("review_note = %q, want empty", rec.ReviewNote)
	}
	if rec.MatterID != "case-1" {
		t.Errorf("matter_id = %q, want case-1", rec.MatterID)
	}
	if rec.SourceFingerprint != "fp-1" {
		t.Errorf("source_fingerprint = %q", rec.SourceFingerprint)
	}
}

// TestPublish_AttachmentsForceReview verifies attachment presence overrides
// the model's judgment and every filename lands in the review note.
func TestPublish_AttachmentsForceReview(t *testing.T) {
	store := &fakeStore{}
	p := NewPublisher(store)

	_, err := p.Publish(context.Background(),
		[]models.ExtractedTask{{Title: "Review filings", Priority: models.PriorityNormal, NeedsReview: false}},
		exactMatch(), "fp-1", []string{"motion.pdf", "exhibit-a.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := store.created[0]
	if !rec.NeedsReview {
		t.Errorf("needs_review = false, want true with attachments present")
	}
	for _, name := range []string{"motion.pdf", "exhibit-a.pdf"} {
		if !strings.Contains(rec.ReviewNote, name) {
			t.Errorf("review_note %q missing attachment %q", rec.ReviewNote, name)
		}
	}
}

// TestPublish_NoMatchForcesReview verifies an unmatched email flags review.
func TestPublish_NoMatchForcesReview(t *testing.T) {
	store := &fakeStore{}
	p := NewPublisher(store)

	_, err := p.Publish(context.Background(),
		[]models.ExtractedTask{{Title: "T", Priority: models.PriorityLow}},
		noMatch(), "fp-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := store.created[0]
	if !rec.NeedsReview {
		t.Errorf("needs_review = false, want true without a matter match")
	}
	if rec.MatterID != "" {
		t.Errorf("matter_id = %q, want empty", rec.MatterID)
	}
}

// TestPublish_PartialFailure verifies precise accounting when one of three
// creates fails.
func TestPublish_PartialFailure(t *testing.T) {
	store := &fakeStore{failOn: map[string]bool{"B": true}}
	p := NewPublisher(store)

	created, err := p.Publish(context.Background(),
		[]models.ExtractedTask{
			{Title: "A", Priority: models.PriorityNormal},
			{Title: "B", Priority: models.PriorityNormal},
			{Title: "C", Priority: models.PriorityNormal},
		},
		exactMatch(), "fp-1", nil)

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("err = %v, want *PublishError", err)
	}
	if pubErr.Attempted != 3 || pubErr.Created != 2 {
		t.Errorf("accounting = %d/%d, want 2/3", pubErr.Created, pubErr.Attempted)
	}
	if len(created) != 2 {
		t.Errorf("created = %d, want 2", len(created))
	}
}

// TestPublish_TotalFailure verifies zero-created accounting.
func TestPublish_TotalFailure(t *testing.T) {
	store := &fakeStore{failOn: map[string]bool{"A": true}}
	p := NewPublisher(store)

	created, err := p.Publish(context.Background(),
		[]models.ExtractedTask{{Title: "A", Priority: models.PriorityNormal}},
		exactMatch(), "fp-1", nil)

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("err = %v, want *PublishError", err)
	}
	if pubErr.Created != 0 || len(created) != 0 {
		t.Errorf("created = %d, want 0", pubErr.Created)
	}
}
