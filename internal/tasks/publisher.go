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

// Package tasks persists extracted tasks through the task store capability.
// Each task is an independent create call, so partial success is possible
// and is reported precisely.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anaislegal/intake/internal/models"
)

// Store is the task persistence capability.
type Store interface {
	CreateTask(ctx context.Context, task *models.TaskRecord) (string, error)
}

// PublishError reports a partially or fully failed publish. Created of
// Attempted tasks were persisted before the first failure was recorded.
type PublishError struct {
	Attempted int
	Created   int
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("published %d of %d tasks: %v", e.Created, e.Attempted, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Created identifies one persisted task.
type Created struct {
	ID    string
	Title string
}

// Publisher creates task records enriched with matter linkage and review
// flags.
type Publisher struct {
	store Store
}

// NewPublisher creates a task publisher backed by the given store.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Publish persists one TaskRecord per extracted task and returns the created
// identifiers. Attachment presence forces needs_review on every task,
// regardless of the model's own judgment, and an uncertain matter match does
// the same. The returned error, if any, is a *PublishError; the returned
// slice still lists what was created before the failure.
func (p *Publisher) Publish(ctx context.Context, extracted []models.ExtractedTask, match models.MatterMatch, fp string, attachments []string) ([]Created, error) {
	created := make([]Created, 0, len(extracted))
	var firstErr error

	for _, et := range extracted {
		rec := buildRecord(et, match, fp, attachments)

		id, err := p.store.CreateTask(ctx, rec)
		if err != nil {
			slog.Error("task create failed", "title", et.Title, "fingerprint", fp, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		created = append(created, Created{ID: id, Title: et.Title})
	}

	if firstErr != nil {
		return created, &PublishError{Attempted: len(extracted), Created: len(created), Err: firstErr}
	}
	return created, nil
}

// buildRecord applies the review policy to one extracted task.
func buildRecord(et models.ExtractedTask, match models.MatterMatch, fp string, attachments []string) *models.TaskRecord {
	rec := &models.TaskRecord{
		Title:             et.Title,
		Description:       et.Description,
		DueDate:           et.DueDate,
		Priority:          et.Priority,
		NeedsReview:       et.NeedsReview,
		MatterID:          match.MatterID,
		SourceFingerprint: fp,
		CreatedAt:         time.Now().UTC(),
	}

	var notes []string
	if len(attachments) > 0 {
		rec.NeedsReview = true
		notes = append(notes, fmt.Sprintf("email has attachments: %s", strings.Join(attachments, ", ")))
	}
	switch match.Confidence {
	case models.MatchNone:
		rec.NeedsReview = true
		notes = append(notes, "no confident matter match")
	case models.MatchFuzzy:
		rec.NeedsReview = true
		notes = append(notes, "matter matched fuzzily, verify linkage")
	}

	rec.ReviewNote = strings.Join(notes, "; ")
	return rec
}
