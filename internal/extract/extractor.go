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

// Package extract invokes the language-model capability to turn an email
// body into candidate tasks. A well-formed "zero tasks" response is a valid
// outcome; a malformed response or an exhausted retry budget is an
// ExtractionError, never a silent empty result.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/anaislegal/intake/internal/models"
)

// ExtractionError reports a failed extraction: the model call errored after
// exhausting retries, or its response did not match the expected schema.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("task extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// fencedJSONRe pulls the payload out of a markdown code fence, which models
// emit despite instructions not to.
var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Extractor turns emails into candidate tasks via the model capability.
type Extractor struct {
	client      Client
	maxAttempts int

	// backoffBase is the first retry delay; each retry doubles it.
	// Overridable in tests.
	backoffBase time.Duration
}

// New creates an Extractor. maxAttempts bounds the retry budget for
// transient model API failures; non-transient errors propagate immediately.
func New(client Client, maxAttempts int) *Extractor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Extractor{
		client:      client,
		maxAttempts: maxAttempts,
		backoffBase: time.Second,
	}
}

// Extract returns the ordered candidate tasks found in the email, possibly
// none.
func (x *Extractor) Extract(ctx context.Context, rec *models.EmailRecord) ([]models.ExtractedTask, error) {
	prompt := buildPrompt(rec, time.Now().UTC())

	raw, err := x.completeWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	tasks, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	slog.Info("extraction complete", "tasks", len(tasks), "sender", rec.Sender)
	return tasks, nil
}

// completeWithRetry calls the model with bounded exponential backoff on
// transient failures.
func (x *Extractor) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	delay := x.backoffBase

	for attempt := 1; attempt <= x.maxAttempts; attempt++ {
		raw, err := x.client.Complete(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !isTransient(err) {
			return "", &ExtractionError{Reason: "model call failed", Err: err}
		}
		if attempt == x.maxAttempts {
			break
		}

		slog.Warn("transient model API error, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", &ExtractionError{Reason: "model call cancelled", Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", &ExtractionError{
		Reason: fmt.Sprintf("model call failed after %d attempts", x.maxAttempts),
		Err:    lastErr,
	}
}

// isTransient classifies an error as worth retrying. Rate limits, server
// errors, and network failures are transient; auth and request errors are not.
func isTransient(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.transient()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Anything else is a transport-level failure.
	return true
}

// wireTask mirrors the JSON schema the prompt demands.
type wireTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Priority    string `json:"priority"`
	NeedsReview bool   `json:"needs_review"`
}

type wireResponse struct {
	Tasks []wireTask `json:"tasks"`
}

// parseResponse validates the model output against the expected schema.
func parseResponse(raw string) ([]models.ExtractedTask, error) {
	payload := strings.TrimSpace(raw)
	if m := fencedJSONRe.FindStringSubmatch(payload); m != nil {
		payload = m[1]
	}

	var wire wireResponse
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(&wire); err != nil {
		return nil, &ExtractionError{Reason: "model response is not valid JSON", Err: err}
	}
	if wire.Tasks == nil {
		return nil, &ExtractionError{Reason: `model response missing "tasks" array`}
	}

	tasks := make([]models.ExtractedTask, 0, len(wire.Tasks))
	for i, wt := range wire.Tasks {
		if strings.TrimSpace(wt.Title) == "" {
			return nil, &ExtractionError{Reason: fmt.Sprintf("task %d has no title", i)}
		}
		priority := models.Priority(wt.Priority)
		if !priority.Valid() {
			return nil, &ExtractionError{Reason: fmt.Sprintf("task %d has invalid priority %q", i, wt.Priority)}
		}
		if wt.DueDate != "" {
			if _, err := time.Parse("2006-01-02", wt.DueDate); err != nil {
				return nil, &ExtractionError{Reason: fmt.Sprintf("task %d has invalid due_date %q", i, wt.DueDate)}
			}
		}
		tasks = append(tasks, models.ExtractedTask{
			Title:       strings.TrimSpace(wt.Title),
			Description: strings.TrimSpace(wt.Description),
			DueDate:     wt.DueDate,
			Priority:    priority,
			NeedsReview: wt.NeedsReview,
		})
	}

	return tasks, nil
}
