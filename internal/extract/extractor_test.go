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

package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/anaislegal/intake/internal/models"
)

// fakeClient returns scripted responses or errors in sequence.
type fakeClient struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", fmt.Errorf("no scripted response for call %d", i)
}

func testRecord() *models.EmailRecord {
	return &models.EmailRecord{
		Sender:     "paralegal@firm.example",
		ReceivedAt: time.Date(2025, 11, 30, 10, 30, 0, 0, time.UTC),
		Subject:    "Fw: Martinez v. ABC Corp - Discovery Demands",
		Body:       "Responses are due by December 30, 2025.",
	}
}

func newTestExtractor(client Client, maxAttempts int) *Extractor {
	x := New(client, maxAttempts)
	x.backoffBase = time.Millisecond
	return x
}

// TestExtract_WellFormed verifies a valid response is parsed into tasks.
func TestExtract_WellFormed(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"tasks": [{"title": "Respond to discovery demands", "description": "Responses are due by December 30, 2025", "due_date": "2025-12-30", "priority": "high", "needs_review": false}]}`,
	}}

	tasks, err := newTestExtractor(client, 3).Extract(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Title != "Respond to discovery demands" {
		t.Errorf("title = %q", tasks[0].Title)
	}
	if tasks[0].Priority != models.PriorityHigh {
		t.Errorf("priority = %q, want high", tasks[0].Priority)
	}
	if tasks[0].DueDate != "2025-12-30" {
		t.Errorf("due_date = %q", tasks[0].DueDate)
	}
}

// TestExtract_FencedJSON verifies responses wrapped in markdown code fences.
func TestExtract_FencedJSON(t *testing.T) {
	client := &fakeClient{responses: []string{
		"Here is the extraction:\n```json\n{\"tasks\": []}\n```",
	}}

	tasks, err := newTestExtractor(client, 3).Extract(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(tasks))
	}
}

// TestExtract_ZeroTasksIsNotAnError verifies the empty-but-well-formed case.
func TestExtract_ZeroTasksIsNotAnError(t *testing.T) {
	client := &fakeClient{responses: []string{`{"tasks": []}`}}

	tasks, err := newTestExtractor(client, 3).Extract(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("zero tasks must not be an error, got: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(tasks))
	}
}

// TestExtract_MalformedResponses verifies schema violations are rejected,
// not coerced.
func TestExtract_MalformedResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "I could not find any tasks in this email."},
		{"missing tasks array", `{"result": "ok"}`},
		{"task without title", `{"tasks": [{"title": "", "priority": "normal"}]}`},
		{"invalid priority", `{"tasks": [{"title": "T", "priority": "P1"}]}`},
		{"invalid due date", `{"tasks": [{"title": "T", "priority": "low", "due_date": "tomorrow"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{responses: []string{tt.response}}
			_, err := newTestExtractor(client, 3).Extract(context.Background(), testRecord())

			var extractErr *ExtractionError
			if !errors.As(err, &extractErr) {
				t.Errorf("err = %v, want *ExtractionError", err)
			}
		})
	}
}

// TestExtract_TransientRetry verifies rate limits are retried and succeed.
func TestExtract_TransientRetry(t *testing.T) {
	client := &fakeClient{
		errs:      []error{&apiError{StatusCode: 429}, &apiError{StatusCode: 503}},
		responses: []string{"", "", `{"tasks": []}`},
	}

	_, err := newTestExtractor(client, 3).Extract(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
}

// TestExtract_RetriesExhausted verifies the bounded retry budget.
func TestExtract_RetriesExhausted(t *testing.T) {
	client := &fakeClient{
		errs: []error{&apiError{StatusCode: 500}, &apiError{StatusCode: 500}, &apiError{StatusCode: 500}},
	}

	_, err := newTestExtractor(client, 3).Extract(context.Background(), testRecord())
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
}

// TestExtract_AuthErrorNotRetried verifies non-transient errors propagate
// immediately.
func TestExtract_AuthErrorNotRetried(t *testing.T) {
	client := &fakeClient{
		errs: []error{&apiError{StatusCode: 401, Body: "invalid x-api-key"}},
	}

	_, err := newTestExtractor(client, 3).Extract(context.Background(), testRecord())
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on auth failure)", client.calls)
	}
}
