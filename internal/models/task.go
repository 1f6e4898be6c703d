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

package models

import "time"

// Priority classifies how urgently a task needs attention.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// ExtractedTask is a candidate task produced by the language model. It lives
// only within one pipeline run, until published or discarded.
type ExtractedTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	DueDate     string   `json:"due_date,omitempty"` // YYYY-MM-DD, empty when not stated
	Priority    Priority `json:"priority"`
	NeedsReview bool     `json:"needs_review"`
}

// MatchConfidence describes how a matter match was established.
type MatchConfidence string

const (
	MatchExact MatchConfidence = "exact"
	MatchFuzzy MatchConfidence = "fuzzy"
	MatchNone  MatchConfidence = "none"
)

// MatterMatch is the result of a case registry lookup. An empty MatterID with
// confidence "none" means no confident match was found, which is a normal
// outcome rather than an error.
type MatterMatch struct {
	MatterID   string          `json:"matter_id,omitempty"`
	Confidence MatchConfidence `json:"confidence"`
}

// CaseRecord is one case returned by the registry search capability.
type CaseRecord struct {
	CaseID           string `json:"case_id"`
	DisplayName      string `json:"display_name"`
	StoredIdentifier string `json:"stored_identifier"`
}

// TaskRecord is the persisted form of an extracted task, enriched with matter
// linkage and review flags. Never mutated by this service after creation.
type TaskRecord struct {
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	DueDate           string    `json:"due_date,omitempty"`
	Priority          Priority  `json:"priority"`
	NeedsReview       bool      `json:"needs_review"`
	MatterID          string    `json:"matter_id,omitempty"`
	SourceFingerprint string    `json:"source_fingerprint"`
	ReviewNote        string    `json:"review_note,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
