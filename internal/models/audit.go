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

// AuditStatus is the lifecycle state of one audit entry.
type AuditStatus string

const (
	AuditReceived  AuditStatus = "received"
	AuditDuplicate AuditStatus = "duplicate"
	AuditSucceeded AuditStatus = "succeeded"
	AuditFailed    AuditStatus = "failed"
)

// AuditEntry is the durable record of one pipeline invocation, keyed by
// fingerprint. It is created with status "received" when processing starts
// and updated exactly once when processing ends. It is the only entity in
// the system with an update-in-place lifecycle.
type AuditEntry struct {
	ID           int64       `json:"id"`
	Fingerprint  string      `json:"fingerprint"`
	Sender       string      `json:"sender"`
	Subject      string      `json:"subject"`
	MessageID    string      `json:"message_id,omitempty"`
	Status       AuditStatus `json:"status"`
	ErrorDetail  string      `json:"error_detail,omitempty"`
	TasksCreated int         `json:"tasks_created"`
	ReceivedAt   time.Time   `json:"received_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}
