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

// Package models defines the data structures shared across the intake service.
package models

import "time"

// EmailRecord is a normalized inbound email, produced once by the parser and
// immutable afterwards. Body is plain text: HTML has already been stripped
// and multipart text parts concatenated in their original order.
type EmailRecord struct {
	Sender      string    `json:"sender"`
	ReceivedAt  time.Time `json:"received_at"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	MessageID   string    `json:"message_id,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
}

// HasAttachments reports whether the source email carried attachments.
// Attachment content is never parsed; only filenames travel with the record.
func (e *EmailRecord) HasAttachments() bool {
	return len(e.Attachments) > 0
}
