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
	"fmt"
	"strings"
	"time"

	"github.com/anaislegal/intake/internal/models"
)

// promptTemplate instructs the model to return strictly the task schema the
// extractor validates against. Malformed responses are rejected, not coerced.
const promptTemplate = `You are a legal task extraction assistant. Analyze this email and extract every actionable task with a deadline or required work product.

Today's date: %s

Email details:
From: %s
Subject: %s
Received: %s
Body:
%s

Extract EACH actionable task:
- Filings (answers, motions, notes of issue)
- Responses (discovery responses, demands for bills of particulars)
- Document production and discovery obligations
- Client deliverables and internal deadlines mentioned in the email
- Court conferences, hearings, and depositions (title them with the event date)

For each task provide:
- title: clear description of the required action
- description: supporting detail, quoting the email text you relied on
- due_date: explicit date in YYYY-MM-DD format, only if stated in the email
- priority: "high" for court-imposed deadlines and emergencies, "normal" for standard filings and scheduled work, "low" for administrative or FYI items
- needs_review: true when your extraction is uncertain or the deadline requires calculation

Return ONLY a JSON object with this exact structure:
{"tasks": [{"title": "...", "description": "...", "due_date": "2025-12-30", "priority": "normal", "needs_review": false}]}

Return {"tasks": []} if the email contains no actionable task. Extract conservatively: better to have the attorney dismiss a false positive than miss a deadline.`

// buildPrompt renders the extraction prompt for one email.
func buildPrompt(rec *models.EmailRecord, today time.Time) string {
	prompt := fmt.Sprintf(promptTemplate,
		today.Format("2006-01-02"),
		rec.Sender,
		rec.Subject,
		rec.ReceivedAt.Format(time.RFC3339),
		rec.Body,
	)

	if rec.HasAttachments() {
		prompt += fmt.Sprintf("\n\nNOTE: This email has attachments: %s. The attachments were not parsed; the attorney will review them manually.",
			strings.Join(rec.Attachments, ", "))
	}

	return prompt
}
