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

// Package fingerprint derives stable deduplication keys from normalized
// emails. The same logical email always hashes to the same key; distinct
// emails get distinct keys with SHA-256 collision resistance.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/anaislegal/intake/internal/mailparse"
	"github.com/anaislegal/intake/internal/models"
)

// Generator computes fingerprints. The window controls how coarsely the
// received-at timestamp is truncated: redeliveries inside one window collapse
// to a single fingerprint.
type Generator struct {
	window time.Duration
}

// New creates a Generator with the given dedup window.
func New(window time.Duration) *Generator {
	return &Generator{window: window}
}

// Fingerprint returns the hex SHA-256 dedup key for an email.
//
// When a Message-ID is present the key is messageID|sender|window.
// Without one, the fallback key is sender|normalized-subject|window, which
// collapses retried deliveries inside the window. Two genuinely distinct
// emails from one sender with an identical subject in the same window merge
// under the fallback key.
func (g *Generator) Fingerprint(rec *models.EmailRecord) string {
	window := rec.ReceivedAt.UTC().Truncate(g.window).Unix()

	var input string
	if rec.MessageID != "" {
		input = fmt.Sprintf("%s|%s|%d", rec.MessageID, rec.Sender, window)
	} else {
		input = fmt.Sprintf("%s|%s|%d", rec.Sender, mailparse.NormalizeSubject(rec.Subject), window)
	}

	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
