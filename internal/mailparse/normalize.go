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

package mailparse

import (
	"regexp"
	"strings"
)

var (
	replyPrefixRe = regexp.MustCompile(`^((re:|fw:|fwd:)\s*)+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	specialsRe    = regexp.MustCompile(`[^a-z0-9\s\-_]`)
)

// NormalizeSubject canonicalizes a subject line for fingerprint fallback:
// lowercase, reply/forward prefixes removed, whitespace collapsed, and
// everything outside [a-z0-9 -_] dropped. "Fw: RE:  Martinez v. ABC!" and
// "Martinez v ABC" normalize identically.
func NormalizeSubject(subject string) string {
	s := strings.ToLower(subject)
	s = replyPrefixRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return specialsRe.ReplaceAllString(s, "")
}
