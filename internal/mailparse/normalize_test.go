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

import "testing"

// TestNormalizeSubject verifies the canonicalization rules.
func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fw: Martinez v. ABC Corp - Discovery Demands", "martinez v abc corp - discovery demands"},
		{"RE: re: FWD: Status", "status"},
		{"  Multiple    spaces\tand\ttabs  ", "multiple spaces and tabs"},
		{"Exhibit (A) — filed!", "exhibit a  filed"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeSubject(tt.in); got != tt.want {
				t.Errorf("NormalizeSubject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestNormalizeSubject_PrefixVariantsCollapse verifies that reply and forward
// variants of one subject normalize identically.
func TestNormalizeSubject_PrefixVariantsCollapse(t *testing.T) {
	base := NormalizeSubject("Martinez v. ABC Corp")
	for _, variant := range []string{
		"Re: Martinez v. ABC Corp",
		"FW: Martinez v ABC Corp",
		"fwd: re: Martinez v. ABC Corp.",
	} {
		if got := NormalizeSubject(variant); got != base {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", variant, got, base)
		}
	}
}
