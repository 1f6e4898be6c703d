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

	"golang.org/x/net/html"
)

// blockTags end a line of text when their element closes, so that stripped
// HTML keeps roughly the same line structure as the rendered email.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "blockquote": true, "ul": true, "ol": true,
}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// StripHTML converts an HTML email body to plain text. Script and style
// content is dropped entirely.
func StripHTML(s string) string {
	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skipDepth := 0

	for {
		tt := tok.Next()
		switch tt {
		case html.ErrorToken:
			return tidyText(b.String())

		case html.TextToken:
			if skipDepth == 0 {
				b.WriteString(string(tok.Text()))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tok.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skipDepth++
				}
			}
			if tag == "br" {
				b.WriteString("\n")
			}

		case html.EndTagToken:
			name, _ := tok.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if blockTags[tag] {
				b.WriteString("\n")
			}
		}
	}
}

// tidyText collapses the whitespace noise left behind by tag removal.
func tidyText(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
