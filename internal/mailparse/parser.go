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

// Package mailparse turns raw webhook payloads into normalized EmailRecords.
// Two inbound formats are supported: the JSON mailhook format used by the
// forwarding integration, and raw RFC-2822 messages (possibly multipart).
// Parsing is a pure transformation with no side effects.
package mailparse

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/anaislegal/intake/internal/models"
)

// ParseError reports a payload from which no email could be extracted.
// An email with no body text and no attachments carries no signal.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse email: %s", e.Reason)
}

// hookPayload mirrors the JSON mailhook format. Fields the integration sends
// inconsistently (from as object or string, attachments as objects or bare
// filenames) are held as raw JSON and resolved after decoding.
type hookPayload struct {
	Text        string            `json:"text"`
	HTML        string            `json:"html"`
	Subject     string            `json:"subject"`
	Date        string            `json:"date"`
	From        json.RawMessage   `json:"from"`
	Headers     map[string]string `json:"headers"`
	Attachments []json.RawMessage `json:"attachments"`
}

// originalSenderRe recovers the original "From:" line inside a forwarded body,
// so tasks are attributed to the real correspondent rather than the
// forwarding mailbox.
var originalSenderRe = regexp.MustCompile(`From:\s*(?:[^<\r\n]*<)?([^>@\s]+@[^>\s]+?)>?(?:\s|$)`)

// dateLayouts covers the formats the mailhook integration has been seen to
// send, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Monday, January 2, 2006 3:04 PM",
	"January 2, 2006 3:04 PM",
	"2006-01-02 15:04:05",
}

// ParseJSON parses a JSON mailhook payload into an EmailRecord. The payload
// may be wrapped in a single-element array.
func ParseJSON(data []byte) (*models.EmailRecord, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var wrapped []json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON payload: %v", err)}
		}
		if len(wrapped) == 0 {
			return nil, &ParseError{Reason: "empty payload array"}
		}
		data = wrapped[0]
	}

	var p hookPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON payload: %v", err)}
	}

	body := p.Text
	if strings.TrimSpace(body) == "" && p.HTML != "" {
		body = StripHTML(p.HTML)
	}

	rec := &models.EmailRecord{
		Sender:      resolveSender(p.From, body),
		ReceivedAt:  parseDate(p.Date),
		Subject:     p.Subject,
		Body:        body,
		MessageID:   messageIDFromHeaders(p.Headers),
		Attachments: attachmentNames(p.Attachments),
	}

	return validate(rec)
}

// ParseRaw parses a raw RFC-2822 message into an EmailRecord. Multipart
// bodies contribute their text parts concatenated in original order; non-text
// parts contribute only their filenames.
func ParseRaw(data []byte) (*models.EmailRecord, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid message: %v", err)}
	}

	sender := ""
	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		sender = addr.Address
	}

	receivedAt, err := msg.Header.Date()
	if err != nil {
		receivedAt = time.Now().UTC()
	}

	dec := new(mime.WordDecoder)
	subject := msg.Header.Get("Subject")
	if decoded, err := dec.DecodeHeader(subject); err == nil {
		subject = decoded
	}

	body, attachments, err := readBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	rec := &models.EmailRecord{
		Sender:      sender,
		ReceivedAt:  receivedAt.UTC(),
		Subject:     subject,
		Body:        body,
		MessageID:   strings.Trim(strings.TrimSpace(msg.Header.Get("Message-ID")), "<>"),
		Attachments: attachments,
	}

	if forwarded := originalSender(body); forwarded != "" {
		rec.Sender = forwarded
	}

	return validate(rec)
}

func validate(rec *models.EmailRecord) (*models.EmailRecord, error) {
	if strings.TrimSpace(rec.Body) == "" && len(rec.Attachments) == 0 {
		return nil, &ParseError{Reason: "no body text and no attachments"}
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	return rec, nil
}

// readBody extracts plain text and attachment filenames from a message body.
func readBody(contentType, encoding string, r io.Reader) (string, []string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return "", nil, fmt.Errorf("multipart message without boundary")
		}
		return walkMultipart(multipart.NewReader(r, boundary))
	}

	raw, err := io.ReadAll(decodeTransfer(encoding, r))
	if err != nil {
		return "", nil, fmt.Errorf("read body: %v", err)
	}
	if mediaType == "text/html" {
		return StripHTML(string(raw)), nil, nil
	}
	return string(raw), nil, nil
}

// walkMultipart concatenates text parts in order and collects filenames of
// everything else. Nested multiparts are walked recursively.
func walkMultipart(mr *multipart.Reader) (string, []string, error) {
	var text strings.Builder
	var attachments []string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("read multipart: %v", err)
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, nestedAtt, err := walkMultipart(multipart.NewReader(part, params["boundary"]))
			if err != nil {
				return "", nil, err
			}
			appendText(&text, nested)
			attachments = append(attachments, nestedAtt...)

		case part.FileName() != "":
			attachments = append(attachments, part.FileName())

		case strings.HasPrefix(mediaType, "text/"):
			raw, err := io.ReadAll(decodeTransfer(part.Header.Get("Content-Transfer-Encoding"), part))
			if err != nil {
				return "", nil, fmt.Errorf("read text part: %v", err)
			}
			content := string(raw)
			if mediaType == "text/html" {
				content = StripHTML(content)
			}
			appendText(&text, content)

		default:
			// Non-text part without a filename carries nothing forward.
		}
	}

	return text.String(), attachments, nil
}

func appendText(b *strings.Builder, s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(s)
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// resolveSender extracts the sender address from the mailhook "from" field,
// preferring the original correspondent recovered from a forwarded body.
func resolveSender(from json.RawMessage, body string) string {
	if forwarded := originalSender(body); forwarded != "" {
		return forwarded
	}

	var obj struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(from, &obj); err == nil && obj.Address != "" {
		return obj.Address
	}

	var s string
	if err := json.Unmarshal(from, &s); err == nil {
		if addr, err := mail.ParseAddress(s); err == nil {
			return addr.Address
		}
		return s
	}

	return ""
}

func originalSender(body string) string {
	if m := originalSenderRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// attachmentNames resolves attachment entries, which arrive either as
// objects carrying a filename field or as bare filename strings.
func attachmentNames(raw []json.RawMessage) []string {
	var names []string
	for _, entry := range raw {
		var obj struct {
			FileNameCamel string `json:"fileName"`
			FileName      string `json:"filename"`
			Name          string `json:"name"`
		}
		if err := json.Unmarshal(entry, &obj); err == nil {
			if name := firstOf(obj.FileNameCamel, obj.FileName, obj.Name); name != "" {
				names = append(names, name)
				continue
			}
		}
		var s string
		if err := json.Unmarshal(entry, &s); err == nil && s != "" {
			names = append(names, s)
			continue
		}
		names = append(names, "unknown")
	}
	return names
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func messageIDFromHeaders(headers map[string]string) string {
	for _, key := range []string{"in-reply-to", "message-id"} {
		for name, value := range headers {
			if strings.EqualFold(name, key) && value != "" {
				return strings.Trim(strings.TrimSpace(value), "<>")
			}
		}
	}
	return ""
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
