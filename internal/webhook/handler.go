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

// Package webhook serves the intake HTTP surface: the email webhook, the
// health check, the service index, and Prometheus metrics. The webhook
// caller always receives a definitive status; diagnosis beyond that lives in
// the audit trail and logs.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anaislegal/intake/internal/auditstore"
	"github.com/anaislegal/intake/internal/extract"
	"github.com/anaislegal/intake/internal/mailparse"
	"github.com/anaislegal/intake/internal/models"
	"github.com/anaislegal/intake/internal/pipeline"
)

// ServiceName identifies this service in health and index responses.
const ServiceName = "anais-intake"

// Version is the service version reported on the index endpoint.
const Version = "1.0.0"

// maxPayloadBytes caps inbound webhook bodies.
const maxPayloadBytes = 10 << 20

// Pinger reports the health of one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler processes intake webhook requests.
type Handler struct {
	pipe    *pipeline.Pipeline
	pingers map[string]Pinger
}

// NewHandler creates the intake handler. pingers are checked by /health,
// keyed by dependency name.
func NewHandler(pipe *pipeline.Pipeline, pingers map[string]Pinger) *Handler {
	return &Handler{
		pipe:    pipe,
		pingers: pingers,
	}
}

// ServeIntake handles POST /webhook: one forwarded email per request, as a
// JSON mailhook payload or a raw RFC-2822 message.
func (h *Handler) ServeIntake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failed", "detail": "unreadable request body"})
		return
	}

	rec, err := parsePayload(body, r.Header.Get("Content-Type"))
	if err != nil {
		slog.Info("rejected malformed payload", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failed", "detail": err.Error()})
		return
	}

	outcome, err := h.pipe.Process(r.Context(), rec)
	if err != nil {
		writeJSON(w, failureCode(err), map[string]string{
			"status":      string(pipeline.StatusFailed),
			"detail":      err.Error(),
			"fingerprint": outcome.Fingerprint,
		})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// parsePayload picks the parser by content type. Raw messages arrive as
// message/rfc822 or text/plain; everything else is treated as the JSON
// mailhook format.
func parsePayload(body []byte, contentType string) (*models.EmailRecord, error) {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "message/rfc822") || strings.Contains(ct, "text/plain") {
		return mailparse.ParseRaw(body)
	}
	return mailparse.ParseJSON(body)
}

// failureCode maps the pipeline error taxonomy onto HTTP status codes.
// Parse errors never reach here; they are rejected with 400 before the
// pipeline runs.
func failureCode(err error) int {
	var unavailable *auditstore.UnavailableError
	if errors.As(err, &unavailable) {
		return http.StatusServiceUnavailable
	}
	var extractErr *extract.ExtractionError
	if errors.As(err, &extractErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ServeHealth handles GET /health, pinging each backing dependency.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	for name, p := range h.pingers {
		if err := p.Ping(r.Context()); err != nil {
			slog.Warn("health check failed", "dependency", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": ServiceName,
				"detail":  fmt.Sprintf("%s unreachable", name),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// ServeIndex handles GET /, describing the service and its endpoints.
func (h *Handler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": ServiceName,
		"version": Version,
		"endpoints": map[string]string{
			"/webhook": "POST - email intake webhook",
			"/health":  "GET - health check",
			"/metrics": "GET - Prometheus metrics",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// NewMux builds the service routing table.
func NewMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", h.ServeIntake)
	mux.HandleFunc("/health", h.ServeHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", h.ServeIndex)
	return mux
}

// Serve starts the intake HTTP server on the given port. It binds the port
// immediately and signals readiness via the returned channel before starting
// to accept connections.
func Serve(ctx context.Context, port int, server *http.Server) (<-chan struct{}, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind intake port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("intake server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("intake server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("intake server error", "error", err)
		}
	}()

	return ready, nil
}
