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

// Package pipeline orchestrates one email intake invocation: fingerprint,
// dedup check, extraction, matter matching, task creation, audit logging.
// Each invocation is independent, holds no cross-invocation state, and is
// safely re-triggerable behind the duplicate checks.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anaislegal/intake/internal/auditstore"
	"github.com/anaislegal/intake/internal/fingerprint"
	"github.com/anaislegal/intake/internal/metrics"
	"github.com/anaislegal/intake/internal/models"
	"github.com/anaislegal/intake/internal/queue"
	"github.com/anaislegal/intake/internal/tasks"
)

// AuditStore is the audit trail capability.
type AuditStore interface {
	Begin(ctx context.Context, entry *models.AuditEntry) error
	Lookup(ctx context.Context, fp string) (*models.AuditEntry, error)
	Finish(ctx context.Context, fp string, status models.AuditStatus, errDetail string, tasksCreated int) error
	RecordTaskEvent(ctx context.Context, fp, taskID, title, eventType string) error
}

// DedupGuard is the fast best-effort duplicate filter.
type DedupGuard interface {
	IsNew(ctx context.Context, fp string) (bool, error)
}

// Extractor is the language-model task extraction capability.
type Extractor interface {
	Extract(ctx context.Context, rec *models.EmailRecord) ([]models.ExtractedTask, error)
}

// Matcher is the matter matching capability.
type Matcher interface {
	Match(ctx context.Context, rec *models.EmailRecord) models.MatterMatch
}

// TaskPublisher is the task persistence capability.
type TaskPublisher interface {
	Publish(ctx context.Context, extracted []models.ExtractedTask, match models.MatterMatch, fp string, attachments []string) ([]tasks.Created, error)
}

// EventPublisher announces completed invocations downstream. Optional and
// best-effort.
type EventPublisher interface {
	PublishProcessed(ctx context.Context, evt queue.ProcessedEvent) error
}

// Status is the terminal state of one invocation.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusDuplicate Status = "duplicate"
	StatusFailed    Status = "failed"
)

// Outcome is the tagged result of one invocation. Duplicate-skip is an
// expected outcome, not an error; Failed outcomes are accompanied by the
// causing error from Process.
type Outcome struct {
	Status       Status             `json:"status"`
	Fingerprint  string             `json:"fingerprint"`
	TasksCreated int                `json:"tasks_created"`
	TaskIDs      []string           `json:"task_ids,omitempty"`
	MatterID     string             `json:"matter_id,omitempty"`
	PriorStatus  models.AuditStatus `json:"prior_status,omitempty"`
}

// Pipeline sequences the intake stages over injected capabilities.
type Pipeline struct {
	fingerprints *fingerprint.Generator
	guard        DedupGuard
	audit        AuditStore
	extractor    Extractor
	matcher      Matcher
	publisher    TaskPublisher
	events       EventPublisher

	storeTimeout time.Duration
}

// Config wires a Pipeline. Guard and Events may be nil; everything else is
// required.
type Config struct {
	Fingerprints *fingerprint.Generator
	Guard        DedupGuard
	Audit        AuditStore
	Extractor    Extractor
	Matcher      Matcher
	Publisher    TaskPublisher
	Events       EventPublisher
	StoreTimeout time.Duration
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Pipeline{
		fingerprints: cfg.Fingerprints,
		guard:        cfg.Guard,
		audit:        cfg.Audit,
		extractor:    cfg.Extractor,
		matcher:      cfg.Matcher,
		publisher:    cfg.Publisher,
		events:       cfg.Events,
		storeTimeout: storeTimeout,
	}
}

// Process runs one invocation. The returned Outcome always carries the
// fingerprint and terminal status; the error is non-nil only for Failed
// outcomes and holds the stage error for the caller to classify.
func (p *Pipeline) Process(ctx context.Context, rec *models.EmailRecord) (*Outcome, error) {
	fp := p.fingerprints.Fingerprint(rec)
	log := slog.With("fingerprint", fp[:16])

	// Fast guard against near-simultaneous redelivery. Best-effort: a guard
	// failure falls through to the authoritative store check.
	if p.guard != nil {
		if isNew, err := p.guard.IsNew(ctx, fp); err != nil {
			log.Warn("dedup guard check failed, falling through to audit store", "error", err)
		} else if !isNew {
			// Confirm against the store; the guard alone may be stale if a
			// previous invocation crashed before its audit entry was written.
			prior, err := p.lookup(ctx, fp)
			if err != nil {
				return p.fail(ctx, fp, "dedup", err, false)
			}
			if prior != nil {
				return p.duplicate(log, fp, prior), nil
			}
		}
	}

	// Authoritative duplicate check. An unreachable store is a failure here,
	// never "not a duplicate".
	prior, err := p.lookup(ctx, fp)
	if err != nil {
		return p.fail(ctx, fp, "dedup", err, false)
	}
	if prior != nil {
		return p.duplicate(log, fp, prior), nil
	}

	// Open the audit entry. The UNIQUE constraint converts a concurrent
	// duplicate delivery into a duplicate outcome rather than a hard failure.
	entry := &models.AuditEntry{
		Fingerprint: fp,
		Sender:      rec.Sender,
		Subject:     rec.Subject,
		MessageID:   rec.MessageID,
		ReceivedAt:  rec.ReceivedAt,
	}
	if err := p.withStoreTimeout(ctx, func(sctx context.Context) error {
		return p.audit.Begin(sctx, entry)
	}); err != nil {
		if errors.Is(err, auditstore.ErrDuplicate) {
			prior, _ := p.lookup(ctx, fp)
			return p.duplicate(log, fp, prior), nil
		}
		return p.fail(ctx, fp, "audit", err, false)
	}
	metrics.EmailsReceived.Inc()
	log.Info("audit entry opened", "sender", rec.Sender, "subject", rec.Subject)

	// Extraction. Retries for transient model errors live inside the
	// extractor; nothing else in the pipeline retries.
	start := time.Now()
	extracted, err := p.extractor.Extract(ctx, rec)
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return p.fail(ctx, fp, "extract", err, true)
	}

	if len(extracted) == 0 {
		// "No actionable task found" is a valid completion, not a failure.
		log.Info("no actionable tasks found")
		p.finish(ctx, log, fp, models.AuditSucceeded, "", 0)
		p.announce(ctx, log, fp, 0, nil, "")
		return &Outcome{Status: StatusCompleted, Fingerprint: fp, TasksCreated: 0}, nil
	}

	// Matter matching never fails the invocation; no-match flags review.
	match := p.matcher.Match(ctx, rec)
	if match.MatterID != "" {
		log.Info("matter matched", "matter_id", match.MatterID, "confidence", match.Confidence)
	}

	created, pubErr := p.publisher.Publish(ctx, extracted, match, fp, rec.Attachments)
	if pubErr != nil && len(created) == 0 {
		// Zero of N expected tasks persisted: the invocation failed.
		return p.fail(ctx, fp, "publish", pubErr, true)
	}

	for _, c := range created {
		if err := p.withStoreTimeout(ctx, func(sctx context.Context) error {
			return p.audit.RecordTaskEvent(sctx, fp, c.ID, c.Title, "proposed")
		}); err != nil {
			log.Warn("task event write failed", "task_id", c.ID, "error", err)
		}
	}
	metrics.TasksCreated.Add(float64(len(created)))

	// Partial success completes the invocation but the shortfall is recorded
	// in the audit detail.
	detail := ""
	if pubErr != nil {
		detail = pubErr.Error()
		log.Warn("partial task publish", "error", pubErr)
	}

	ids := make([]string, len(created))
	for i, c := range created {
		ids[i] = c.ID
	}

	p.finish(ctx, log, fp, models.AuditSucceeded, detail, len(created))
	p.announce(ctx, log, fp, len(created), ids, match.MatterID)

	log.Info("intake complete", "tasks_created", len(created))
	return &Outcome{
		Status:       StatusCompleted,
		Fingerprint:  fp,
		TasksCreated: len(created),
		TaskIDs:      ids,
		MatterID:     match.MatterID,
	}, nil
}

func (p *Pipeline) lookup(ctx context.Context, fp string) (*models.AuditEntry, error) {
	var prior *models.AuditEntry
	err := p.withStoreTimeout(ctx, func(sctx context.Context) error {
		var err error
		prior, err = p.audit.Lookup(sctx, fp)
		return err
	})
	return prior, err
}

func (p *Pipeline) duplicate(log *slog.Logger, fp string, prior *models.AuditEntry) *Outcome {
	metrics.DuplicatesSkipped.Inc()
	out := &Outcome{Status: StatusDuplicate, Fingerprint: fp}
	if prior != nil {
		out.PriorStatus = prior.Status
	}
	log.Info("duplicate delivery skipped", "prior_status", out.PriorStatus)
	return out
}

// fail records the failure and surfaces the stage error. hasEntry says
// whether an audit entry was opened and should be finished as failed.
func (p *Pipeline) fail(ctx context.Context, fp, stage string, err error, hasEntry bool) (*Outcome, error) {
	metrics.PipelineFailures.WithLabelValues(stage).Inc()
	slog.Error("pipeline stage failed", "fingerprint", fp[:16], "stage", stage, "error", err)
	if hasEntry {
		p.finish(ctx, slog.With("fingerprint", fp[:16]), fp, models.AuditFailed, err.Error(), 0)
	}
	return &Outcome{Status: StatusFailed, Fingerprint: fp}, err
}

// finish closes the audit entry. Best-effort: a failed audit write loses
// traceability, not correctness, so it is surfaced as a warning only.
func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, fp string, status models.AuditStatus, detail string, created int) {
	if err := p.withStoreTimeout(ctx, func(sctx context.Context) error {
		return p.audit.Finish(sctx, fp, status, detail, created)
	}); err != nil {
		log.Warn("audit finish failed, trail incomplete", "status", status, "error", err)
	}
}

// announce publishes the completion event downstream. Best-effort.
func (p *Pipeline) announce(ctx context.Context, log *slog.Logger, fp string, created int, ids []string, matterID string) {
	if p.events == nil {
		return
	}
	evt := queue.ProcessedEvent{
		Fingerprint:  fp,
		Status:       string(StatusCompleted),
		TasksCreated: created,
		TaskIDs:      ids,
		MatterID:     matterID,
	}
	if err := p.events.PublishProcessed(ctx, evt); err != nil {
		log.Warn("processed event publish failed", "error", err)
	}
}

func (p *Pipeline) withStoreTimeout(ctx context.Context, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	return fn(sctx)
}
