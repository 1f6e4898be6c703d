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

// Package metrics exposes Prometheus instrumentation for the intake pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailsReceived counts webhook deliveries that parsed successfully.
	EmailsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_emails_received_total",
		Help: "Emails accepted into the pipeline.",
	})

	// DuplicatesSkipped counts deliveries rejected by deduplication.
	DuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_duplicates_skipped_total",
		Help: "Deliveries skipped as duplicates.",
	})

	// PipelineFailures counts invocations that ended in a failed state,
	// labelled by failing stage.
	PipelineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_pipeline_failures_total",
		Help: "Pipeline invocations that failed, by stage.",
	}, []string{"stage"})

	// TasksCreated counts task records persisted.
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_tasks_created_total",
		Help: "Task records created.",
	})

	// ExtractionDuration observes language-model extraction latency.
	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intake_extraction_duration_seconds",
		Help:    "Latency of the language-model extraction stage.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)
