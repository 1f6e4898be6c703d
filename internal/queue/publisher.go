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

// Package queue publishes pipeline completion events to Redis for downstream
// consumers (notification and calendaring services).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher sends processed-email events to a Redis list.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a Redis publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// ProcessedEvent summarises one completed pipeline invocation.
type ProcessedEvent struct {
	EventID      string    `json:"event_id"`
	Fingerprint  string    `json:"fingerprint"`
	Status       string    `json:"status"`
	TasksCreated int       `json:"tasks_created"`
	TaskIDs      []string  `json:"task_ids,omitempty"`
	MatterID     string    `json:"matter_id,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// PublishProcessed serialises an event and pushes it onto the queue.
func (p *Publisher) PublishProcessed(ctx context.Context, evt ProcessedEvent) error {
	if evt.EventID == "" {
		evt.EventID = uuid.New().String()
	}
	if evt.CompletedAt.IsZero() {
		evt.CompletedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal processed event: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, payload).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published processed event",
		"event_id", evt.EventID,
		"fingerprint", evt.Fingerprint,
		"tasks_created", evt.TasksCreated,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
