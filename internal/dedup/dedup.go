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

// Package dedup provides a fast fingerprint guard using a Redis SET with TTL.
// It catches near-simultaneous redeliveries before any external call is made.
// The guard is best-effort: the audit store's uniqueness constraint remains
// the authoritative at-most-once check.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces dedup keys in Redis.
const keyPrefix = "intake:seen:"

// Filter tracks which fingerprints have already been processed.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by Redis. The TTL should match the
// fingerprint dedup window: once a fingerprint rotates out of the window, its
// guard entry is useless anyway.
func NewFilter(rdb *redis.Client, ttl time.Duration) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: ttl,
	}
}

// IsNew returns true if the fingerprint has NOT been seen before.
// If true, the fingerprint is marked as seen atomically (SETNX).
func (f *Filter) IsNew(ctx context.Context, fp string) (bool, error) {
	key := keyPrefix + fp

	// SET NX = set only if key does not exist. Returns true if the key was set.
	set, err := f.rdb.SetNX(ctx, key, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}

	return set, nil
}
