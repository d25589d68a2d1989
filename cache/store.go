// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
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

// Package cache implements the time-bounded, stale-tolerant cache that sits in
// front of every upstream data fetch.
package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

const (
	// DefaultTTL is the age at which an entry stops being fresh
	DefaultTTL = 24 * time.Hour

	// DefaultFetchTimeout bounds a single upstream fetch
	DefaultFetchTimeout = 30 * time.Second
)

// timestampLayouts are tried in order when decoding an entry. The second
// layout matches naive UTC timestamps written without a zone designator.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// Entry is a single cached payload. Entries are immutable: Put replaces the
// whole entry and callers must not modify Payload.
type Entry struct {
	Key        string
	CapturedAt time.Time
	Payload    json.RawMessage
}

// Store persists entries keyed by string. Get returns (nil, nil) when the key
// has never been written.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, payload json.RawMessage) (*Entry, error)
}

// IsFresh reports whether the entry is younger than ttl
func IsFresh(entry *Entry, ttl time.Duration) bool {
	return IsFreshAt(entry, ttl, time.Now())
}

// IsFreshAt reports whether the entry is younger than ttl at the given instant
func IsFreshAt(entry *Entry, ttl time.Duration, now time.Time) bool {
	if entry == nil || entry.CapturedAt.IsZero() {
		return false
	}
	return now.Sub(entry.CapturedAt) < ttl
}

// Age returns how long ago the entry was captured
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt)
}

// Option configures a store
type Option func(*options)

type options struct {
	compress bool
	prefix   string
	now      func() time.Time
}

func newOptions(opts []Option) *options {
	o := &options{
		prefix: "pvdash:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCompression lz4 compresses stored envelopes
func WithCompression(compress bool) Option {
	return func(o *options) {
		o.compress = compress
	}
}

// WithKeyPrefix sets the namespace used by shared backends such as redis
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithClock overrides the time source used to stamp entries
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// envelope is the persisted representation of an entry
type envelope struct {
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func encodeEntry(entry *Entry) ([]byte, error) {
	return json.Marshal(envelope{
		Timestamp: entry.CapturedAt.UTC().Format(time.RFC3339Nano),
		Data:      entry.Payload,
	})
}

func decodeEntry(key string, raw []byte) (*Entry, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	if env.Timestamp == "" || len(env.Data) == 0 {
		return nil, ErrInvalidEnvelope
	}

	var (
		ts  time.Time
		err error
	)
	for _, layout := range timestampLayouts {
		ts, err = time.ParseInLocation(layout, env.Timestamp, time.UTC)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	return &Entry{
		Key:        key,
		CapturedAt: ts,
		Payload:    env.Data,
	}, nil
}

// stamp builds the entry written by Put. The capture time never moves
// backwards for a key, even if the wall clock does.
func stamp(key string, payload json.RawMessage, prev *Entry, now time.Time) *Entry {
	if prev != nil && now.Before(prev.CapturedAt) {
		now = prev.CapturedAt
	}
	return &Entry{
		Key:        key,
		CapturedAt: now,
		Payload:    payload,
	}
}
