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

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-dashboard/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// Source describes where a payload returned by GetOrFetch came from
type Source string

const (
	SourceCache    Source = "fresh"
	SourceUpstream Source = "fetched"
	SourceStale    Source = "stale"
)

// FetchFunc retrieves a value from upstream. The value must be JSON
// serializable.
type FetchFunc func(ctx context.Context) (any, error)

// Result is the payload handed back to the caller along with its provenance
type Result struct {
	Key        string
	Payload    json.RawMessage
	CapturedAt time.Time
	Source     Source

	// FetchErr is set when a stale entry was served because the fetch failed
	FetchErr error
}

// Decode unmarshals the payload into dest
func (r *Result) Decode(dest any) error {
	return json.Unmarshal(r.Payload, dest)
}

// Orchestrator mediates every upstream fetch: fresh cache entries short
// circuit the fetch, successful fetches refresh the cache and failures fall
// back to whatever is cached. Concurrent misses for the same key share a
// single fetch.
type Orchestrator struct {
	store        Store
	fetchTimeout time.Duration
	now          func() time.Time
	group        singleflight.Group
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithFetchTimeout bounds every fetch operation; zero disables the bound
func WithFetchTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.fetchTimeout = d
	}
}

// WithOrchestratorClock overrides the time source used for freshness checks
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(store Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Store returns the backing store
func (o *Orchestrator) Store() Store {
	return o.store
}

// flight is the outcome shared by every caller of one singleflight call
type flight struct {
	entry  *Entry
	source Source
}

// FetchOption adjusts a single GetOrFetch call
type FetchOption func(*fetchSettings)

type fetchSettings struct {
	allowFallback bool
}

// WithoutFallback makes a failed fetch return ErrNoDataAvailable even if a
// stale entry exists
func WithoutFallback() FetchOption {
	return func(s *fetchSettings) {
		s.allowFallback = false
	}
}

// GetOrFetch returns the payload stored under key, refreshing it with fetch
// when the entry is missing or older than ttl.
//
// Precedence:
//  1. a fresh entry is returned and fetch is not called
//  2. fetch succeeds: the result is stored and returned
//  3. fetch fails: any existing entry is returned unchanged (unless WithoutFallback)
//  4. nothing is cached: *NoDataError wrapping the fetch error
//
// Storage errors and fatal fetch errors are returned as-is.
func (o *Orchestrator) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc, opts ...FetchOption) (*Result, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "cache.GetOrFetch")
	defer span.End()
	span.SetAttributes(attribute.String("Key", key))

	settings := &fetchSettings{allowFallback: true}
	for _, opt := range opts {
		opt(settings)
	}

	subLog := log.With().Str("Key", key).Logger()

	entry, err := o.store.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache read failed")
		subLog.Error().Err(err).Msg("cache read failed")
		return nil, err
	}

	if IsFreshAt(entry, ttl, o.now()) {
		span.SetAttributes(attribute.String("Source", string(SourceCache)))
		subLog.Debug().Time("CapturedAt", entry.CapturedAt).Msg("serving fresh cache entry")
		return resultFromEntry(entry, SourceCache, nil), nil
	}

	v, err, shared := o.group.Do(key, func() (interface{}, error) {
		// a flight that completed after the read above may already have
		// stored a fresh entry
		latest, err := o.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if IsFreshAt(latest, ttl, o.now()) {
			return &flight{entry: latest, source: SourceCache}, nil
		}

		entry, err := o.refresh(ctx, key, fetch)
		if err != nil {
			return nil, err
		}
		return &flight{entry: entry, source: SourceUpstream}, nil
	})
	if err == nil {
		res := v.(*flight)
		span.SetAttributes(attribute.String("Source", string(res.source)), attribute.Bool("Shared", shared))
		return resultFromEntry(res.entry, res.source, nil), nil
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		// storage failure while re-reading or writing the entry
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache storage failed")
		subLog.Error().Err(err).Msg("cache storage failed")
		return nil, err
	}

	if isFatal(fetchErr.Err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fetchErr.Err
	}

	if settings.allowFallback && entry != nil {
		span.SetAttributes(attribute.String("Source", string(SourceStale)))
		subLog.Warn().Err(fetchErr.Err).Time("CapturedAt", entry.CapturedAt).Msg("fetch failed; serving stale cache entry")
		return resultFromEntry(entry, SourceStale, fetchErr), nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "no data available")
	subLog.Error().Err(fetchErr.Err).Msg("fetch failed and no cache available")
	return nil, &NoDataError{Key: key, Cause: fetchErr}
}

// GetOrFetchInto is GetOrFetch followed by decoding the payload into dest
func (o *Orchestrator) GetOrFetchInto(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc, dest any, opts ...FetchOption) (*Result, error) {
	res, err := o.GetOrFetch(ctx, key, ttl, fetch, opts...)
	if err != nil {
		return nil, err
	}

	if err := res.Decode(dest); err != nil {
		return nil, &StorageError{Op: "decode", Key: key, Err: err}
	}

	return res, nil
}

// refresh runs fetch under the fetch timeout and stores the result. Fetch
// failures are returned as *FetchError; storage failures as *StorageError.
func (o *Orchestrator) refresh(ctx context.Context, key string, fetch FetchFunc) (*Entry, error) {
	fetchCtx := ctx
	if o.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, o.fetchTimeout)
		defer cancel()
	}

	start := o.now()
	value, err := fetch(fetchCtx)
	if err == nil && fetchCtx.Err() != nil {
		// the fetch ignored its context; treat the overrun as a failure
		err = fetchCtx.Err()
	}
	if err != nil {
		return nil, &FetchError{Key: key, Err: err}
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return nil, &FetchError{Key: key, Err: err}
	}

	entry, err := o.store.Put(ctx, key, payload)
	if err != nil {
		return nil, err
	}

	log.Info().Str("Key", key).Dur("Elapsed", o.now().Sub(start)).Int("Bytes", len(payload)).Msg("refreshed cache entry")
	return entry, nil
}

func resultFromEntry(entry *Entry, source Source, fetchErr error) *Result {
	res := &Result{
		Key:        entry.Key,
		Payload:    entry.Payload,
		CapturedAt: entry.CapturedAt,
		Source:     source,
	}
	if fetchErr != nil {
		res.FetchErr = fetchErr
	}
	return res
}
