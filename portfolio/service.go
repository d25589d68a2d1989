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

// Package portfolio aligns price histories into portfolio returns, computes
// risk and performance metrics and assembles the dashboard snapshot
package portfolio

import (
	"context"
	"time"

	"github.com/penny-vault/pv-dashboard/cache"
	"github.com/penny-vault/pv-dashboard/data"
	"github.com/penny-vault/pv-dashboard/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	SnapshotKey  = "alpaca_portfolio"
	PositionsKey = "alpaca_positions"

	DefaultBenchmark    = "SPY"
	DefaultLookbackDays = 365
)

// Snapshot is everything the dashboard needs to render the portfolio
type Snapshot struct {
	Account   *data.Account                `json:"account"`
	Positions []data.Position              `json:"positions"`
	Bars      map[string][]data.PricePoint `json:"bars"`
	Metrics   Metrics                      `json:"metrics"`
}

// Service builds portfolio snapshots from the brokerage through the cache
type Service struct {
	orchestrator *cache.Orchestrator
	broker       data.Brokerage
	ttl          time.Duration
	benchmark    string
	lookbackDays int
	sectors      SectorMap
	now          func() time.Time
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithTTL sets how long snapshots stay fresh
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithBenchmark sets the symbol metrics are measured against; an empty
// symbol disables the benchmark
func WithBenchmark(symbol string) ServiceOption {
	return func(s *Service) {
		s.benchmark = symbol
	}
}

// WithLookbackDays sets how much price history feeds the metrics
func WithLookbackDays(days int) ServiceOption {
	return func(s *Service) {
		s.lookbackDays = days
	}
}

// WithSectors replaces the sector lookup table
func WithSectors(sectors SectorMap) ServiceOption {
	return func(s *Service) {
		s.sectors = sectors
	}
}

// WithServiceClock overrides the clock used to pick the history window
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a snapshot service. broker may be nil when credentials
// are missing; cached snapshots are still served.
func NewService(orchestrator *cache.Orchestrator, broker data.Brokerage, opts ...ServiceOption) *Service {
	s := &Service{
		orchestrator: orchestrator,
		broker:       broker,
		ttl:          cache.DefaultTTL,
		benchmark:    DefaultBenchmark,
		lookbackDays: DefaultLookbackDays,
		sectors:      DefaultSectors,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the cached portfolio snapshot, rebuilding it when stale
func (s *Service) Snapshot(ctx context.Context) (*cache.Result, error) {
	return s.orchestrator.GetOrFetch(ctx, SnapshotKey, s.ttl, func(ctx context.Context) (any, error) {
		return s.buildSnapshot(ctx)
	})
}

// SnapshotValue is Snapshot decoded into a *Snapshot
func (s *Service) SnapshotValue(ctx context.Context) (*Snapshot, *cache.Result, error) {
	var snap Snapshot
	res, err := s.orchestrator.GetOrFetchInto(ctx, SnapshotKey, s.ttl, func(ctx context.Context) (any, error) {
		return s.buildSnapshot(ctx)
	}, &snap)
	if err != nil {
		return nil, nil, err
	}
	return &snap, res, nil
}

// Positions returns the cached list of open positions
func (s *Service) Positions(ctx context.Context) (*cache.Result, error) {
	return s.orchestrator.GetOrFetch(ctx, PositionsKey, s.ttl, func(ctx context.Context) (any, error) {
		broker, err := s.brokerage()
		if err != nil {
			return nil, err
		}

		positions, err := broker.ListPositions(ctx)
		if err != nil {
			return nil, err
		}
		s.sectors.classify(positions, nil)
		return positions, nil
	})
}

func (s *Service) brokerage() (data.Brokerage, error) {
	if s.broker == nil {
		return nil, &data.ConfigurationError{
			Client:  "Alpaca",
			Missing: []string{"APCA_API_KEY_ID", "APCA_API_SECRET_KEY"},
		}
	}
	return s.broker, nil
}

func (s *Service) buildSnapshot(ctx context.Context) (*Snapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.buildSnapshot")
	defer span.End()

	broker, err := s.brokerage()
	if err != nil {
		return nil, err
	}

	var (
		account   *data.Account
		positions []data.Position
		assets    []data.Asset
	)

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		var err error
		account, err = broker.GetAccount(grpCtx)
		return err
	})
	grp.Go(func() error {
		var err error
		positions, err = broker.ListPositions(grpCtx)
		return err
	})
	grp.Go(func() error {
		var err error
		assets, err = broker.ListAssets(grpCtx)
		if err != nil {
			// sector names fall back to the static table
			log.Warn().Err(err).Msg("could not list assets")
		}
		return nil
	})
	if err := grp.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.sectors.classify(positions, assets)

	symbols := heldSymbols(positions)
	request := symbols
	if s.benchmark != "" && !contains(symbols, s.benchmark) {
		request = append(append([]string{}, symbols...), s.benchmark)
	}

	end := s.now()
	start := end.AddDate(0, 0, -s.lookbackDays)

	bars := map[string][]data.PricePoint{}
	if len(symbols) > 0 {
		bars, err = broker.GetBars(ctx, request, data.TimeframeDay, start, end)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	var benchmark []data.PricePoint
	if s.benchmark != "" {
		benchmark = bars[s.benchmark]
	}

	metrics := Evaluate(bars, positions, benchmark)

	span.SetAttributes(
		attribute.Int("NumPositions", len(positions)),
		attribute.Bool("MetricsAvailable", metrics.Available()),
	)
	log.Info().Int("NumPositions", len(positions)).Int("NumSymbols", len(bars)).Bool("MetricsAvailable", metrics.Available()).Msg("built portfolio snapshot")

	return &Snapshot{
		Account:   account,
		Positions: positions,
		Bars:      bars,
		Metrics:   metrics,
	}, nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
