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

package data

import (
	"context"
	"strings"
	"time"

	"github.com/penny-vault/pv-dashboard/cache"
	"github.com/rs/zerolog/log"
)

// SeriesService serves macro series through the cache orchestrator
type SeriesService struct {
	orchestrator *cache.Orchestrator
	source       MacroSource
	ttl          time.Duration
}

// NewSeriesService wires a macro source to the cache. source may be nil when
// no credentials are configured; cached series are still served.
func NewSeriesService(orchestrator *cache.Orchestrator, source MacroSource, ttl time.Duration) *SeriesService {
	return &SeriesService{
		orchestrator: orchestrator,
		source:       source,
		ttl:          ttl,
	}
}

// SeriesKey is the cache key of a series. FRED ids are case-insensitive so
// the key always uses the upper case form.
func SeriesKey(id string) string {
	return "fred_" + strings.ToUpper(id)
}

// Get returns the series as dashboard points. The payload is a JSON array of
// {x, y} ordered by date.
func (ss *SeriesService) Get(ctx context.Context, id string) (*cache.Result, error) {
	if !ValidSeriesID(id) {
		return nil, ErrInvalidSeriesID
	}
	id = strings.ToUpper(id)

	return ss.orchestrator.GetOrFetch(ctx, SeriesKey(id), ss.ttl, func(ctx context.Context) (any, error) {
		return ss.fetch(ctx, id)
	})
}

// Points decodes the result of Get
func (ss *SeriesService) Points(ctx context.Context, id string) ([]Point, *cache.Result, error) {
	res, err := ss.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var points []Point
	if err := res.Decode(&points); err != nil {
		return nil, nil, err
	}
	return points, res, nil
}

func (ss *SeriesService) fetch(ctx context.Context, id string) ([]Point, error) {
	if ss.source == nil {
		return nil, &ConfigurationError{Client: "FRED", Missing: []string{"FRED_API_KEY"}}
	}

	observations, err := ss.source.GetSeries(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(observations) == 0 {
		log.Warn().Str("SeriesID", id).Msg("series returned no observations")
		return nil, ErrNoObservations
	}

	points := make([]Point, len(observations))
	for idx, obs := range observations {
		points[idx] = Point{
			X: obs.Date.Format("2006-01-02"),
			Y: obs.Value,
		}
	}
	return points, nil
}
