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

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/penny-vault/pv-dashboard/cache"
	"github.com/penny-vault/pv-dashboard/data"
	"github.com/penny-vault/pv-dashboard/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// components are the long lived services shared by every command
type components struct {
	store        cache.Store
	orchestrator *cache.Orchestrator
	portfolio    *portfolio.Service
	series       *data.SeriesService
	closers      []func() error
}

// Close releases connections held by the cache backend
func (c *components) Close() {
	for _, closer := range c.closers {
		if err := closer(); err != nil {
			log.Warn().Err(err).Msg("could not close cache backend")
		}
	}
}

func cacheTTL() time.Duration {
	return time.Duration(viper.GetInt("cache.ttl")) * time.Second
}

func buildComponents() (*components, error) {
	comp := &components{}

	store, err := buildStore(comp)
	if err != nil {
		return nil, err
	}
	comp.store = store

	comp.orchestrator = cache.NewOrchestrator(store,
		cache.WithFetchTimeout(time.Duration(viper.GetInt("cache.fetch_timeout"))*time.Second))

	comp.portfolio = portfolio.NewService(comp.orchestrator, newBrokerage(),
		portfolio.WithTTL(cacheTTL()),
		portfolio.WithBenchmark(viper.GetString("alpaca.benchmark")),
		portfolio.WithLookbackDays(viper.GetInt("alpaca.lookback_days")),
	)

	comp.series = data.NewSeriesService(comp.orchestrator, newMacroSource(), cacheTTL())

	return comp, nil
}

// buildStore opens the configured backend and optionally fronts it with an
// in-memory LRU
func buildStore(comp *components) (cache.Store, error) {
	opts := []cache.Option{cache.WithCompression(viper.GetBool("cache.compress"))}

	var store cache.Store
	switch backend := viper.GetString("cache.backend"); backend {
	case "", "file":
		fs, err := cache.NewFileStore(viper.GetString("cache.dir"), opts...)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("Dir", fs.Dir()).Msg("opened file cache")
		store = fs
	case "redis":
		url := viper.GetString("cache.redis_url")
		if url == "" {
			return nil, errors.New("cache.redis_url is required for the redis backend")
		}
		if prefix := viper.GetString("cache.redis_prefix"); prefix != "" {
			opts = append(opts, cache.WithKeyPrefix(prefix))
		}
		rs, err := cache.NewRedisStoreFromURL(url, opts...)
		if err != nil {
			return nil, err
		}
		comp.closers = append(comp.closers, rs.Close)
		store = rs
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}

	if size := viper.GetInt("cache.local_size"); size > 0 {
		ms, err := cache.NewMemoryStore(store, size)
		if err != nil {
			return nil, err
		}
		store = ms
	}

	log.Info().Str("Backend", viper.GetString("cache.backend")).Int("LocalSize", viper.GetInt("cache.local_size")).Msg("cache configured")
	return store, nil
}

// newBrokerage returns nil when credentials are missing so cached snapshots
// are still served
func newBrokerage() data.Brokerage {
	client, err := data.NewAlpaca(viper.GetString("alpaca.key_id"), viper.GetString("alpaca.secret_key"),
		data.WithBaseURL(viper.GetString("alpaca.base_url")),
		data.WithDataURL(viper.GetString("alpaca.data_url")),
		data.WithFeed(viper.GetString("alpaca.feed")),
		data.WithTimeout(httpTimeout()),
	)
	if err != nil {
		log.Warn().Err(err).Msg("brokerage client disabled")
		return nil
	}
	return client
}

func newMacroSource() data.MacroSource {
	client, err := data.NewFred(viper.GetString("fred.api_key"), data.WithTimeout(httpTimeout()))
	if err != nil {
		log.Warn().Err(err).Msg("macro data client disabled")
		return nil
	}
	return client
}

func httpTimeout() time.Duration {
	return time.Duration(viper.GetInt("http.timeout")) * time.Second
}
