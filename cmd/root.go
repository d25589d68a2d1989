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

// Package cmd implements the pvdash command line
package cmd

import (
	"fmt"
	"os"

	"github.com/penny-vault/pv-dashboard/common"
	"github.com/penny-vault/pv-dashboard/data"
	"github.com/penny-vault/pv-dashboard/portfolio"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Profile bool

func init() {
	cobra.OnInitialize(common.SetupLogging)

	// Cache
	viper.BindEnv("cache.dir", "CACHE_DIR")
	rootCmd.PersistentFlags().String("cache-dir", "cache", "Directory holding cached upstream responses")
	viper.BindPFlag("cache.dir", rootCmd.PersistentFlags().Lookup("cache-dir"))

	viper.BindEnv("cache.ttl", "CACHE_TTL")
	rootCmd.PersistentFlags().Int("cache-ttl", 86400, "Seconds a cached response stays fresh")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	viper.BindEnv("cache.fetch_timeout", "CACHE_FETCH_TIMEOUT")
	rootCmd.PersistentFlags().Int("cache-fetch-timeout", 30, "Seconds allowed for a single upstream refresh")
	viper.BindPFlag("cache.fetch_timeout", rootCmd.PersistentFlags().Lookup("cache-fetch-timeout"))

	viper.BindEnv("cache.compress", "CACHE_COMPRESS")
	rootCmd.PersistentFlags().Bool("cache-compress", false, "Compress cache entries with lz4")
	viper.BindPFlag("cache.compress", rootCmd.PersistentFlags().Lookup("cache-compress"))

	viper.BindEnv("cache.backend", "CACHE_BACKEND")
	rootCmd.PersistentFlags().String("cache-backend", "file", "Cache backend: `file` or `redis`")
	viper.BindPFlag("cache.backend", rootCmd.PersistentFlags().Lookup("cache-backend"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("cache-redis-url", "", "Redis connection string used by the redis backend")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("cache-redis-url"))

	rootCmd.PersistentFlags().String("cache-redis-prefix", "pvdash:", "Namespace prepended to redis keys")
	viper.BindPFlag("cache.redis_prefix", rootCmd.PersistentFlags().Lookup("cache-redis-prefix"))

	viper.BindEnv("cache.local_size", "CACHE_LOCAL_SIZE")
	rootCmd.PersistentFlags().Int("cache-local-size", 128, "Number of entries kept in memory, 0 disables the in-memory layer")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	// Alpaca
	viper.BindEnv("alpaca.key_id", "APCA_API_KEY_ID")
	rootCmd.PersistentFlags().String("alpaca-key-id", "", "Alpaca API key id")
	viper.BindPFlag("alpaca.key_id", rootCmd.PersistentFlags().Lookup("alpaca-key-id"))

	viper.BindEnv("alpaca.secret_key", "APCA_API_SECRET_KEY")
	rootCmd.PersistentFlags().String("alpaca-secret-key", "", "Alpaca API secret key")
	viper.BindPFlag("alpaca.secret_key", rootCmd.PersistentFlags().Lookup("alpaca-secret-key"))

	viper.BindEnv("alpaca.base_url", "APCA_API_BASE_URL")
	rootCmd.PersistentFlags().String("alpaca-base-url", data.AlpacaPaperURL, "Alpaca trading API root")
	viper.BindPFlag("alpaca.base_url", rootCmd.PersistentFlags().Lookup("alpaca-base-url"))

	viper.BindEnv("alpaca.data_url", "APCA_API_DATA_URL")
	rootCmd.PersistentFlags().String("alpaca-data-url", data.AlpacaDataURL, "Alpaca market data API root")
	viper.BindPFlag("alpaca.data_url", rootCmd.PersistentFlags().Lookup("alpaca-data-url"))

	rootCmd.PersistentFlags().String("alpaca-feed", "iex", "Alpaca market data feed")
	viper.BindPFlag("alpaca.feed", rootCmd.PersistentFlags().Lookup("alpaca-feed"))

	rootCmd.PersistentFlags().String("benchmark", portfolio.DefaultBenchmark, "Symbol metrics are measured against, blank disables")
	viper.BindPFlag("alpaca.benchmark", rootCmd.PersistentFlags().Lookup("benchmark"))

	rootCmd.PersistentFlags().Int("lookback-days", portfolio.DefaultLookbackDays, "Days of price history used for metrics")
	viper.BindPFlag("alpaca.lookback_days", rootCmd.PersistentFlags().Lookup("lookback-days"))

	// FRED
	viper.BindEnv("fred.api_key", "FRED_API_KEY")
	rootCmd.PersistentFlags().String("fred-api-key", "", "FRED API key")
	viper.BindPFlag("fred.api_key", rootCmd.PersistentFlags().Lookup("fred-api-key"))

	rootCmd.PersistentFlags().Int("http-timeout", 30, "Seconds allowed for a single upstream HTTP request")
	viper.BindPFlag("http.timeout", rootCmd.PersistentFlags().Lookup("http-timeout"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP trace collector, blank disables tracing")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use HTTP instead of gRPC for the OTLP exporter")
	viper.BindPFlag("otlp.http", rootCmd.PersistentFlags().Lookup("otlp-http"))

	rootCmd.PersistentFlags().Bool("otlp-insecure", false, "Disable TLS for the OTLP exporter")
	viper.BindPFlag("otlp.insecure", rootCmd.PersistentFlags().Lookup("otlp-insecure"))

	rootCmd.PersistentFlags().Float64("otlp-sample-ratio", 1, "Fraction of traces exported")
	viper.BindPFlag("otlp.sample_ratio", rootCmd.PersistentFlags().Lookup("otlp-sample-ratio"))

	// Logging configuration
	viper.BindEnv("log.level", "PVDASH_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PVDASH_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PVDASH_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	rootCmd.PersistentFlags().Bool("log-pretty", false, "Human readable console logs")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	rootCmd.PersistentFlags().BoolVar(&Profile, "cpu-profile", false, "Run pprof and save in profile.out")
}

var rootCmd = &cobra.Command{
	Use:     common.ProgramName,
	Version: common.CurrentVersion.String(),
	Short:   "Portfolio and macro data dashboard backend",
	Long:    `Serve brokerage portfolio analytics and FRED macro series from a daily refreshed cache.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
