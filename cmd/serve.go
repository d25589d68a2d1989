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
	"context"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/penny-vault/pv-dashboard/common"
	"github.com/penny-vault/pv-dashboard/handler"
	"github.com/penny-vault/pv-dashboard/middleware"
	"github.com/penny-vault/pv-dashboard/observability/opentelemetry"
	"github.com/penny-vault/pv-dashboard/router"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 5000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	viper.BindEnv("server.allow_origins", "ALLOW_ORIGINS")
	serveCmd.Flags().String("allow-origins", "*", "Comma separated list of origins allowed by CORS")
	viper.BindPFlag("server.allow_origins", serveCmd.Flags().Lookup("allow-origins"))

	serveCmd.Flags().Int("warm-interval", 60, "Minutes between cache warming runs, 0 disables warming")
	viper.BindPFlag("cache.warm_interval", serveCmd.Flags().Lookup("warm-interval"))

	serveCmd.Flags().StringSlice("warm-series", []string{}, "FRED series refreshed by the cache warmer")
	viper.BindPFlag("fred.warm_series", serveCmd.Flags().Lookup("warm-series"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API server",
	Long:  `Run HTTP server that serves the portfolio snapshot, positions and FRED series`,
	Run: func(cmd *cobra.Command, args []string) {
		if Profile {
			f, err := os.Create("profile.out")
			if err != nil {
				log.Fatal().Err(err).Msg("could not create profile output")
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				log.Fatal().Err(err).Msg("could not start CPU profile")
			}
			defer pprof.StopCPUProfile()
		}

		shutdownTracing, err := opentelemetry.Setup()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize tracing")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				log.Error().Err(err).Msg("could not flush traces")
			}
		}()

		comp, err := buildComponents()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize cache")
		}
		defer comp.Close()

		// Create new Fiber instance
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-c // block until signal is read
			log.Info().Str("Signal", sig.String()).Msg("shutting down")
			if err := app.Shutdown(); err != nil {
				log.Error().Err(err).Msg("server shutdown failed")
			}
		}()

		// Configure CORS
		app.Use(cors.New(cors.Config{
			AllowOrigins: viper.GetString("server.allow_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,HEAD,OPTIONS",
		}))

		// Setup logging middleware
		app.Use(middleware.NewLogger())

		// Setup routes
		router.SetupRoutes(app, handler.New(comp.portfolio, comp.series))

		// Keep the cache warm so requests rarely wait on upstream
		if interval := viper.GetInt("cache.warm_interval"); interval > 0 {
			seriesIDs := viper.GetStringSlice("fred.warm_series")
			common.ArrToUpper(seriesIDs)

			scheduler := gocron.NewScheduler(common.GetTimezone())
			if _, err := scheduler.Every(interval).Minutes().Do(warmCache, comp, seriesIDs); err != nil {
				log.Fatal().Err(err).Msg("could not schedule cache warming")
			}
			scheduler.StartAsync()
			defer scheduler.Stop()
		}

		port := viper.GetString("server.port")
		log.Info().Str("Port", port).Str("Version", common.CurrentVersion.String()).Msg("starting server")
		if err := app.Listen(":" + port); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	},
}

// warmCache refreshes the portfolio and the configured series. Fresh entries
// are left alone by the orchestrator.
func warmCache(comp *components, seriesIDs []string) {
	ctx := context.Background()

	if res, err := comp.portfolio.Snapshot(ctx); err != nil {
		log.Warn().Err(err).Msg("portfolio cache warming failed")
	} else {
		log.Debug().Str("Source", string(res.Source)).Msg("portfolio cache warmed")
	}

	for _, id := range seriesIDs {
		if res, err := comp.series.Get(ctx, id); err != nil {
			log.Warn().Err(err).Str("SeriesID", id).Msg("series cache warming failed")
		} else {
			log.Debug().Str("SeriesID", id).Str("Source", string(res.Source)).Msg("series cache warmed")
		}
	}
}
