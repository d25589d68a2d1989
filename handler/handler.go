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

// Package handler implements the dashboard's HTTP endpoints
package handler

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-dashboard/cache"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

const (
	// HeaderCache reports whether the payload was fresh, fetched or stale
	HeaderCache = "X-Cache"

	// HeaderCapturedAt is when the payload was fetched from upstream
	HeaderCapturedAt = "X-Cache-Captured-At"
)

// PortfolioSource provides the cached brokerage payloads
type PortfolioSource interface {
	Snapshot(ctx context.Context) (*cache.Result, error)
	Positions(ctx context.Context) (*cache.Result, error)
}

// SeriesSource provides cached macro series
type SeriesSource interface {
	Get(ctx context.Context, id string) (*cache.Result, error)
}

// Handler serves the dashboard API
type Handler struct {
	portfolio PortfolioSource
	series    SeriesSource
}

func New(portfolio PortfolioSource, series SeriesSource) *Handler {
	return &Handler{
		portfolio: portfolio,
		series:    series,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// sendError writes {"error": ...} with the given status
func sendError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(errorResponse{Error: err.Error()})
}

// sendCached writes the cached JSON payload as-is. Requests carrying a
// matching If-None-Match receive 304 without a body.
func sendCached(c *fiber.Ctx, res *cache.Result) error {
	etag := ETag(res.Payload)

	c.Set(HeaderCache, string(res.Source))
	c.Set(HeaderCapturedAt, res.CapturedAt.UTC().Format(http.TimeFormat))
	c.Set(fiber.HeaderETag, etag)
	c.Set(fiber.HeaderCacheControl, "no-cache")

	if res.FetchErr != nil {
		log.Warn().Err(res.FetchErr).Str("Key", res.Key).Str("Path", c.Path()).Msg("serving stale payload")
	}

	if matchesETag(c.Get(fiber.HeaderIfNoneMatch), etag) {
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(res.Payload)
}

// ETag is a strong entity tag over the payload bytes
func ETag(payload json.RawMessage) string {
	sum := blake3.Sum256(payload)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// statusFor maps an orchestrator error to an HTTP status. notFound is used
// when nothing was cached and the fetch failed.
func statusFor(err error, notFound int) int {
	if errors.Is(err, cache.ErrNoDataAvailable) {
		return notFound
	}
	return fiber.StatusInternalServerError
}
