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

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-dashboard/data"
	"github.com/penny-vault/pv-dashboard/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// GetFredSeries returns a macro series as [{x, y}]
func (h *Handler) GetFredSeries(c *fiber.Ctx) error {
	seriesID := c.Params("id")

	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), "GetFredSeries")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)
	span.SetAttributes(attribute.String("SeriesID", seriesID))

	subLog := log.With().Str("SeriesID", seriesID).Logger()

	res, err := h.series.Get(ctx, seriesID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "series unavailable")

		if errors.Is(err, data.ErrInvalidSeriesID) {
			subLog.Warn().Msg("invalid series id")
			return sendError(c, fiber.StatusBadRequest, err)
		}

		subLog.Error().Err(err).Msg("could not load series")
		return sendError(c, statusFor(err, fiber.StatusNotFound), err)
	}

	return sendCached(c, res)
}
