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
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-dashboard/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// GetPortfolio returns the account, positions, price bars and metrics
func (h *Handler) GetPortfolio(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), "GetPortfolio")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	res, err := h.portfolio.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portfolio unavailable")
		log.Error().Err(err).Msg("could not load portfolio snapshot")
		return sendError(c, statusFor(err, fiber.StatusInternalServerError), err)
	}

	return sendCached(c, res)
}

// GetPositions returns the open positions with their sectors
func (h *Handler) GetPositions(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), "GetPositions")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	res, err := h.portfolio.Positions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "positions unavailable")
		log.Error().Err(err).Msg("could not load positions")
		return sendError(c, statusFor(err, fiber.StatusInternalServerError), err)
	}

	return sendCached(c, res)
}
