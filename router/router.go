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

// Package router binds the HTTP endpoints to their handlers
package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-dashboard/handler"
)

// SetupRoutes registers every dashboard endpoint on app
func SetupRoutes(app *fiber.App, h *handler.Handler) {
	app.Get("/", h.Home)

	api := app.Group("/api")
	api.Get("/ping", handler.Ping)

	// Brokerage
	alpaca := api.Group("/alpaca")
	alpaca.Get("/portfolio", h.GetPortfolio)
	alpaca.Get("/positions", h.GetPositions)

	// Macro series
	fred := api.Group("/fred")
	fred.Get("/series/:id", h.GetFredSeries)
}
