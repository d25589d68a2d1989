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
	"time"
)

// Brokerage is the subset of the brokerage API the dashboard consumes
type Brokerage interface {
	GetAccount(ctx context.Context) (*Account, error)
	ListPositions(ctx context.Context) ([]Position, error)
	ListAssets(ctx context.Context) ([]Asset, error)

	// GetBars returns daily closes keyed by symbol, ordered by date
	GetBars(ctx context.Context, symbols []string, timeframe Timeframe, start, end time.Time) (map[string][]PricePoint, error)
}

// MacroSource provides macroeconomic time series
type MacroSource interface {
	GetSeries(ctx context.Context, id string) ([]Observation, error)
}
