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

// Package data holds the upstream clients (brokerage and macro data) and the
// value types they return
package data

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultSector is reported for holdings whose sector is unknown
const DefaultSector = "Other"

// Timeframe is the bar aggregation period requested from the brokerage
type Timeframe string

const (
	TimeframeDay  Timeframe = "1Day"
	TimeframeHour Timeframe = "1Hour"
)

// Account summarizes the brokerage account
type Account struct {
	ID             string  `json:"id"`
	AccountNumber  string  `json:"account_number"`
	Status         string  `json:"status"`
	Currency       string  `json:"currency"`
	Cash           float64 `json:"cash"`
	PortfolioValue float64 `json:"portfolio_value"`
	Equity         float64 `json:"equity"`
	LastEquity     float64 `json:"last_equity"`
	BuyingPower    float64 `json:"buying_power"`
}

// Position is a single holding. MarketValue is negative for short positions.
type Position struct {
	Symbol         string  `json:"symbol"`
	AssetClass     string  `json:"asset_class"`
	Exchange       string  `json:"exchange"`
	Side           string  `json:"side"`
	Quantity       float64 `json:"qty"`
	AvgEntryPrice  float64 `json:"avg_entry_price"`
	CurrentPrice   float64 `json:"current_price"`
	MarketValue    float64 `json:"market_value"`
	CostBasis      float64 `json:"cost_basis"`
	UnrealizedPL   float64 `json:"unrealized_pl"`
	UnrealizedPLPC float64 `json:"unrealized_plpc"`
	ChangeToday    float64 `json:"change_today"`
	Sector         string  `json:"sector"`
}

// Asset describes a tradable instrument. Sector is nil when no
// classification is known.
type Asset struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Exchange string  `json:"exchange"`
	Class    string  `json:"class"`
	Tradable bool    `json:"tradable"`
	Sector   *string `json:"sector,omitempty"`
}

// SectorOrDefault returns the asset's sector or DefaultSector
func (a *Asset) SectorOrDefault() string {
	if a == nil || a.Sector == nil || strings.TrimSpace(*a.Sector) == "" {
		return DefaultSector
	}
	return *a.Sector
}

// PricePoint is the close of one trading day. Date is midnight New York time.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Observation is a single value of a macroeconomic series
type Observation struct {
	Date  time.Time
	Value float64
}

// Point is the dashboard representation of an observation
type Point struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// flexFloat64 handles JSON values that may be either a number or a string.
// Alpaca encodes every decimal as a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		*f = 0
		return nil
	}

	num, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}

	*f = flexFloat64(num)
	return nil
}
