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

package portfolio

import (
	"strings"

	"github.com/penny-vault/pv-dashboard/data"
)

// SectorMap maps a symbol to its GICS sector name
type SectorMap map[string]string

// DefaultSectors classifies widely held US equities and ETFs. Symbols that are
// not listed resolve to data.DefaultSector.
var DefaultSectors = SectorMap{
	"AAPL":  "Information Technology",
	"MSFT":  "Information Technology",
	"NVDA":  "Information Technology",
	"AVGO":  "Information Technology",
	"ORCL":  "Information Technology",
	"CRM":   "Information Technology",
	"ADBE":  "Information Technology",
	"AMD":   "Information Technology",
	"INTC":  "Information Technology",
	"CSCO":  "Information Technology",
	"GOOGL": "Communication Services",
	"GOOG":  "Communication Services",
	"META":  "Communication Services",
	"NFLX":  "Communication Services",
	"DIS":   "Communication Services",
	"VZ":    "Communication Services",
	"T":     "Communication Services",
	"AMZN":  "Consumer Discretionary",
	"TSLA":  "Consumer Discretionary",
	"HD":    "Consumer Discretionary",
	"MCD":   "Consumer Discretionary",
	"NKE":   "Consumer Discretionary",
	"SBUX":  "Consumer Discretionary",
	"WMT":   "Consumer Staples",
	"PG":    "Consumer Staples",
	"KO":    "Consumer Staples",
	"PEP":   "Consumer Staples",
	"COST":  "Consumer Staples",
	"JPM":   "Financials",
	"BAC":   "Financials",
	"WFC":   "Financials",
	"GS":    "Financials",
	"V":     "Financials",
	"MA":    "Financials",
	"BRK.B": "Financials",
	"UNH":   "Health Care",
	"JNJ":   "Health Care",
	"LLY":   "Health Care",
	"PFE":   "Health Care",
	"MRK":   "Health Care",
	"ABBV":  "Health Care",
	"XOM":   "Energy",
	"CVX":   "Energy",
	"COP":   "Energy",
	"CAT":   "Industrials",
	"BA":    "Industrials",
	"GE":    "Industrials",
	"UPS":   "Industrials",
	"HON":   "Industrials",
	"LIN":   "Materials",
	"NEM":   "Materials",
	"NEE":   "Utilities",
	"DUK":   "Utilities",
	"AMT":   "Real Estate",
	"PLD":   "Real Estate",
	"XLK":   "Information Technology",
	"XLF":   "Financials",
	"XLE":   "Energy",
	"XLV":   "Health Care",
	"XLY":   "Consumer Discretionary",
	"XLP":   "Consumer Staples",
	"XLI":   "Industrials",
	"XLU":   "Utilities",
	"XLB":   "Materials",
	"XLRE":  "Real Estate",
	"XLC":   "Communication Services",
}

// Lookup returns the sector for symbol, or nil if it is not classified
func (sm SectorMap) Lookup(symbol string) *string {
	if sector, ok := sm[strings.ToUpper(symbol)]; ok {
		return &sector
	}
	return nil
}

// classify fills in the sector of every position. Assets listed by the
// brokerage take precedence over the table when they carry a sector.
func (sm SectorMap) classify(positions []data.Position, assets []data.Asset) {
	bySymbol := make(map[string]*data.Asset, len(assets))
	for idx := range assets {
		bySymbol[assets[idx].Symbol] = &assets[idx]
	}

	for idx := range positions {
		symbol := positions[idx].Symbol
		asset, ok := bySymbol[symbol]
		if !ok {
			asset = &data.Asset{Symbol: symbol}
		}
		if asset.Sector == nil {
			asset.Sector = sm.Lookup(symbol)
		}
		positions[idx].Sector = asset.SectorOrDefault()
	}
}
