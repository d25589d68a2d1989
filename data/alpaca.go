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
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/pv-dashboard/common"
	"github.com/rs/zerolog/log"
)

const (
	AlpacaPaperURL = "https://paper-api.alpaca.markets"
	AlpacaDataURL  = "https://data.alpaca.markets"

	alpacaBarsPageLimit = 10000
)

// Alpaca is a client for the Alpaca trading and market data APIs
type Alpaca struct {
	rest *restClient
}

// NewAlpaca creates a brokerage client. Both credentials are required.
func NewAlpaca(keyID, secretKey string, opts ...ClientOption) (*Alpaca, error) {
	missing := []string{}
	if keyID == "" {
		missing = append(missing, "APCA_API_KEY_ID")
	}
	if secretKey == "" {
		missing = append(missing, "APCA_API_SECRET_KEY")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Client: "Alpaca", Missing: missing}
	}

	cfg := newClientConfig(AlpacaPaperURL, opts)
	if cfg.dataURL == "" {
		cfg.dataURL = AlpacaDataURL
	}
	if cfg.feed == "" {
		cfg.feed = "iex"
	}

	return &Alpaca{
		rest: &restClient{
			name: "Alpaca",
			headers: map[string]string{
				"APCA-API-KEY-ID":     keyID,
				"APCA-API-SECRET-KEY": secretKey,
			},
			cfg: cfg,
		},
	}, nil
}

type alpacaAccount struct {
	ID             string      `json:"id"`
	AccountNumber  string      `json:"account_number"`
	Status         string      `json:"status"`
	Currency       string      `json:"currency"`
	Cash           flexFloat64 `json:"cash"`
	PortfolioValue flexFloat64 `json:"portfolio_value"`
	Equity         flexFloat64 `json:"equity"`
	LastEquity     flexFloat64 `json:"last_equity"`
	BuyingPower    flexFloat64 `json:"buying_power"`
}

type alpacaPosition struct {
	Symbol         string      `json:"symbol"`
	AssetClass     string      `json:"asset_class"`
	Exchange       string      `json:"exchange"`
	Side           string      `json:"side"`
	Qty            flexFloat64 `json:"qty"`
	AvgEntryPrice  flexFloat64 `json:"avg_entry_price"`
	CurrentPrice   flexFloat64 `json:"current_price"`
	MarketValue    flexFloat64 `json:"market_value"`
	CostBasis      flexFloat64 `json:"cost_basis"`
	UnrealizedPL   flexFloat64 `json:"unrealized_pl"`
	UnrealizedPLPC flexFloat64 `json:"unrealized_plpc"`
	ChangeToday    flexFloat64 `json:"change_today"`
}

type alpacaAsset struct {
	ID       string `json:"id"`
	Class    string `json:"class"`
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Tradable bool   `json:"tradable"`
}

type alpacaBar struct {
	Timestamp time.Time   `json:"t"`
	Close     flexFloat64 `json:"c"`
}

type alpacaBarsPage struct {
	Bars          map[string][]alpacaBar `json:"bars"`
	NextPageToken *string                `json:"next_page_token"`
}

// GetAccount returns the account summary
func (a *Alpaca) GetAccount(ctx context.Context) (*Account, error) {
	var resp alpacaAccount
	if err := a.rest.getJSON(ctx, a.rest.cfg.baseURL, "/v2/account", nil, &resp); err != nil {
		return nil, err
	}

	return &Account{
		ID:             resp.ID,
		AccountNumber:  resp.AccountNumber,
		Status:         resp.Status,
		Currency:       resp.Currency,
		Cash:           float64(resp.Cash),
		PortfolioValue: float64(resp.PortfolioValue),
		Equity:         float64(resp.Equity),
		LastEquity:     float64(resp.LastEquity),
		BuyingPower:    float64(resp.BuyingPower),
	}, nil
}

// ListPositions returns all open positions; Sector is left empty
func (a *Alpaca) ListPositions(ctx context.Context) ([]Position, error) {
	var resp []alpacaPosition
	if err := a.rest.getJSON(ctx, a.rest.cfg.baseURL, "/v2/positions", nil, &resp); err != nil {
		return nil, err
	}

	positions := make([]Position, 0, len(resp))
	for _, p := range resp {
		positions = append(positions, Position{
			Symbol:         p.Symbol,
			AssetClass:     p.AssetClass,
			Exchange:       p.Exchange,
			Side:           p.Side,
			Quantity:       float64(p.Qty),
			AvgEntryPrice:  float64(p.AvgEntryPrice),
			CurrentPrice:   float64(p.CurrentPrice),
			MarketValue:    float64(p.MarketValue),
			CostBasis:      float64(p.CostBasis),
			UnrealizedPL:   float64(p.UnrealizedPL),
			UnrealizedPLPC: float64(p.UnrealizedPLPC),
			ChangeToday:    float64(p.ChangeToday),
		})
	}

	return positions, nil
}

// ListAssets returns active assets. Alpaca does not classify assets by
// sector so Sector is always nil.
func (a *Alpaca) ListAssets(ctx context.Context) ([]Asset, error) {
	params := url.Values{}
	params.Set("status", "active")

	var resp []alpacaAsset
	if err := a.rest.getJSON(ctx, a.rest.cfg.baseURL, "/v2/assets", params, &resp); err != nil {
		return nil, err
	}

	assets := make([]Asset, 0, len(resp))
	for _, asset := range resp {
		assets = append(assets, Asset{
			ID:       asset.ID,
			Symbol:   asset.Symbol,
			Name:     asset.Name,
			Exchange: asset.Exchange,
			Class:    asset.Class,
			Tradable: asset.Tradable,
		})
	}

	return assets, nil
}

// GetBars downloads bars for all symbols, following pagination. Bar
// timestamps are normalized to the New York trading date.
func (a *Alpaca) GetBars(ctx context.Context, symbols []string, timeframe Timeframe, start, end time.Time) (map[string][]PricePoint, error) {
	res := make(map[string][]PricePoint, len(symbols))
	if len(symbols) == 0 {
		return res, nil
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("timeframe", string(timeframe))
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	params.Set("adjustment", "all")
	params.Set("limit", strconv.Itoa(alpacaBarsPageLimit))
	params.Set("feed", a.rest.cfg.feed)

	pages := 0
	for {
		var page alpacaBarsPage
		if err := a.rest.getJSON(ctx, a.rest.cfg.dataURL, "/v2/stocks/bars", params, &page); err != nil {
			return nil, err
		}
		pages++

		for symbol, bars := range page.Bars {
			for _, bar := range bars {
				res[symbol] = append(res[symbol], PricePoint{
					Date:  common.MarketDate(bar.Timestamp),
					Close: float64(bar.Close),
				})
			}
		}

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		params.Set("page_token", *page.NextPageToken)
	}

	for symbol, points := range res {
		res[symbol] = dedupeByDate(points)
	}

	log.Debug().Int("NumSymbols", len(symbols)).Int("Pages", pages).Msg("downloaded bars")
	return res, nil
}

// dedupeByDate sorts points and keeps the last value for each date
func dedupeByDate(points []PricePoint) []PricePoint {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	out := points[:0]
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1].Date.Equal(p.Date) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
