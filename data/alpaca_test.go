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

package data_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-dashboard/common"
	"github.com/penny-vault/pv-dashboard/data"
)

var _ = Describe("Alpaca", func() {
	var (
		mock   *httpmock.MockTransport
		alpaca *data.Alpaca
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		mock = httpmock.NewMockTransport()
		alpaca, err = data.NewAlpaca("KEY", "SECRET",
			data.WithHTTPClient(&http.Client{Transport: mock}),
			data.WithRateLimit(100),
		)
		Expect(err).To(BeNil())
	})

	It("requires both credentials", func() {
		_, err := data.NewAlpaca("", "SECRET")
		Expect(errors.Is(err, data.ErrClientUnavailable)).To(BeTrue())

		var cfgErr *data.ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Missing).To(Equal([]string{"APCA_API_KEY_ID"}))
		Expect(cfgErr.Fatal()).To(BeTrue())
	})

	It("sends credentials and parses string encoded numbers", func() {
		mock.RegisterResponder("GET", "https://paper-api.alpaca.markets/v2/account",
			func(req *http.Request) (*http.Response, error) {
				Expect(req.Header.Get("APCA-API-KEY-ID")).To(Equal("KEY"))
				Expect(req.Header.Get("APCA-API-SECRET-KEY")).To(Equal("SECRET"))
				return httpmock.NewStringResponse(200, `{"id":"abc","status":"ACTIVE","currency":"USD","cash":"1000.5","portfolio_value":"25000","equity":"25000","last_equity":"24500.25","buying_power":"2001"}`), nil
			})

		account, err := alpaca.GetAccount(ctx)
		Expect(err).To(BeNil())
		Expect(account.ID).To(Equal("abc"))
		Expect(account.Cash).To(Equal(1000.5))
		Expect(account.LastEquity).To(Equal(24500.25))
	})

	It("lists positions including shorts", func() {
		mock.RegisterResponder("GET", "https://paper-api.alpaca.markets/v2/positions",
			httpmock.NewStringResponder(200, `[
				{"symbol":"AAPL","qty":"10","market_value":"1500.00","side":"long","current_price":"150"},
				{"symbol":"TSLA","qty":"-2","market_value":"-400.00","side":"short","current_price":"200"}
			]`))

		positions, err := alpaca.ListPositions(ctx)
		Expect(err).To(BeNil())
		Expect(positions).To(HaveLen(2))
		Expect(positions[0].Symbol).To(Equal("AAPL"))
		Expect(positions[0].Quantity).To(Equal(10.0))
		Expect(positions[1].MarketValue).To(Equal(-400.0))
		Expect(positions[1].Sector).To(Equal(""))
	})

	It("asks only for active assets", func() {
		mock.RegisterResponder("GET", "https://paper-api.alpaca.markets/v2/assets",
			func(req *http.Request) (*http.Response, error) {
				Expect(req.URL.Query().Get("status")).To(Equal("active"))
				return httpmock.NewStringResponse(200, `[{"id":"1","symbol":"AAPL","name":"Apple Inc.","exchange":"NASDAQ","class":"us_equity","tradable":true}]`), nil
			})

		assets, err := alpaca.ListAssets(ctx)
		Expect(err).To(BeNil())
		Expect(assets).To(HaveLen(1))
		Expect(assets[0].Name).To(Equal("Apple Inc."))
		Expect(assets[0].SectorOrDefault()).To(Equal(data.DefaultSector))
	})

	It("follows bar pagination and normalizes dates", func() {
		calls := 0
		mock.RegisterResponder("GET", "https://data.alpaca.markets/v2/stocks/bars",
			func(req *http.Request) (*http.Response, error) {
				calls++
				q := req.URL.Query()
				Expect(q.Get("symbols")).To(Equal("AAPL,SPY"))
				Expect(q.Get("timeframe")).To(Equal("1Day"))
				Expect(q.Get("feed")).To(Equal("iex"))

				if q.Get("page_token") == "" {
					return httpmock.NewStringResponse(200, `{
						"bars": {
							"AAPL": [{"t":"2022-01-04T05:00:00Z","c":180.5},{"t":"2022-01-03T05:00:00Z","c":182.0}],
							"SPY": [{"t":"2022-01-03T05:00:00Z","c":477.7}]
						},
						"next_page_token": "next"
					}`), nil
				}

				Expect(q.Get("page_token")).To(Equal("next"))
				return httpmock.NewStringResponse(200, `{
					"bars": {"SPY": [{"t":"2022-01-04T05:00:00Z","c":477.5}]},
					"next_page_token": null
				}`), nil
			})

		start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2022, 1, 5, 0, 0, 0, 0, time.UTC)
		bars, err := alpaca.GetBars(ctx, []string{"AAPL", "SPY"}, data.TimeframeDay, start, end)
		Expect(err).To(BeNil())
		Expect(calls).To(Equal(2))

		tz := common.GetTimezone()
		Expect(bars["AAPL"]).To(Equal([]data.PricePoint{
			{Date: time.Date(2022, 1, 3, 0, 0, 0, 0, tz), Close: 182.0},
			{Date: time.Date(2022, 1, 4, 0, 0, 0, 0, tz), Close: 180.5},
		}))
		Expect(bars["SPY"]).To(HaveLen(2))
	})

	It("returns an APIError for non-2xx responses", func() {
		mock.RegisterResponder("GET", "https://paper-api.alpaca.markets/v2/account",
			httpmock.NewStringResponder(403, `{"code":40310000,"message":"forbidden"}`))

		_, err := alpaca.GetAccount(ctx)
		var apiErr *data.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(403))
		Expect(apiErr.Message).To(Equal("forbidden"))
		Expect(apiErr.Endpoint).To(Equal("/v2/account"))
	})

	It("does not call upstream for an empty symbol list", func() {
		bars, err := alpaca.GetBars(ctx, nil, data.TimeframeDay, time.Now().AddDate(0, 0, -1), time.Now())
		Expect(err).To(BeNil())
		Expect(bars).To(BeEmpty())
		Expect(mock.GetTotalCallCount()).To(Equal(0))
	})
})
