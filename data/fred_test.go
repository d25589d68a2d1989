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

var _ = Describe("Fred", func() {
	var (
		mock *httpmock.MockTransport
		fred *data.Fred
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		mock = httpmock.NewMockTransport()
		fred, err = data.NewFred("FREDKEY",
			data.WithHTTPClient(&http.Client{Transport: mock}),
			data.WithRateLimit(100),
		)
		Expect(err).To(BeNil())
	})

	It("requires an API key", func() {
		_, err := data.NewFred("")
		Expect(err).To(MatchError(data.ErrClientUnavailable))
	})

	It("applies a timeout without modifying a shared http client", func() {
		shared := &http.Client{Transport: mock}
		slow, err := data.NewFred("FREDKEY",
			data.WithTimeout(50*time.Millisecond),
			data.WithHTTPClient(shared),
			data.WithRateLimit(100),
		)
		Expect(err).To(BeNil())
		Expect(shared.Timeout).To(BeZero())

		mock.RegisterResponder("GET", "https://api.stlouisfed.org/fred/series/observations",
			func(req *http.Request) (*http.Response, error) {
				time.Sleep(500 * time.Millisecond)
				return httpmock.NewStringResponse(200, `{"observations":[]}`), nil
			})

		_, err = slow.GetSeries(ctx, "DGS10")
		Expect(err).To(HaveOccurred())

		_, err = fred.GetSeries(ctx, "DGS10")
		Expect(err).To(BeNil())
		Expect(shared.Timeout).To(BeZero())
	})

	It("drops missing observations and orders by date", func() {
		mock.RegisterResponder("GET", "https://api.stlouisfed.org/fred/series/observations",
			func(req *http.Request) (*http.Response, error) {
				q := req.URL.Query()
				Expect(q.Get("series_id")).To(Equal("DGS10"))
				Expect(q.Get("api_key")).To(Equal("FREDKEY"))
				Expect(q.Get("file_type")).To(Equal("json"))
				return httpmock.NewStringResponse(200, `{"observations":[
					{"date":"2022-01-04","value":"1.66"},
					{"date":"2022-01-03","value":"1.63"},
					{"date":"2022-01-05","value":"."}
				]}`), nil
			})

		obs, err := fred.GetSeries(ctx, "DGS10")
		Expect(err).To(BeNil())

		tz := common.GetTimezone()
		Expect(obs).To(Equal([]data.Observation{
			{Date: time.Date(2022, 1, 3, 0, 0, 0, 0, tz), Value: 1.63},
			{Date: time.Date(2022, 1, 4, 0, 0, 0, 0, tz), Value: 1.66},
		}))
	})

	It("reports the FRED error message", func() {
		mock.RegisterResponder("GET", "https://api.stlouisfed.org/fred/series/observations",
			httpmock.NewStringResponder(400, `{"error_code":400,"error_message":"Bad Request.  The series does not exist."}`))

		_, err := fred.GetSeries(ctx, "NOPE")
		var apiErr *data.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Client).To(Equal("FRED"))
		Expect(apiErr.Message).To(ContainSubstring("series does not exist"))
	})

	DescribeTable("validates series ids", func(id string, valid bool) {
		Expect(data.ValidSeriesID(id)).To(Equal(valid))
	},
		Entry("simple", "GDP", true),
		Entry("with digits and underscore", "T10Y2Y_X", true),
		Entry("empty", "", false),
		Entry("path traversal", "../etc", false),
		Entry("query injection", "GDP&api_key=x", false),
	)
})
