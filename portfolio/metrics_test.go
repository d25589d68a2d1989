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

package portfolio_test

import (
	"math"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-dashboard/portfolio"
)

var _ = Describe("Metrics", func() {
	var (
		r []float64
		b []float64
	)

	BeforeEach(func() {
		r = []float64{0.01, -0.02, 0.015, -0.005}
		b = []float64{0.008, -0.01, 0.012, -0.004}
	})

	Context("with portfolio and benchmark returns", func() {
		It("computes every metric", func() {
			m := portfolio.ComputeMetrics(r, b)
			Expect(m.Available()).To(BeTrue())
			Expect(m.Sharpe).To(BeNumerically("~", -0.199, 1e-3))
			Expect(m.Sortino).To(BeNumerically("~", -0.297, 1e-3))
			Expect(m.Beta).To(BeNumerically("~", 1.524, 1e-3))
			Expect(m.AlphaAnnualized).To(BeNumerically("~", -0.5498, 1e-3))
			Expect(m.VolatilityAnnualized).To(BeNumerically("~", 0.251, 1e-3))
			Expect(m.MaxDrawdown).To(BeNumerically("~", -0.02, 1e-4))
			Expect(m.CurrentDrawdown).To(BeNumerically("~", -0.0103, 1e-4))
			Expect(m.VaR95Historical).To(BeNumerically("~", -0.0178, 1e-4))
		})

		It("serializes with camelCase keys", func() {
			m := portfolio.ComputeMetrics(r, b)
			raw, err := json.Marshal(m)
			Expect(err).To(BeNil())

			var generic map[string]float64
			Expect(json.Unmarshal(raw, &generic)).To(Succeed())
			Expect(generic).To(HaveLen(8))
			Expect(generic).To(HaveKey("sharpe"))
			Expect(generic).To(HaveKey("sortino"))
			Expect(generic).To(HaveKey("alphaAnnualized"))
			Expect(generic).To(HaveKey("beta"))
			Expect(generic).To(HaveKey("volatilityAnnualized"))
			Expect(generic).To(HaveKey("maxDrawdown"))
			Expect(generic).To(HaveKey("currentDrawdown"))
			Expect(generic).To(HaveKey("var95Historical"))
		})

		It("restores computed metrics from JSON", func() {
			m := portfolio.ComputeMetrics(r, b)
			raw, err := json.Marshal(m)
			Expect(err).To(BeNil())

			var decoded portfolio.Metrics
			Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
			Expect(decoded.Available()).To(BeTrue())
			Expect(decoded.Beta).To(Equal(m.Beta))
			Expect(decoded.VaR95Historical).To(Equal(m.VaR95Historical))
		})
	})

	Context("without a benchmark", func() {
		It("reports zero beta and alpha", func() {
			m := portfolio.ComputeMetrics(r, nil)
			Expect(m.Available()).To(BeTrue())
			Expect(m.Beta).To(Equal(0.0))
			Expect(m.AlphaAnnualized).To(Equal(0.0))
			Expect(m.Sharpe).To(BeNumerically("~", -0.199, 1e-3))
		})
	})

	Context("with a constant benchmark", func() {
		It("reports zero beta instead of dividing by zero", func() {
			m := portfolio.ComputeMetrics(r, []float64{0.01, 0.01, 0.01, 0.01})
			Expect(m.Beta).To(Equal(0.0))
			Expect(m.AlphaAnnualized).To(Equal(0.0))
		})
	})

	Context("with too little data", func() {
		It("returns empty metrics for a single return", func() {
			m := portfolio.ComputeMetrics([]float64{0.01}, nil)
			Expect(m.Available()).To(BeFalse())

			raw, err := json.Marshal(m)
			Expect(err).To(BeNil())
			Expect(string(raw)).To(Equal("{}"))
		})

		It("returns empty metrics when the benchmark length differs", func() {
			m := portfolio.ComputeMetrics(r, b[:3])
			Expect(m.Available()).To(BeFalse())
		})

		It("decodes {} as unavailable", func() {
			var m portfolio.Metrics
			Expect(json.Unmarshal([]byte("{}"), &m)).To(Succeed())
			Expect(m.Available()).To(BeFalse())
		})
	})

	Context("with all positive returns", func() {
		It("has no drawdown and no sortino", func() {
			m := portfolio.ComputeMetrics([]float64{0.01, 0.02, 0.005}, nil)
			Expect(m.MaxDrawdown).To(Equal(0.0))
			Expect(m.CurrentDrawdown).To(Equal(0.0))
			Expect(m.Sortino).To(Equal(0.0))
		})
	})

	Describe("DrawdownSeries", func() {
		It("measures the decline from the running peak", func() {
			dd := portfolio.DrawdownSeries(r)
			Expect(dd).To(HaveLen(4))
			Expect(dd[0]).To(BeNumerically("~", 0, 1e-9))
			Expect(dd[1]).To(BeNumerically("~", -0.02, 1e-9))
			Expect(dd[2]).To(BeNumerically("~", -0.0053, 1e-6))
			Expect(dd[3]).To(BeNumerically("~", -0.0102735, 1e-6))
		})
	})

	Describe("DownsideDeviation", func() {
		It("is zero with fewer than two negative returns", func() {
			Expect(portfolio.DownsideDeviation([]float64{0.01, -0.02, 0.03})).To(Equal(0.0))
		})

		It("is the sample deviation of the negative returns", func() {
			// negatives -0.02 and -0.005: mean -0.0125, sample variance 0.0001125
			Expect(portfolio.DownsideDeviation(r)).To(BeNumerically("~", math.Sqrt(0.0001125), 1e-12))
		})
	})

	DescribeTable("Percentile",
		func(x []float64, p float64, expected float64) {
			Expect(portfolio.Percentile(x, p)).To(BeNumerically("~", expected, 1e-12))
		},
		Entry("minimum", []float64{3, 1, 2}, 0.0, 1.0),
		Entry("maximum", []float64{3, 1, 2}, 1.0, 3.0),
		Entry("median", []float64{3, 1, 2}, 0.5, 2.0),
		Entry("interpolated", []float64{0.01, -0.02, 0.015, -0.005}, 0.05, -0.01775),
	)

	It("Percentile of an empty slice is NaN", func() {
		Expect(math.IsNaN(portfolio.Percentile(nil, 0.5))).To(BeTrue())
	})
})
