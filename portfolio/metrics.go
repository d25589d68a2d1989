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
	"math"
	"sort"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-dashboard/data"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// TradingDaysPerYear annualizes daily statistics
	TradingDaysPerYear = 252

	// RiskFreeDaily is a 5% annual risk free rate expressed per trading day
	RiskFreeDaily = 0.05 / TradingDaysPerYear
)

// Metrics summarizes the risk and performance of the portfolio. The zero
// value means "not computable" and serializes as {}.
type Metrics struct {
	Sharpe               float64
	Sortino              float64
	AlphaAnnualized      float64
	Beta                 float64
	VolatilityAnnualized float64
	MaxDrawdown          float64
	CurrentDrawdown      float64
	VaR95Historical      float64

	computed bool
}

type metricsJSON struct {
	Sharpe               *float64 `json:"sharpe"`
	Sortino              *float64 `json:"sortino"`
	AlphaAnnualized      *float64 `json:"alphaAnnualized"`
	Beta                 *float64 `json:"beta"`
	VolatilityAnnualized *float64 `json:"volatilityAnnualized"`
	MaxDrawdown          *float64 `json:"maxDrawdown"`
	CurrentDrawdown      *float64 `json:"currentDrawdown"`
	VaR95Historical      *float64 `json:"var95Historical"`
}

// Available reports whether the metrics were computed
func (m Metrics) Available() bool {
	return m.computed
}

func (m Metrics) MarshalJSON() ([]byte, error) {
	if !m.computed {
		return []byte("{}"), nil
	}
	return json.Marshal(metricsJSON{
		Sharpe:               &m.Sharpe,
		Sortino:              &m.Sortino,
		AlphaAnnualized:      &m.AlphaAnnualized,
		Beta:                 &m.Beta,
		VolatilityAnnualized: &m.VolatilityAnnualized,
		MaxDrawdown:          &m.MaxDrawdown,
		CurrentDrawdown:      &m.CurrentDrawdown,
		VaR95Historical:      &m.VaR95Historical,
	})
}

// UnmarshalJSON accepts either {} or an object carrying all eight metrics
func (m *Metrics) UnmarshalJSON(b []byte) error {
	var raw metricsJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	fields := []*float64{raw.Sharpe, raw.Sortino, raw.AlphaAnnualized, raw.Beta,
		raw.VolatilityAnnualized, raw.MaxDrawdown, raw.CurrentDrawdown, raw.VaR95Historical}
	for _, f := range fields {
		if f == nil {
			*m = Metrics{}
			return nil
		}
	}

	*m = Metrics{
		Sharpe:               *raw.Sharpe,
		Sortino:              *raw.Sortino,
		AlphaAnnualized:      *raw.AlphaAnnualized,
		Beta:                 *raw.Beta,
		VolatilityAnnualized: *raw.VolatilityAnnualized,
		MaxDrawdown:          *raw.MaxDrawdown,
		CurrentDrawdown:      *raw.CurrentDrawdown,
		VaR95Historical:      *raw.VaR95Historical,
		computed:             true,
	}
	return nil
}

// ComputeMetrics derives the portfolio statistics from daily returns r and
// benchmark returns b over the same dates. b may be nil, in which case beta
// and alpha are 0. Fewer than 2 returns, or a benchmark of a different
// length, yields empty metrics.
func ComputeMetrics(r, b []float64) Metrics {
	if len(r) < 2 || (b != nil && len(b) != len(r)) {
		return Metrics{}
	}

	meanR := stat.Mean(r, nil)
	stdR := stat.StdDev(r, nil)
	excess := meanR - RiskFreeDaily
	annualize := math.Sqrt(TradingDaysPerYear)

	m := Metrics{computed: true}

	// Sharpe ratio = (E[r] - rf) / σ(r), annualized
	if stdR > 0 {
		m.Sharpe = excess / stdR * annualize
	}

	// Sortino ratio only penalizes the volatility of negative returns
	if downside := DownsideDeviation(r); downside > 0 {
		m.Sortino = excess / downside * annualize
	}

	// CAPM: β = cov(r, b) / var(b); α = (E[r] - rf) - β (E[b] - rf)
	if len(b) >= 2 {
		if varB := stat.Variance(b, nil); varB > 0 {
			m.Beta = stat.Covariance(r, b, nil) / varB
			m.AlphaAnnualized = TradingDaysPerYear * (excess - m.Beta*(stat.Mean(b, nil)-RiskFreeDaily))
		}
	}

	m.VolatilityAnnualized = stdR * annualize

	drawdowns := DrawdownSeries(r)
	m.MaxDrawdown = floats.Min(drawdowns)
	m.CurrentDrawdown = drawdowns[len(drawdowns)-1]

	m.VaR95Historical = Percentile(r, 0.05)

	m.Sharpe = round(m.Sharpe, 3)
	m.Sortino = round(m.Sortino, 3)
	m.Beta = round(m.Beta, 3)
	m.AlphaAnnualized = round(m.AlphaAnnualized, 4)
	m.VolatilityAnnualized = round(m.VolatilityAnnualized, 4)
	m.MaxDrawdown = round(m.MaxDrawdown, 4)
	m.CurrentDrawdown = round(m.CurrentDrawdown, 4)
	m.VaR95Historical = round(m.VaR95Historical, 4)

	return m
}

// DownsideDeviation is the sample standard deviation of the negative
// returns; 0 when fewer than two returns are negative
func DownsideDeviation(r []float64) float64 {
	negative := make([]float64, 0, len(r))
	for _, x := range r {
		if x < 0 {
			negative = append(negative, x)
		}
	}
	if len(negative) < 2 {
		return 0
	}
	return stat.StdDev(negative, nil)
}

// DrawdownSeries computes the percentage decline of the growth of 1 unit
// from its running peak at every point of r
func DrawdownSeries(r []float64) []float64 {
	drawdowns := make([]float64, len(r))
	value := 1.0
	peak := math.Inf(-1)
	for idx, x := range r {
		value *= 1 + x
		peak = math.Max(peak, value)
		drawdowns[idx] = (value - peak) / peak
	}
	return drawdowns
}

// Percentile returns the p-th quantile (0 <= p <= 1) of x using linear
// interpolation between the closest ranks
func Percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Evaluate aligns the price histories and computes metrics. Insufficient data
// yields empty metrics.
func Evaluate(histories map[string][]data.PricePoint, holdings []data.Position, benchmark []data.PricePoint) Metrics {
	aligned, err := Align(histories, holdings, benchmark)
	if err != nil {
		log.Info().Err(err).Int("NumHoldings", len(holdings)).Msg("metrics unavailable")
		return Metrics{}
	}
	return ComputeMetrics(aligned.Portfolio, aligned.Benchmark)
}

func round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}
