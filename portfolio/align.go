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
	"time"

	"github.com/penny-vault/pv-dashboard/data"
	"github.com/penny-vault/pv-dashboard/dataframe"
	"github.com/rs/zerolog/log"
)

const (
	portfolioCol = "portfolio"
	benchmarkCol = "benchmark"
)

// AlignedReturns are daily portfolio returns and, when a benchmark was
// supplied, benchmark returns over exactly the same dates
type AlignedReturns struct {
	Dates     []time.Time
	Portfolio []float64
	Benchmark []float64

	// Weights of each usable symbol; symbols without history are absent
	Weights map[string]float64
}

// HasBenchmark reports whether benchmark returns are available
func (ar *AlignedReturns) HasBenchmark() bool {
	return ar.Benchmark != nil
}

// Align turns per-symbol price histories into weighted portfolio returns
// aligned with the benchmark returns. Only symbols held in holdings are used.
// An empty benchmark is treated as absent. The only error returned is
// ErrInsufficientData.
func Align(histories map[string][]data.PricePoint, holdings []data.Position, benchmark []data.PricePoint) (*AlignedReturns, error) {
	marketValue := make(map[string]float64, len(holdings))
	for _, pos := range holdings {
		marketValue[pos.Symbol] += pos.MarketValue
	}

	dfMap := make(dataframe.Map, len(marketValue))
	for symbol := range marketValue {
		dfMap[symbol] = pricesFrame(symbol, histories[symbol])
	}

	prices := dfMap.Union().ForwardFill().DropEmptyColumns().Drop(math.NaN())
	if prices.ColCount() == 0 {
		log.Debug().Int("NumHoldings", len(holdings)).Msg("no holding has price history")
		return nil, ErrInsufficientData
	}

	total := 0.0
	for _, symbol := range prices.ColNames {
		total += marketValue[symbol]
	}
	if total == 0 {
		log.Debug().Msg("total market value of usable holdings is zero")
		return nil, ErrInsufficientData
	}

	weights := make(map[string]float64, prices.ColCount())
	for _, symbol := range prices.ColNames {
		weights[symbol] = marketValue[symbol] / total
	}

	returns := prices.PctChange()
	weighted, err := returns.WeightedSum(weights)
	if err != nil {
		// weights are derived from the frame's own columns
		log.Error().Err(err).Msg("weights do not match return columns")
		return nil, ErrInsufficientData
	}

	portfolioDf := &dataframe.DataFrame{
		Dates:    returns.Dates,
		ColNames: []string{portfolioCol},
		Vals:     [][]float64{weighted},
	}

	aligned := &AlignedReturns{Weights: weights}

	if len(benchmark) == 0 {
		aligned.Dates = portfolioDf.Dates
		aligned.Portfolio = weighted
	} else {
		benchDf := pricesFrame(benchmarkCol, benchmark).PctChange()
		joined, err := portfolioDf.InnerJoin(benchDf)
		if err != nil {
			log.Error().Err(err).Msg("could not join portfolio and benchmark returns")
			return nil, ErrInsufficientData
		}
		aligned.Dates = joined.Dates
		aligned.Portfolio = joined.Vals[0]
		aligned.Benchmark = joined.Vals[1]
	}

	if len(aligned.Dates) < 2 {
		log.Debug().Int("NumDates", len(aligned.Dates)).Msg("fewer than 2 aligned return dates")
		return nil, ErrInsufficientData
	}

	return aligned, nil
}

func pricesFrame(name string, points []data.PricePoint) *dataframe.DataFrame {
	dates := make([]time.Time, len(points))
	vals := make([]float64, len(points))
	for idx, p := range points {
		dates[idx] = p.Date
		vals[idx] = p.Close
	}
	return dataframe.New(name, dates, vals)
}

// heldSymbols returns the distinct symbols in holdings, sorted
func heldSymbols(holdings []data.Position) []string {
	seen := make(map[string]bool, len(holdings))
	symbols := make([]string, 0, len(holdings))
	for _, pos := range holdings {
		if !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			symbols = append(symbols, pos.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// DrawdownFrame tabulates the aligned portfolio returns with the growth of 1
// unit and the drawdown from its running peak. When days is positive only
// the rows within days of the last date are kept; growth and drawdown are
// always measured from the first aligned return.
func DrawdownFrame(aligned *AlignedReturns, days int) (*dataframe.DataFrame, error) {
	df := dataframe.New(portfolioCol, aligned.Dates, aligned.Portfolio)

	growth, err := df.Growth().Column(portfolioCol)
	if err != nil {
		return nil, err
	}
	if _, err := df.Insert("growth", growth); err != nil {
		return nil, err
	}
	if _, err := df.Insert("drawdown", DrawdownSeries(aligned.Portfolio)); err != nil {
		return nil, err
	}

	if days > 0 {
		df = df.Trim(df.End().AddDate(0, 0, -days), df.End())
	}
	return df, nil
}
