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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-dashboard/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	snapshotDrawdown bool
	snapshotDays     int
)

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotDrawdown, "drawdown", false, "print the daily drawdown series")
	snapshotCmd.Flags().IntVar(&snapshotDays, "days", 30, "calendar days of the drawdown series to print, 0 prints all")
	rootCmd.AddCommand(snapshotCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the portfolio snapshot",
	Long:  `Load the portfolio snapshot through the cache and print positions and metrics`,
	Run: func(cmd *cobra.Command, args []string) {
		comp, err := buildComponents()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize cache")
		}
		defer comp.Close()

		snap, res, err := comp.portfolio.SnapshotValue(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("could not load portfolio snapshot")
			return
		}

		fmt.Printf("Captured: %s (%s)\n", res.CapturedAt.Format("2006-01-02 15:04:05"), res.Source)
		if snap.Account != nil {
			fmt.Printf("Equity: %.2f  Cash: %.2f  Buying Power: %.2f\n\n",
				snap.Account.Equity, snap.Account.Cash, snap.Account.BuyingPower)
		}

		positions := tablewriter.NewWriter(os.Stdout)
		positions.SetHeader([]string{"Symbol", "Sector", "Qty", "Market Value", "Unrealized P/L"})
		positions.SetBorder(false)
		for _, pos := range snap.Positions {
			positions.Append([]string{
				pos.Symbol,
				pos.Sector,
				fmt.Sprintf("%.2f", pos.Quantity),
				fmt.Sprintf("%.2f", pos.MarketValue),
				fmt.Sprintf("%.2f", pos.UnrealizedPL),
			})
		}
		positions.Render()
		fmt.Println()

		if !snap.Metrics.Available() {
			fmt.Println("Metrics: insufficient data")
			return
		}

		m := snap.Metrics
		metrics := tablewriter.NewWriter(os.Stdout)
		metrics.SetHeader([]string{"Metric", "Value"})
		metrics.SetBorder(false)
		metrics.AppendBulk([][]string{
			{"Sharpe", fmt.Sprintf("%.3f", m.Sharpe)},
			{"Sortino", fmt.Sprintf("%.3f", m.Sortino)},
			{"Alpha (annualized)", fmt.Sprintf("%.4f", m.AlphaAnnualized)},
			{"Beta", fmt.Sprintf("%.3f", m.Beta)},
			{"Volatility (annualized)", fmt.Sprintf("%.4f", m.VolatilityAnnualized)},
			{"Max Drawdown", fmt.Sprintf("%.4f", m.MaxDrawdown)},
			{"Current Drawdown", fmt.Sprintf("%.4f", m.CurrentDrawdown)},
			{"VaR 95% (historical)", fmt.Sprintf("%.4f", m.VaR95Historical)},
		})
		metrics.Render()

		if snapshotDrawdown {
			aligned, err := portfolio.Align(snap.Bars, snap.Positions, snap.Bars[viper.GetString("alpaca.benchmark")])
			if err != nil {
				log.Error().Err(err).Msg("could not align returns")
				return
			}
			df, err := portfolio.DrawdownFrame(aligned, snapshotDays)
			if err != nil {
				log.Error().Err(err).Msg("could not build drawdown table")
				return
			}
			fmt.Printf("\nDrawdown %s to %s\n", df.Start().Format("2006-01-02"), df.End().Format("2006-01-02"))
			fmt.Println(df.Table())
		}
	},
}
