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
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var seriesLimit int

func init() {
	seriesCmd.Flags().IntVarP(&seriesLimit, "limit", "n", 20, "number of most recent observations to print, 0 prints all")
	rootCmd.AddCommand(seriesCmd)
}

var seriesCmd = &cobra.Command{
	Use:   "series <id>",
	Short: "Print a FRED series",
	Long:  `Load a FRED series through the cache and print its most recent observations`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		comp, err := buildComponents()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize cache")
		}
		defer comp.Close()

		points, res, err := comp.series.Points(context.Background(), args[0])
		if err != nil {
			log.Error().Err(err).Str("SeriesID", args[0]).Msg("could not load series")
			return
		}

		if seriesLimit > 0 && len(points) > seriesLimit {
			points = points[len(points)-seriesLimit:]
		}

		fmt.Printf("%s captured %s (%s)\n", args[0], res.CapturedAt.Format("2006-01-02 15:04:05"), res.Source)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Date", "Value"})
		table.SetBorder(false)
		for _, p := range points {
			table.Append([]string{p.X, fmt.Sprintf("%g", p.Y)})
		}
		table.Render()
	},
}
