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
	"time"

	"github.com/penny-vault/pv-dashboard/cache"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cacheInspectCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Work with the response cache",
}

var cacheInspectCmd = &cobra.Command{
	Use:   "inspect <key> [key...]",
	Short: "Show when cache entries were captured and whether they are fresh",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		comp, err := buildComponents()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize cache")
		}
		defer comp.Close()

		now := time.Now()
		ttl := cacheTTL()
		for _, key := range args {
			entry, err := comp.store.Get(context.Background(), key)
			if err != nil {
				log.Error().Err(err).Str("Key", key).Msg("could not read cache entry")
				continue
			}
			if entry == nil {
				fmt.Printf("%s: not cached\n", key)
				continue
			}
			fmt.Printf("%s: captured %s, age %s, %d bytes, fresh=%t\n",
				key,
				entry.CapturedAt.Format(time.RFC3339),
				entry.Age(now).Round(time.Second),
				len(entry.Payload),
				cache.IsFreshAt(entry, ttl, now),
			)
		}
	},
}
