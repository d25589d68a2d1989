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

// Package common holds process-wide helpers shared by the server and CLI
package common

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/viper"
)

// ArrToUpper uppercase every string in array
func ArrToUpper(arr []string) {
	for ii := range arr {
		arr[ii] = strings.ToUpper(strings.TrimSpace(arr[ii]))
	}
}

// SetupLogging configures the global zerolog logger from the log.* settings
func SetupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString("log.level")))
	if err != nil || viper.GetString("log.level") == "" {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	if viper.GetBool("log.report_caller") {
		log.Logger = log.With().Caller().Logger()
	}

	var out *os.File
	switch output := viper.GetString("log.output"); output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		// the handle stays open for the life of the process
		fh, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			log.Panic().Err(err).Str("Output", output).Msg("could not open log file")
		}
		out = fh
	}

	if viper.GetBool("log.pretty") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	} else {
		log.Logger = log.Output(out)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	log.Debug().Str("Level", level.String()).Msg("logging configured")
}

var (
	nyOnce sync.Once
	nyTZ   *time.Location
)

// GetTimezone returns the exchange timezone; market dates are calendar days
// in New York
func GetTimezone() *time.Location {
	nyOnce.Do(func() {
		tz, err := time.LoadLocation("America/New_York")
		if err != nil {
			log.Panic().Err(err).Msg("could not load timezone")
		}
		nyTZ = tz
	})
	return nyTZ
}

// MarketDate truncates t to midnight of its New York calendar day
func MarketDate(t time.Time) time.Time {
	tz := GetTimezone()
	t = t.In(tz)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tz)
}
