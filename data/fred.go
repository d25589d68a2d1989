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
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/penny-vault/pv-dashboard/common"
	"github.com/rs/zerolog/log"
)

const FredURL = "https://api.stlouisfed.org"

// FRED marks a missing observation with "."
const fredMissingValue = "."

var seriesIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// Fred is a client for the FRED series observation API
type Fred struct {
	rest   *restClient
	apiKey string
}

// NewFred creates a macro data client; the API key is required
func NewFred(apiKey string, opts ...ClientOption) (*Fred, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Client: "FRED", Missing: []string{"FRED_API_KEY"}}
	}

	return &Fred{
		apiKey: apiKey,
		rest: &restClient{
			name: "FRED",
			cfg:  newClientConfig(FredURL, opts),
		},
	}, nil
}

type fredObservations struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// ValidSeriesID reports whether id looks like a FRED series identifier
func ValidSeriesID(id string) bool {
	return seriesIDPattern.MatchString(id)
}

// GetSeries downloads every observation of the series ordered by date.
// Missing values are dropped.
func (f *Fred) GetSeries(ctx context.Context, id string) ([]Observation, error) {
	if !ValidSeriesID(id) {
		return nil, ErrInvalidSeriesID
	}

	params := url.Values{}
	params.Set("series_id", id)
	params.Set("api_key", f.apiKey)
	params.Set("file_type", "json")

	var resp fredObservations
	if err := f.rest.getJSON(ctx, f.rest.cfg.baseURL, "/fred/series/observations", params, &resp); err != nil {
		return nil, err
	}

	tz := common.GetTimezone()
	observations := make([]Observation, 0, len(resp.Observations))
	dropped := 0
	for _, obs := range resp.Observations {
		if obs.Value == fredMissingValue || obs.Value == "" {
			dropped++
			continue
		}

		dt, err := time.ParseInLocation("2006-01-02", obs.Date, tz)
		if err != nil {
			log.Warn().Err(err).Str("SeriesID", id).Str("Date", obs.Date).Msg("skipping observation with unparseable date")
			dropped++
			continue
		}

		val, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			log.Warn().Err(err).Str("SeriesID", id).Str("Value", obs.Value).Msg("skipping observation with unparseable value")
			dropped++
			continue
		}

		observations = append(observations, Observation{Date: dt, Value: val})
	}

	sort.Slice(observations, func(i, j int) bool { return observations[i].Date.Before(observations[j].Date) })

	log.Debug().Str("SeriesID", id).Int("NumObservations", len(observations)).Int("Dropped", dropped).Msg("downloaded series")
	return observations, nil
}
