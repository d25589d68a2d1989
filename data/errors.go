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
	"errors"
	"fmt"
	"strings"
)

var (
	ErrClientUnavailable = errors.New("upstream client unavailable")
	ErrInvalidSeriesID   = errors.New("invalid series id")
	ErrNoObservations    = errors.New("series has no observations")
)

// ConfigurationError reports that an upstream client could not be built
// because credentials are missing. It is fatal to the request.
type ConfigurationError struct {
	Client  string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s API keys not configured (missing %s)", e.Client, strings.Join(e.Missing, ", "))
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrClientUnavailable }

// Fatal marks the error as one that must not be masked by stale cache data
func (e *ConfigurationError) Fatal() bool { return true }

// APIError represents a non-2xx response from an upstream API
type APIError struct {
	Client     string
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %s (status: %d, endpoint: %s)", e.Client, e.Message, e.StatusCode, e.Endpoint)
}
