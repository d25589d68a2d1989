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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-dashboard/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 3 // requests per second
)

// ClientOption configures an upstream client
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL    string
	dataURL    string
	feed       string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
}

// WithBaseURL overrides the API root
func WithBaseURL(baseURL string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// WithDataURL overrides the market data API root (brokerage only)
func WithDataURL(dataURL string) ClientOption {
	return func(c *clientConfig) {
		c.dataURL = dataURL
	}
}

// WithFeed selects the market data feed, e.g. "iex" or "sip" (brokerage only)
func WithFeed(feed string) ClientOption {
	return func(c *clientConfig) {
		c.feed = feed
	}
}

// WithHTTPClient replaces the underlying http client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout. It applies to a client supplied
// by WithHTTPClient without modifying it, whatever the option order.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRateLimit sets the sustained request rate
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *clientConfig) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

func newClientConfig(baseURL string, opts []ClientOption) *clientConfig {
	cfg := &clientConfig{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.timeout > 0 {
		client := *cfg.httpClient
		client.Timeout = cfg.timeout
		cfg.httpClient = &client
	}
	return cfg
}

// restClient performs rate limited, traced JSON GET requests
type restClient struct {
	name    string
	headers map[string]string
	cfg     *clientConfig
}

func (rc *restClient) getJSON(ctx context.Context, root, path string, params url.Values, result interface{}) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, rc.name+".get")
	defer span.End()
	span.SetAttributes(
		attribute.String("Client", rc.name),
		attribute.String("Endpoint", path),
	)

	if err := rc.cfg.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limit wait failed")
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := root + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range rc.headers {
		req.Header.Set(k, v)
	}

	log.Debug().Str("Client", rc.name).Str("URL", root+path).Msg("upstream request")

	start := time.Now()
	resp, err := rc.cfg.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("StatusCode", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{
			Client:     rc.name,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			Endpoint:   path,
		}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, "upstream returned an error")
		log.Warn().Str("Client", rc.name).Str("Endpoint", path).Int("StatusCode", resp.StatusCode).Str("Message", apiErr.Message).Msg("upstream request failed")
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return fmt.Errorf("failed to decode response: %w", err)
	}

	log.Debug().Str("Client", rc.name).Str("Endpoint", path).Dur("Elapsed", time.Since(start)).Msg("upstream request complete")
	return nil
}

// errorMessage extracts a human readable message from an error body. Alpaca
// uses {"message": ...}; FRED uses {"error_message": ...}.
func errorMessage(body []byte) string {
	var msg struct {
		Message      string `json:"message"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &msg); err == nil {
		switch {
		case msg.Message != "":
			return msg.Message
		case msg.ErrorMessage != "":
			return msg.ErrorMessage
		}
	}
	return string(body)
}
