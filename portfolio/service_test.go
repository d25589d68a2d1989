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
	"context"
	"errors"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-dashboard/cache"
	"github.com/penny-vault/pv-dashboard/data"
	"github.com/penny-vault/pv-dashboard/portfolio"
)

var errBrokerDown = errors.New("brokerage unavailable")

type fakeBroker struct {
	mu sync.Mutex

	account   *data.Account
	positions []data.Position
	assets    []data.Asset
	bars      map[string][]data.PricePoint

	accountErr error
	assetsErr  error

	accountCalls int
	barSymbols   []string
	barStart     time.Time
	barEnd       time.Time
}

func (f *fakeBroker) GetAccount(ctx context.Context) (*data.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountCalls++
	return f.account, f.accountErr
}

func (f *fakeBroker) ListPositions(ctx context.Context) ([]data.Position, error) {
	out := make([]data.Position, len(f.positions))
	copy(out, f.positions)
	return out, nil
}

func (f *fakeBroker) ListAssets(ctx context.Context) ([]data.Asset, error) {
	return f.assets, f.assetsErr
}

func (f *fakeBroker) GetBars(ctx context.Context, symbols []string, timeframe data.Timeframe, start, end time.Time) (map[string][]data.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.barSymbols = symbols
	f.barStart = start
	f.barEnd = end
	out := make(map[string][]data.PricePoint)
	for _, sym := range symbols {
		if bars, ok := f.bars[sym]; ok {
			out[sym] = bars
		}
	}
	return out, nil
}

var _ = Describe("Service", func() {
	var (
		ctx    context.Context
		orch   *cache.Orchestrator
		broker *fakeBroker
		now    time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2022, 3, 10, 16, 0, 0, 0, time.UTC)

		dir, err := os.MkdirTemp("", "pvdash-portfolio-")
		Expect(err).To(BeNil())
		DeferCleanup(os.RemoveAll, dir)

		store, err := cache.NewFileStore(dir)
		Expect(err).To(BeNil())
		orch = cache.NewOrchestrator(store)

		broker = &fakeBroker{
			account: &data.Account{ID: "acct-1", Cash: 1000, PortfolioValue: 2000, Equity: 2000},
			positions: []data.Position{
				{Symbol: "AAPL", MarketValue: 750},
				{Symbol: "XYZQ", MarketValue: 250},
			},
			bars: map[string][]data.PricePoint{
				"AAPL": prices(1, 100, 101, 98.98, 100.4647, 99.962),
				"XYZQ": prices(1, 10, 10.1, 9.898, 10.04647, 9.9962),
				"SPY":  prices(1, 400, 403.2, 399.168, 403.958, 402.342),
			},
		}
	})

	newService := func(b data.Brokerage, opts ...portfolio.ServiceOption) *portfolio.Service {
		opts = append([]portfolio.ServiceOption{portfolio.WithServiceClock(func() time.Time { return now })}, opts...)
		return portfolio.NewService(orch, b, opts...)
	}

	It("assembles account, positions, bars and metrics", func() {
		svc := newService(broker)
		snap, res, err := svc.SnapshotValue(ctx)
		Expect(err).To(BeNil())
		Expect(res.Source).To(Equal(cache.SourceUpstream))
		Expect(res.Key).To(Equal(portfolio.SnapshotKey))

		Expect(snap.Account.ID).To(Equal("acct-1"))
		Expect(snap.Positions).To(HaveLen(2))
		Expect(snap.Bars).To(HaveKey("AAPL"))
		Expect(snap.Bars).To(HaveKey("SPY"))
		Expect(snap.Metrics.Available()).To(BeTrue())
		Expect(snap.Metrics.MaxDrawdown).To(BeNumerically("~", -0.02, 1e-4))
		Expect(snap.Metrics.Beta).NotTo(Equal(0.0))
	})

	It("classifies sectors with an Other fallback", func() {
		svc := newService(broker)
		snap, _, err := svc.SnapshotValue(ctx)
		Expect(err).To(BeNil())
		Expect(snap.Positions[0].Sector).To(Equal("Information Technology"))
		Expect(snap.Positions[1].Sector).To(Equal(data.DefaultSector))
	})

	It("requests a year of daily bars for the holdings and the benchmark", func() {
		svc := newService(broker)
		_, err := svc.Snapshot(ctx)
		Expect(err).To(BeNil())
		Expect(broker.barSymbols).To(ConsistOf("AAPL", "XYZQ", "SPY"))
		Expect(broker.barEnd).To(Equal(now))
		Expect(broker.barStart).To(Equal(now.AddDate(0, 0, -portfolio.DefaultLookbackDays)))
	})

	It("skips the benchmark when it is disabled", func() {
		svc := newService(broker, portfolio.WithBenchmark(""))
		snap, _, err := svc.SnapshotValue(ctx)
		Expect(err).To(BeNil())
		Expect(broker.barSymbols).To(ConsistOf("AAPL", "XYZQ"))
		Expect(snap.Metrics.Beta).To(Equal(0.0))
	})

	It("still builds a snapshot when assets cannot be listed", func() {
		broker.assetsErr = errBrokerDown
		svc := newService(broker)
		snap, _, err := svc.SnapshotValue(ctx)
		Expect(err).To(BeNil())
		Expect(snap.Positions[0].Sector).To(Equal("Information Technology"))
	})

	It("serves the cached snapshot while it is fresh", func() {
		svc := newService(broker)
		_, err := svc.Snapshot(ctx)
		Expect(err).To(BeNil())

		res, err := svc.Snapshot(ctx)
		Expect(err).To(BeNil())
		Expect(res.Source).To(Equal(cache.SourceCache))
		Expect(broker.accountCalls).To(Equal(1))
	})

	It("falls back to the stale snapshot when the brokerage fails", func() {
		svc := newService(broker, portfolio.WithTTL(time.Nanosecond))
		first, err := svc.Snapshot(ctx)
		Expect(err).To(BeNil())

		time.Sleep(time.Millisecond)
		broker.accountErr = errBrokerDown
		res, err := svc.Snapshot(ctx)
		Expect(err).To(BeNil())
		Expect(res.Source).To(Equal(cache.SourceStale))
		Expect(string(res.Payload)).To(MatchJSON(string(first.Payload)))
		Expect(res.FetchErr).To(MatchError(errBrokerDown))
	})

	It("reports no data when nothing is cached and the brokerage fails", func() {
		broker.accountErr = errBrokerDown
		svc := newService(broker)
		_, err := svc.Snapshot(ctx)
		Expect(errors.Is(err, cache.ErrNoDataAvailable)).To(BeTrue())
	})

	It("produces empty metrics when there are no positions", func() {
		broker.positions = nil
		svc := newService(broker)
		snap, _, err := svc.SnapshotValue(ctx)
		Expect(err).To(BeNil())
		Expect(snap.Metrics.Available()).To(BeFalse())
		Expect(snap.Bars).To(BeEmpty())
	})

	Context("without credentials", func() {
		It("returns a configuration error", func() {
			svc := newService(nil)
			_, err := svc.Snapshot(ctx)
			Expect(errors.Is(err, data.ErrClientUnavailable)).To(BeTrue())

			var cfgErr *data.ConfigurationError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Missing).To(ConsistOf("APCA_API_KEY_ID", "APCA_API_SECRET_KEY"))
		})

		It("still serves a cached snapshot", func() {
			_, err := newService(broker).Snapshot(ctx)
			Expect(err).To(BeNil())

			res, err := newService(nil).Snapshot(ctx)
			Expect(err).To(BeNil())
			Expect(res.Source).To(Equal(cache.SourceCache))
		})
	})

	It("lists positions under their own cache key", func() {
		svc := newService(broker)
		res, err := svc.Positions(ctx)
		Expect(err).To(BeNil())
		Expect(res.Key).To(Equal(portfolio.PositionsKey))

		var positions []data.Position
		Expect(res.Decode(&positions)).To(Succeed())
		Expect(positions).To(HaveLen(2))
		Expect(positions[0].Sector).To(Equal("Information Technology"))
	})
})
