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

package data_test

import (
	"context"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-dashboard/cache"
	"github.com/penny-vault/pv-dashboard/data"
)

type fakeMacro struct {
	calls int
	ids   []string
	obs   []data.Observation
	err   error
}

func (f *fakeMacro) GetSeries(ctx context.Context, id string) ([]data.Observation, error) {
	f.calls++
	f.ids = append(f.ids, id)
	return f.obs, f.err
}

var _ = Describe("SeriesService", func() {
	var (
		store *cache.FileStore
		orch  *cache.Orchestrator
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir, err := os.MkdirTemp("", "pvdash-series-")
		Expect(err).To(BeNil())
		DeferCleanup(os.RemoveAll, dir)

		store, err = cache.NewFileStore(dir)
		Expect(err).To(BeNil())
		orch = cache.NewOrchestrator(store)
	})

	It("formats observations as points and caches them under fred_<id>", func() {
		macro := &fakeMacro{obs: []data.Observation{
			{Date: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), Value: 1.5},
			{Date: time.Date(2022, 1, 4, 0, 0, 0, 0, time.UTC), Value: 1.75},
		}}
		svc := data.NewSeriesService(orch, macro, time.Hour)

		points, res, err := svc.Points(ctx, "DGS10")
		Expect(err).To(BeNil())
		Expect(res.Source).To(Equal(cache.SourceUpstream))
		Expect(points).To(Equal([]data.Point{{X: "2022-01-03", Y: 1.5}, {X: "2022-01-04", Y: 1.75}}))
		Expect(string(res.Payload)).To(MatchJSON(`[{"x":"2022-01-03","y":1.5},{"x":"2022-01-04","y":1.75}]`))

		entry, err := store.Get(ctx, "fred_DGS10")
		Expect(err).To(BeNil())
		Expect(entry).NotTo(BeNil())

		_, res, err = svc.Points(ctx, "DGS10")
		Expect(err).To(BeNil())
		Expect(res.Source).To(Equal(cache.SourceCache))
		Expect(macro.calls).To(Equal(1))
	})

	It("treats series ids case-insensitively", func() {
		macro := &fakeMacro{obs: []data.Observation{
			{Date: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), Value: 1.5},
		}}
		svc := data.NewSeriesService(orch, macro, time.Hour)

		_, res, err := svc.Points(ctx, "DGS10")
		Expect(err).To(BeNil())
		Expect(res.Source).To(Equal(cache.SourceUpstream))

		points, res, err := svc.Points(ctx, "dgs10")
		Expect(err).To(BeNil())
		Expect(res.Source).To(Equal(cache.SourceCache))
		Expect(points).To(Equal([]data.Point{{X: "2022-01-03", Y: 1.5}}))
		Expect(macro.calls).To(Equal(1))
		Expect(macro.ids).To(Equal([]string{"DGS10"}))
		Expect(data.SeriesKey("dgs10")).To(Equal("fred_DGS10"))
	})

	It("serves cached data without credentials", func() {
		_, err := store.Put(ctx, data.SeriesKey("GDP"), []byte(`[{"x":"2022-01-01","y":1}]`))
		Expect(err).To(BeNil())

		svc := data.NewSeriesService(orch, nil, time.Hour)
		points, _, err := svc.Points(ctx, "GDP")
		Expect(err).To(BeNil())
		Expect(points).To(HaveLen(1))
	})

	It("fails with a configuration error when nothing is cached and no credentials exist", func() {
		svc := data.NewSeriesService(orch, nil, time.Hour)
		_, err := svc.Get(ctx, "GDP")
		Expect(errors.Is(err, data.ErrClientUnavailable)).To(BeTrue())
		Expect(errors.Is(err, cache.ErrNoDataAvailable)).To(BeFalse())
	})

	It("reports no data when the series is empty and nothing is cached", func() {
		svc := data.NewSeriesService(orch, &fakeMacro{}, time.Hour)
		_, err := svc.Get(ctx, "EMPTY")
		Expect(errors.Is(err, cache.ErrNoDataAvailable)).To(BeTrue())
		Expect(errors.Is(err, data.ErrNoObservations)).To(BeTrue())
	})

	It("rejects invalid ids before touching the cache", func() {
		svc := data.NewSeriesService(orch, &fakeMacro{}, time.Hour)
		_, err := svc.Get(ctx, "../../etc/passwd")
		Expect(err).To(MatchError(data.ErrInvalidSeriesID))
	})
})
