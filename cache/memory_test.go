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

package cache_test

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-dashboard/cache"
)

// countingStore records how often the backing store is read
type countingStore struct {
	cache.Store
	gets   int
	putErr error
}

func (cs *countingStore) Get(ctx context.Context, key string) (*cache.Entry, error) {
	cs.gets++
	return cs.Store.Get(ctx, key)
}

func (cs *countingStore) Put(ctx context.Context, key string, payload json.RawMessage) (*cache.Entry, error) {
	if cs.putErr != nil {
		return nil, cs.putErr
	}
	return cs.Store.Put(ctx, key, payload)
}

var _ = Describe("MemoryStore", func() {
	var (
		backing *countingStore
		mem     *cache.MemoryStore
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		fs, err := cache.NewFileStore(tempDir())
		Expect(err).To(BeNil())
		backing = &countingStore{Store: fs}
		mem, err = cache.NewMemoryStore(backing, 2)
		Expect(err).To(BeNil())
	})

	It("serves repeated reads from memory", func() {
		_, err := mem.Put(ctx, "a", []byte(`1`))
		Expect(err).To(BeNil())

		for ii := 0; ii < 3; ii++ {
			entry, err := mem.Get(ctx, "a")
			Expect(err).To(BeNil())
			Expect(string(entry.Payload)).To(Equal(`1`))
		}
		Expect(backing.gets).To(Equal(0))
	})

	It("reads through to the backing store and evicts the oldest entry", func() {
		for _, k := range []string{"a", "b", "c"} {
			_, err := mem.Put(ctx, k, []byte(`1`))
			Expect(err).To(BeNil())
		}
		Expect(mem.Len()).To(Equal(2))

		gets := backing.gets
		entry, err := mem.Get(ctx, "a")
		Expect(err).To(BeNil())
		Expect(entry).NotTo(BeNil())
		Expect(backing.gets).To(Equal(gets + 1))
	})

	It("does not cache absent keys", func() {
		entry, err := mem.Get(ctx, "missing")
		Expect(err).To(BeNil())
		Expect(entry).To(BeNil())
		Expect(mem.Len()).To(Equal(0))
	})

	It("drops the in-memory copy when the backing write fails", func() {
		_, err := mem.Put(ctx, "a", []byte(`1`))
		Expect(err).To(BeNil())

		backing.putErr = &cache.StorageError{Op: "write", Key: "a", Err: errors.New("full")}
		_, err = mem.Put(ctx, "a", []byte(`2`))
		Expect(errors.Is(err, cache.ErrStorage)).To(BeTrue())
		Expect(mem.Len()).To(Equal(0))
	})

	It("rejects a non-positive size", func() {
		_, err := cache.NewMemoryStore(backing, 0)
		Expect(errors.Is(err, cache.ErrStorage)).To(BeTrue())
	})
})
