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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-dashboard/cache"
)

var _ = Describe("RedisStore", func() {
	It("rejects malformed urls", func() {
		_, err := cache.NewRedisStoreFromURL("http://not-redis")
		Expect(errors.Is(err, cache.ErrStorage)).To(BeTrue())
	})

	It("reports an unreachable server as a storage error", func() {
		store, err := cache.NewRedisStoreFromURL("redis://127.0.0.1:1/0")
		Expect(err).To(BeNil())
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err = store.Get(ctx, "k")
		Expect(errors.Is(err, cache.ErrStorage)).To(BeTrue())

		var storageErr *cache.StorageError
		Expect(errors.As(err, &storageErr)).To(BeTrue())
		Expect(storageErr.Op).To(Equal("read"))

		_, err = store.Put(ctx, "k", []byte(`1`))
		Expect(errors.Is(err, cache.ErrStorage)).To(BeTrue())
	})
})
