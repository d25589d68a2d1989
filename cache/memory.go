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

package cache

import (
	"context"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru"
)

// MemoryStore keeps recently used entries in process memory in front of a
// durable store. Writes go to the backing store first so the durable copy
// is never older than the in-memory one.
type MemoryStore struct {
	backing Store
	lru     *lru.Cache
}

// NewMemoryStore wraps backing with an LRU holding at most size entries
func NewMemoryStore(backing Store, size int) (*MemoryStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, &StorageError{Op: "init", Key: "lru", Err: err}
	}

	return &MemoryStore{
		backing: backing,
		lru:     c,
	}, nil
}

func (ms *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	if v, ok := ms.lru.Get(key); ok {
		return v.(*Entry), nil
	}

	entry, err := ms.backing.Get(ctx, key)
	if err != nil || entry == nil {
		return entry, err
	}

	ms.lru.Add(key, entry)
	return entry, nil
}

func (ms *MemoryStore) Put(ctx context.Context, key string, payload json.RawMessage) (*Entry, error) {
	entry, err := ms.backing.Put(ctx, key, payload)
	if err != nil {
		ms.lru.Remove(key)
		return nil, err
	}

	ms.lru.Add(key, entry)
	return entry, nil
}

// Len returns the number of entries held in memory
func (ms *MemoryStore) Len() int {
	return ms.lru.Len()
}
