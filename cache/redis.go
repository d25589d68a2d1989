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
	"errors"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-dashboard/common"
)

// RedisStore keeps entries in redis so several processes can share one cache.
// Keys never expire in redis; freshness is decided by the entry timestamp.
type RedisStore struct {
	rdb  *redis.Client
	opts *options
}

// NewRedisStore wraps an existing redis client
func NewRedisStore(rdb *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{
		rdb:  rdb,
		opts: newOptions(opts),
	}
}

// NewRedisStoreFromURL parses a redis:// URL and connects lazily
func NewRedisStoreFromURL(url string, opts ...Option) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, &StorageError{Op: "init", Key: url, Err: err}
	}
	return NewRedisStore(redis.NewClient(opt), opts...), nil
}

func (rs *RedisStore) redisKey(key string) string {
	return rs.opts.prefix + key
}

// Get reads the entry stored under key; a missing key is not an error
func (rs *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := rs.rdb.Get(ctx, rs.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, &StorageError{Op: "read", Key: key, Err: err}
	}

	if rs.opts.compress {
		raw, err = common.Decompress(raw)
		if err != nil {
			return nil, &StorageError{Op: "decompress", Key: key, Err: err}
		}
	}

	entry, err := decodeEntry(key, raw)
	if err != nil {
		return nil, &StorageError{Op: "decode", Key: key, Err: err}
	}
	return entry, nil
}

// Put replaces the entry for key
func (rs *RedisStore) Put(ctx context.Context, key string, payload json.RawMessage) (*Entry, error) {
	prev, err := rs.Get(ctx, key)
	if err != nil {
		var storageErr *StorageError
		if errors.As(err, &storageErr) && storageErr.Op == "read" {
			return nil, err
		}
		// corrupt entries are replaced
		prev = nil
	}

	entry := stamp(key, payload, prev, rs.opts.now())
	raw, err := encodeEntry(entry)
	if err != nil {
		return nil, &StorageError{Op: "encode", Key: key, Err: err}
	}

	if rs.opts.compress {
		raw, err = common.Compress(raw)
		if err != nil {
			return nil, &StorageError{Op: "compress", Key: key, Err: err}
		}
	}

	if err := rs.rdb.Set(ctx, rs.redisKey(key), raw, 0).Err(); err != nil {
		return nil, &StorageError{Op: "write", Key: key, Err: err}
	}
	return entry, nil
}

// Close releases the redis connection pool
func (rs *RedisStore) Close() error {
	return rs.rdb.Close()
}
