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
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-dashboard/common"
	"github.com/rs/zerolog/log"
)

// FileStore keeps one file per key in a directory. Each file holds the JSON
// envelope {"timestamp": ..., "data": ...}, optionally lz4 compressed.
type FileStore struct {
	dir  string
	opts *options
}

// NewFileStore creates the cache directory if needed
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "init", Key: dir, Err: err}
	}

	fs := &FileStore{
		dir:  dir,
		opts: newOptions(opts),
	}

	log.Debug().Str("Dir", dir).Bool("Compress", fs.opts.compress).Msg("file cache opened")
	return fs, nil
}

// Dir returns the directory the store writes to
func (fs *FileStore) Dir() string {
	return fs.dir
}

// Path returns the file used for key
func (fs *FileStore) Path(key string) string {
	name := sanitizeKey(key) + ".json"
	if fs.opts.compress {
		name += ".lz4"
	}
	return filepath.Join(fs.dir, name)
}

// Get reads the entry stored under key; a missing file is not an error
func (fs *FileStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := os.ReadFile(fs.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "read", Key: key, Err: err}
	}

	if fs.opts.compress {
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

// Put replaces the entry for key and stamps it with the current time
func (fs *FileStore) Put(ctx context.Context, key string, payload json.RawMessage) (*Entry, error) {
	prev, err := fs.Get(ctx, key)
	if err != nil {
		// an unreadable previous entry is about to be replaced anyway
		log.Warn().Err(err).Str("Key", key).Msg("overwriting unreadable cache entry")
		prev = nil
	}

	entry := stamp(key, payload, prev, fs.opts.now())
	raw, err := encodeEntry(entry)
	if err != nil {
		return nil, &StorageError{Op: "encode", Key: key, Err: err}
	}

	if fs.opts.compress {
		raw, err = common.Compress(raw)
		if err != nil {
			return nil, &StorageError{Op: "compress", Key: key, Err: err}
		}
	}

	if err := fs.writeAtomic(fs.Path(key), raw); err != nil {
		return nil, &StorageError{Op: "write", Key: key, Err: err}
	}

	return entry, nil
}

// writeAtomic writes to a temp file in the cache directory and renames it
// over the target so readers never observe a partial file.
func (fs *FileStore) writeAtomic(target string, raw []byte) error {
	tmpFile, err := os.CreateTemp(fs.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(raw); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}

// sanitizeKey makes a key safe for use as a filename
func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}
