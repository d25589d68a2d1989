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
	"errors"
	"fmt"
)

var (
	ErrStorage         = errors.New("cache storage failure")
	ErrFetch           = errors.New("upstream fetch failed")
	ErrNoDataAvailable = errors.New("fetch failed and no cached data is available")
	ErrInvalidEnvelope = errors.New("cache entry is missing timestamp or data")
)

// StorageError is returned when the backing store cannot be read or written.
// It is never converted into a fallback; callers decide what to do with it.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// FetchError wraps the error returned by a fetch operation
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// NoDataError signals that the fetch failed and nothing, fresh or stale, is
// cached under the key.
type NoDataError struct {
	Key   string
	Cause *FetchError
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data available for %q: %v", e.Key, e.Cause.Err)
}

func (e *NoDataError) Unwrap() error { return e.Cause }

func (e *NoDataError) Is(target error) bool { return target == ErrNoDataAvailable }

// fatal is implemented by fetch errors that must reach the caller unchanged
// instead of triggering the stale fallback (e.g. missing credentials).
type fatal interface {
	Fatal() bool
}

func isFatal(err error) bool {
	var f fatal
	return errors.As(err, &f) && f.Fatal()
}
