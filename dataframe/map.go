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

package dataframe

import (
	"math"
	"sort"
	"time"
)

// Union merges every dataframe in the map into a single dataframe indexed by
// the union of all dates. Cells with no observation are NaN. Columns are
// ordered by name.
func (dfMap Map) Union() *DataFrame {
	keys := make([]string, 0, len(dfMap))
	for k := range dfMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[int64]time.Time)
	for _, df := range dfMap {
		for _, dt := range df.Dates {
			seen[dt.UnixNano()] = dt
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, dt := range seen {
		dates = append(dates, dt)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowOf := make(map[int64]int, len(dates))
	for rowIdx, dt := range dates {
		rowOf[dt.UnixNano()] = rowIdx
	}

	res := &DataFrame{
		Dates:    dates,
		ColNames: make([]string, 0, len(keys)),
		Vals:     make([][]float64, 0, len(keys)),
	}

	for _, k := range keys {
		df := dfMap[k]
		for colIdx, colName := range df.ColNames {
			col := make([]float64, len(dates))
			for rowIdx := range col {
				col[rowIdx] = math.NaN()
			}
			for rowIdx, dt := range df.Dates {
				col[rowOf[dt.UnixNano()]] = df.Vals[colIdx][rowIdx]
			}

			name := colName
			if len(df.ColNames) == 1 {
				name = k
			}
			res.ColNames = append(res.ColNames, name)
			res.Vals = append(res.Vals, col)
		}
	}

	return res
}
