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
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// New creates a single column dataframe. Rows are sorted by date; when a date
// repeats the last value wins.
func New(colName string, dates []time.Time, vals []float64) *DataFrame {
	byDate := make(map[int64]float64, len(dates))
	index := make([]time.Time, 0, len(dates))
	for idx, dt := range dates {
		key := dt.UnixNano()
		if _, ok := byDate[key]; !ok {
			index = append(index, dt)
		}
		byDate[key] = vals[idx]
	}

	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })

	col := make([]float64, len(index))
	for idx, dt := range index {
		col[idx] = byDate[dt.UnixNano()]
	}

	return &DataFrame{
		Dates:    index,
		ColNames: []string{colName},
		Vals:     [][]float64{col},
	}
}

// ColIndex returns the index of the specified column or -1 if it doesn't exist
func (df *DataFrame) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}
	return -1
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame) ColCount() int {
	return len(df.ColNames)
}

// Column returns the values of the named column
func (df *DataFrame) Column(colName string) ([]float64, error) {
	idx := df.ColIndex(colName)
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, colName)
	}
	return df.Vals[idx], nil
}

// Copy creates a deep copy of the dataframe
func (df *DataFrame) Copy() *DataFrame {
	df2 := &DataFrame{
		ColNames: make([]string, len(df.ColNames)),
		Dates:    make([]time.Time, len(df.Dates)),
		Vals:     make([][]float64, len(df.Vals)),
	}

	copy(df2.ColNames, df.ColNames)
	copy(df2.Dates, df.Dates)

	for idx := range df2.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}

	return df2
}

// Drop removes rows that contain the value `val` in any column; NaN matches NaN
func (df *DataFrame) Drop(val float64) *DataFrame {
	isNA := math.IsNaN(val)
	newVals := make([][]float64, len(df.Vals))
	newDates := make([]time.Time, 0, len(df.Dates))

	for rowIdx, dt := range df.Dates {
		keep := true
		for _, col := range df.Vals {
			rowVal := col[rowIdx]
			if rowVal == val || (isNA && math.IsNaN(rowVal)) {
				keep = false
				break
			}
		}

		if keep {
			newDates = append(newDates, dt)
			for colIdx, col := range df.Vals {
				newVals[colIdx] = append(newVals[colIdx], col[rowIdx])
			}
		}
	}

	df.Vals = newVals
	df.Dates = newDates
	return df
}

// DropEmptyColumns removes columns that hold no value other than NaN
func (df *DataFrame) DropEmptyColumns() *DataFrame {
	colNames := make([]string, 0, len(df.ColNames))
	vals := make([][]float64, 0, len(df.Vals))

	for colIdx, col := range df.Vals {
		for _, v := range col {
			if !math.IsNaN(v) {
				colNames = append(colNames, df.ColNames[colIdx])
				vals = append(vals, col)
				break
			}
		}
	}

	df.ColNames = colNames
	df.Vals = vals
	return df
}

// End returns the last date in the DataFrame
func (df *DataFrame) End() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[len(df.Dates)-1]
}

// ForwardFill replaces NaN values with the most recent prior value in the same
// column. Values before a column's first observation stay NaN.
func (df *DataFrame) ForwardFill() *DataFrame {
	for _, col := range df.Vals {
		last := math.NaN()
		for rowIdx, v := range col {
			if math.IsNaN(v) {
				col[rowIdx] = last
			} else {
				last = v
			}
		}
	}
	return df
}

// InnerJoin returns a new dataframe with the columns of both dataframes
// restricted to the dates present in both. Column names must not collide.
func (df *DataFrame) InnerJoin(other *DataFrame) (*DataFrame, error) {
	for _, name := range other.ColNames {
		if df.ColIndex(name) != -1 {
			return nil, fmt.Errorf("%w: duplicate column %s", ErrDateIndexNotAligned, name)
		}
	}

	otherRows := make(map[int64]int, len(other.Dates))
	for rowIdx, dt := range other.Dates {
		otherRows[dt.UnixNano()] = rowIdx
	}

	joined := &DataFrame{
		ColNames: append(append([]string{}, df.ColNames...), other.ColNames...),
		Vals:     make([][]float64, len(df.ColNames)+len(other.ColNames)),
	}

	for rowIdx, dt := range df.Dates {
		otherIdx, ok := otherRows[dt.UnixNano()]
		if !ok {
			continue
		}

		joined.Dates = append(joined.Dates, dt)
		for colIdx, col := range df.Vals {
			joined.Vals[colIdx] = append(joined.Vals[colIdx], col[rowIdx])
		}
		for colIdx, col := range other.Vals {
			offset := len(df.ColNames) + colIdx
			joined.Vals[offset] = append(joined.Vals[offset], col[otherIdx])
		}
	}

	return joined, nil
}

// Insert a new column to the end of the dataframe
func (df *DataFrame) Insert(name string, col []float64) (*DataFrame, error) {
	if len(col) != len(df.Dates) {
		return nil, fmt.Errorf("%w: column %s has %d rows, want %d", ErrDateIndexNotAligned, name, len(col), len(df.Dates))
	}
	df.ColNames = append(df.ColNames, name)
	df.Vals = append(df.Vals, col)
	return df, nil
}

// Len returns the number of rows in the dataframe
func (df *DataFrame) Len() int {
	return len(df.Dates)
}

// PctChange computes the simple period-over-period return of every column
// and returns a new dataframe one row shorter than df
func (df *DataFrame) PctChange() *DataFrame {
	res := &DataFrame{
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}

	if df.Len() < 2 {
		res.Dates = []time.Time{}
		for colIdx := range res.Vals {
			res.Vals[colIdx] = []float64{}
		}
		return res
	}

	res.Dates = df.Dates[1:]
	for colIdx, col := range df.Vals {
		ret := make([]float64, len(col)-1)
		for rowIdx := 1; rowIdx < len(col); rowIdx++ {
			ret[rowIdx-1] = col[rowIdx]/col[rowIdx-1] - 1.0
		}
		res.Vals[colIdx] = ret
	}

	return res
}

// Start returns the first date of the dataframe
func (df *DataFrame) Start() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[0]
}

// Table renders the dataframe as an ASCII table
func (df *DataFrame) Table() string {
	if len(df.Dates) == 0 {
		return "<NO DATA>"
	}

	tableCols := append([]string{"Date"}, df.ColNames...)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	if len(footer) > 1 {
		footer[1] = fmt.Sprintf("%d", df.Len())
	}
	table.SetFooter(footer)
	table.SetBorder(false)

	for rowIdx, dt := range df.Dates {
		row := make([]string, 0, len(df.Vals)+1)
		row = append(row, dt.Format("2006-01-02"))
		for _, col := range df.Vals {
			row = append(row, fmt.Sprintf("%.4f", col[rowIdx]))
		}
		table.Append(row)
	}

	table.Render()
	return s.String()
}

// Trim the dataframe to the specified date range (inclusive) and return a new
// dataframe sharing storage with df
func (df *DataFrame) Trim(begin, end time.Time) *DataFrame {
	df2 := &DataFrame{
		ColNames: df.ColNames,
		Dates:    []time.Time{},
		Vals:     make([][]float64, len(df.Vals)),
	}
	for colIdx := range df2.Vals {
		df2.Vals[colIdx] = []float64{}
	}

	if end.Before(begin) || df.Len() == 0 || end.Before(df.Start()) || begin.After(df.End()) {
		return df2
	}

	beginIdx := sort.Search(len(df.Dates), func(i int) bool {
		return !df.Dates[i].Before(begin)
	})

	endIdx := sort.Search(len(df.Dates), func(i int) bool {
		return df.Dates[i].After(end)
	})

	df2.Dates = df.Dates[beginIdx:endIdx]
	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = col[beginIdx:endIdx]
	}

	return df2
}
