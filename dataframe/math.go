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

	"gonum.org/v1/gonum/floats"
)

// WeightedSum computes ∑ weights[col] * df[col] for every row. Columns absent
// from weights contribute nothing; weights naming an unknown column is an error.
func (df *DataFrame) WeightedSum(weights map[string]float64) ([]float64, error) {
	res := make([]float64, df.Len())
	for colName, w := range weights {
		colIdx := df.ColIndex(colName)
		if colIdx == -1 {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, colName)
		}
		floats.AddScaled(res, w, df.Vals[colIdx])
	}
	return res, nil
}

// Growth compounds the returns in each column into the value of 1 unit
// invested at the start and returns a new dataframe
func (df *DataFrame) Growth() *DataFrame {
	df = df.Copy()
	for _, col := range df.Vals {
		value := 1.0
		for rowIdx, r := range col {
			value *= 1 + r
			col[rowIdx] = value
		}
	}
	return df
}
