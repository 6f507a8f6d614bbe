// Copyright 2025 Mangwale
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

package queryparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }

func TestParse_GoldenSet(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  Parsed
	}{
		{
			"veg under price",
			"show me veg thali under 200",
			Parsed{CleanQuery: "veg thali", Veg: b(true), PriceMax: f(200)},
		},
		{
			"non veg not stripped",
			"chicken biryani above 150",
			Parsed{CleanQuery: "chicken biryani", Veg: b(false), PriceMin: f(150)},
		},
		{
			"between range",
			"pizza between 100 and 300",
			Parsed{CleanQuery: "", Category: "fast-food", TargetModule: "food", PriceMin: f(100), PriceMax: f(300)},
		},
		{
			"rating filter",
			"find italian food rated above 4 stars",
			Parsed{CleanQuery: "food", Category: "italian", TargetModule: "food", Rating: f(4)},
		},
		{
			"module hint stripped",
			"looking for kirana store near me",
			Parsed{CleanQuery: "near me", TargetModule: "ecom"},
		},
		{
			"plain query unchanged",
			"fresh mangoes",
			Parsed{CleanQuery: "fresh mangoes"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.query)
			assert.Equal(t, tc.want.CleanQuery, got.CleanQuery)
			assert.Equal(t, tc.want.Category, got.Category)
			assert.Equal(t, tc.want.TargetModule, got.TargetModule)
			if tc.want.Veg == nil {
				assert.Nil(t, got.Veg)
			} else {
				assert.NotNil(t, got.Veg)
				assert.Equal(t, *tc.want.Veg, *got.Veg)
			}
			if tc.want.PriceMin == nil {
				assert.Nil(t, got.PriceMin)
			} else {
				assert.NotNil(t, got.PriceMin)
				assert.Equal(t, *tc.want.PriceMin, *got.PriceMin)
			}
			if tc.want.PriceMax == nil {
				assert.Nil(t, got.PriceMax)
			} else {
				assert.NotNil(t, got.PriceMax)
				assert.Equal(t, *tc.want.PriceMax, *got.PriceMax)
			}
			if tc.want.Rating == nil {
				assert.Nil(t, got.Rating)
			} else {
				assert.NotNil(t, got.Rating)
				assert.Equal(t, *tc.want.Rating, *got.Rating)
			}
		})
	}
}

func TestMerge_CallerPrecedenceOverParsedOverProfile(t *testing.T) {
	profile := Parsed{TargetModule: "food", Veg: b(true)}
	parsed := Parsed{CleanQuery: "biryani", PriceMax: f(300)}
	caller := Parsed{PriceMax: f(500)}

	got := Merge(caller, parsed, profile)

	assert.Equal(t, "biryani", got.CleanQuery)
	assert.Equal(t, "food", got.TargetModule)
	assert.NotNil(t, got.Veg)
	assert.True(t, *got.Veg)
	assert.NotNil(t, got.PriceMax)
	assert.Equal(t, 500.0, *got.PriceMax)
}

func TestMerge_EmptyCallerAndParsedFallsBackToProfile(t *testing.T) {
	profile := Parsed{TargetModule: "pharmacy"}
	got := Merge(Parsed{}, Parsed{}, profile)
	assert.Equal(t, "pharmacy", got.TargetModule)
}
