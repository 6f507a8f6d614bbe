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

package vector

import (
	"context"
	"runtime"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChromemCollection(t *testing.T, idx *ChromemIndex, name string, docs []chromem.Document) {
	t.Helper()
	col, err := idx.collection(name)
	require.NoError(t, err)
	require.NoError(t, col.AddDocuments(context.Background(), docs, runtime.NumCPU()))
}

func ptr(f float64) *float64 { return &f }

func TestChromemIndex_Query_FiltersByPriceAndVeg(t *testing.T) {
	idx, err := NewChromemIndex(ChromemConfig{})
	require.NoError(t, err)

	seedChromemCollection(t, idx, "ecom_items_v2", []chromem.Document{
		{ID: "1", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"name": "Paneer Thali", "price": "180", "veg": "true"}},
		{ID: "2", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"name": "Chicken Biryani", "price": "220", "veg": "false"}},
		{ID: "3", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"name": "Veg Thali Deluxe", "price": "350", "veg": "true"}},
	})

	veg := true
	hits, err := idx.Query(context.Background(), "ecom_items_v2", []float32{1, 0, 0}, 10, Filter{Veg: &veg, PriceMax: ptr(200)})
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].ID)
}

func TestChromemIndex_Query_CategoryWhereFilter(t *testing.T) {
	idx, err := NewChromemIndex(ChromemConfig{})
	require.NoError(t, err)

	seedChromemCollection(t, idx, "food_items_v2", []chromem.Document{
		{ID: "a", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"name": "Spring Rolls", "category": "chinese"}},
		{ID: "b", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"name": "Margherita", "category": "fast-food"}},
	})

	hits, err := idx.Query(context.Background(), "food_items_v2", []float32{0, 1, 0}, 10, Filter{Category: "chinese"})
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestChromemIndex_Query_UnknownCollectionIsCreatedLazily(t *testing.T) {
	idx, err := NewChromemIndex(ChromemConfig{})
	require.NoError(t, err)

	hits, err := idx.Query(context.Background(), "pharmacy_items_v2", []float32{1, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
