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
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemConfig configures the embedded chromem-go backend, the
// zero-config default.
type ChromemConfig struct {
	PersistPath string `yaml:"persist_path,omitempty"`
	Compress    bool   `yaml:"compress,omitempty"`
}

// ChromemIndex implements Index over an in-process chromem-go
// database, no external vector service required, which suits
// dev/test deployments.
type ChromemIndex struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// NewChromemIndex builds a ChromemIndex, optionally persisting to
// disk when PersistPath is set.
func NewChromemIndex(cfg ChromemConfig) (*ChromemIndex, error) {
	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
	} else {
		db = chromem.NewDB()
	}
	if err != nil {
		return nil, fmt.Errorf("vector: open chromem db: %w", err)
	}
	return &ChromemIndex{db: db, collections: make(map[string]*chromem.Collection)}, nil
}

// identityEmbedding satisfies chromem's EmbeddingFunc contract for a
// collection whose vectors are produced externally (the embedding
// service), not by chromem itself.
func identityEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("vector: chromem collection requires externally-supplied embeddings")
}

func (c *ChromemIndex) collection(name string) (*chromem.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col, err := c.db.GetOrCreateCollection(name, nil, identityEmbedding)
	if err != nil {
		return nil, fmt.Errorf("vector: get or create chromem collection %s: %w", name, err)
	}
	c.collections[name] = col
	return col, nil
}

// Query runs a k-NN search. chromem stores metadata as strings and
// has no native range filter, so every Filter constraint is applied
// as an in-process post-filter over the (over-fetched) neighbor set
// rather than through chromem's Where predicate.
func (c *ChromemIndex) Query(ctx context.Context, collection string, embedding []float32, k int, filter Filter) ([]Hit, error) {
	col, err := c.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector: chromem query: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		payload := make(map[string]any, len(r.Metadata))
		for key, v := range r.Metadata {
			payload[key] = v
		}
		if !passesFilter(payload, filter) {
			continue
		}
		hits = append(hits, Hit{ID: r.ID, Score: float64(r.Similarity), Payload: payload})
	}
	return hits, nil
}

func passesFilter(payload map[string]any, filter Filter) bool {
	if filter.Category != "" {
		if cat, ok := payload["category"].(string); ok && cat != filter.Category {
			return false
		}
	}
	if filter.HasZoneID {
		if zone, ok := payload["zone_id"].(string); ok && zone != strconv.Itoa(filter.ZoneID) {
			return false
		}
	}
	return passesPriceFilter(payload, filter) && passesVegFilter(payload, filter)
}

// passesPriceFilter re-parses the "price" metadata value: chromem
// stores all metadata as strings, so the numeric bounds have to be
// re-parsed and compared here.
func passesPriceFilter(payload map[string]any, filter Filter) bool {
	if filter.PriceMin == nil && filter.PriceMax == nil {
		return true
	}
	raw, ok := payload["price"].(string)
	if !ok {
		return true
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return true
	}
	if filter.PriceMin != nil && price < *filter.PriceMin {
		return false
	}
	if filter.PriceMax != nil && price > *filter.PriceMax {
		return false
	}
	return true
}

func passesVegFilter(payload map[string]any, filter Filter) bool {
	if filter.Veg == nil {
		return true
	}
	raw, ok := payload["veg"].(string)
	if !ok {
		return true
	}
	veg, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return veg == *filter.Veg
}

var _ Index = (*ChromemIndex)(nil)
