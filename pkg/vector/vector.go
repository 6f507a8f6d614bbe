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

// Package vector implements the k-NN index client the semantic
// search branch queries against. Three backends implement one Index
// interface, selected by config via a factory.
package vector

import "context"

// Hit is one k-NN search result.
type Hit struct {
	ID       string
	Score    float64
	Payload  map[string]any
}

// Filter is the set of constraints the semantic branch applies: veg,
// price range, category keyword, and a mandatory zone_id when known.
type Filter struct {
	Veg        *bool
	PriceMin   *float64
	PriceMax   *float64
	Category   string
	ZoneID     int
	HasZoneID  bool
}

// Index is the capability every vector backend implements.
type Index interface {
	// Query runs a k-NN search in collection against embedding,
	// returning at most k hits matching filter.
	Query(ctx context.Context, collection string, embedding []float32, k int, filter Filter) ([]Hit, error)
}

// BackendType selects which concrete Index a ProviderConfig builds.
type BackendType string

const (
	BackendQdrant   BackendType = "qdrant"
	BackendPinecone BackendType = "pinecone"
	BackendChromem  BackendType = "chromem"
)

// Config selects and configures one backend. Exactly one of the
// nested configs is read, chosen by Type.
type Config struct {
	Type     BackendType
	Qdrant   QdrantConfig
	Pinecone PineconeConfig
	Chromem  ChromemConfig
}

// NewIndex builds the configured Index, defaulting to chromem (no
// external service required) when Type is unset.
func NewIndex(cfg Config) (Index, error) {
	switch cfg.Type {
	case BackendQdrant:
		return NewQdrantIndex(cfg.Qdrant)
	case BackendPinecone:
		return NewPineconeIndex(cfg.Pinecone)
	case BackendChromem, "":
		return NewChromemIndex(cfg.Chromem)
	default:
		return NewChromemIndex(cfg.Chromem)
	}
}
