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

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone-backed Index, an alternate
// factory-selected backend.
type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host,omitempty"`
	IndexName string `yaml:"index_name"`
}

// PineconeIndex implements Index over a managed Pinecone index.
type PineconeIndex struct {
	client    *pinecone.Client
	indexName string
}

// NewPineconeIndex builds a PineconeIndex.
func NewPineconeIndex(cfg PineconeConfig) (*PineconeIndex, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vector: pinecone api key is required")
	}

	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}

	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("vector: connect pinecone: %w", err)
	}

	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "commerce-items"
	}
	return &PineconeIndex{client: client, indexName: indexName}, nil
}

// Query runs a k-NN search, translating Filter into Pinecone's
// metadata-filter struct (only set when at least one constraint
// applies; an empty filter struct is rejected by Pinecone).
func (p *PineconeIndex) Query(ctx context.Context, collection string, embedding []float32, k int, filter Filter) ([]Hit, error) {
	index, err := p.client.DescribeIndex(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("vector: describe pinecone index %s: %w", collection, err)
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: index.Host})
	if err != nil {
		return nil, fmt.Errorf("vector: connect pinecone index: %w", err)
	}
	defer conn.Close()

	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          embedding,
		TopK:            uint32(k),
		IncludeMetadata: true,
	}
	if mf := pineconeMetadataFilter(filter); mf != nil {
		req.MetadataFilter = mf
	}

	resp, err := conn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vector: pinecone query: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Vector == nil {
			continue
		}
		hit := Hit{ID: m.Vector.Id, Score: float64(m.Score)}
		if m.Vector.Metadata != nil {
			hit.Payload = m.Vector.Metadata.AsMap()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func pineconeMetadataFilter(filter Filter) *structpb.Struct {
	fields := map[string]any{}
	if filter.Veg != nil {
		fields["veg"] = *filter.Veg
	}
	if filter.Category != "" {
		fields["category"] = filter.Category
	}
	if filter.HasZoneID {
		fields["zone_id"] = filter.ZoneID
	}
	if filter.PriceMin != nil || filter.PriceMax != nil {
		price := map[string]any{}
		if filter.PriceMin != nil {
			price["$gte"] = *filter.PriceMin
		}
		if filter.PriceMax != nil {
			price["$lte"] = *filter.PriceMax
		}
		fields["price"] = price
	}
	if len(fields) == 0 {
		return nil
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil
	}
	return s
}

var _ Index = (*PineconeIndex)(nil)
