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

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant-backed Index, the primary
// production backend.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

// QdrantIndex implements Index over a Qdrant collection.
type QdrantIndex struct {
	client *qdrant.Client
}

// NewQdrantIndex dials Qdrant's gRPC endpoint.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: connect qdrant: %w", err)
	}
	return &QdrantIndex{client: client}, nil
}

// Query runs a k-NN search with the filters (veg, price range,
// category, mandatory zone_id) translated into a Qdrant must-filter.
func (q *QdrantIndex) Query(ctx context.Context, collection string, embedding []float32, k int, filter Filter) ([]Hit, error) {
	req := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if conditions := buildQdrantConditions(filter); len(conditions) > 0 {
		req.Filter = &qdrant.Filter{Must: conditions}
	}

	resp, err := q.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vector: qdrant search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, Hit{
			ID:      pointIDString(p.GetId()),
			Score:   float64(p.GetScore()),
			Payload: payloadToMap(p.GetPayload()),
		})
	}
	return hits, nil
}

func buildQdrantConditions(filter Filter) []*qdrant.Condition {
	var conditions []*qdrant.Condition

	if filter.Veg != nil {
		conditions = append(conditions, fieldMatch("veg", &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: *filter.Veg}}))
	}
	if filter.Category != "" {
		conditions = append(conditions, fieldMatch("category", &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: filter.Category}}))
	}
	if filter.HasZoneID {
		conditions = append(conditions, fieldMatch("zone_id", &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(filter.ZoneID)}}))
	}
	if filter.PriceMin != nil || filter.PriceMax != nil {
		r := &qdrant.Range{}
		if filter.PriceMin != nil {
			r.Gte = filter.PriceMin
		}
		if filter.PriceMax != nil {
			r.Lte = filter.PriceMax
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "price",
					Range: r,
				},
			},
		})
	}
	return conditions
}

func fieldMatch(key string, match *qdrant.Match) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: match,
			},
		},
	}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToInterface(v)
	}
	return out
}

func valueToInterface(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.Kind.(type) {
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(kind.StructValue.GetFields()))
		for k, fv := range kind.StructValue.GetFields() {
			m[k] = valueToInterface(fv)
		}
		return m
	case *qdrant.Value_ListValue:
		list := kind.ListValue.GetValues()
		out := make([]any, len(list))
		for i, lv := range list {
			out[i] = valueToInterface(lv)
		}
		return out
	default:
		return nil
	}
}

var _ Index = (*QdrantIndex)(nil)
