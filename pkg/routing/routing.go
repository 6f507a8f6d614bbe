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

// Package routing provides the distance-enrichment capability the
// search executor uses to attach distance_km to search hits and sort
// them, degrading to a no-op when unavailable.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mangwale/assistant-core/internal/httpclient"
)

// Client computes driving/straight-line distance between an origin
// and a set of destinations.
type Client interface {
	Distances(ctx context.Context, originLat, originLng float64, destinations [][2]float64) ([]float64, error)
}

// HTTPClient calls an operator-configured routing service. When nil,
// callers must skip enrichment entirely rather than construct one.
type HTTPClient struct {
	Client  *httpclient.Client
	BaseURL string
}

type distanceResponse struct {
	DistancesKM []float64 `json:"distances_km"`
}

// Distances calls the routing service once for the whole batch.
func (c *HTTPClient) Distances(ctx context.Context, originLat, originLng float64, destinations [][2]float64) ([]float64, error) {
	endpoint := fmt.Sprintf("%s/distances?origin=%s,%s", c.BaseURL,
		strconv.FormatFloat(originLat, 'f', -1, 64), strconv.FormatFloat(originLng, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("routing: build request: %w", err)
	}
	q := req.URL.Query()
	for _, d := range destinations {
		q.Add("dest", fmt.Sprintf("%f,%f", d[0], d[1]))
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing: call service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing: service returned %d", resp.StatusCode)
	}

	var out distanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("routing: decode response: %w", err)
	}
	return out.DistancesKM, nil
}

var _ Client = (*HTTPClient)(nil)
