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

package address

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mangwale/assistant-core/internal/httpclient"
)

// ServiceAreaValidation is the outcome of a serviceable-area check,
// separate from the extraction pipeline.
type ServiceAreaValidation struct {
	Valid    bool
	ZoneID   int
	ZoneName string
	Err      error
}

// ServiceAreaValidator checks whether a coordinate pair falls inside
// a deliverable zone, via the PHP backend's get-zone-id endpoint.
type ServiceAreaValidator struct {
	Client  *httpclient.Client
	BaseURL string
}

const zonePath = "/api/v1/config/get-zone-id"

type zoneResponse struct {
	ZoneID   json.RawMessage `json:"zone_id"`
	ZoneName string          `json:"zone_name"`
}

// Validate calls the zone service and normalizes its zone_id field,
// which is ambiguously typed across callers (primitive int, JSON
// array, or a JSON-encoded string of an array). A coordinate outside
// every zone comes back with an empty zone_id, reported as
// Valid=false without an error.
func (v *ServiceAreaValidator) Validate(ctx context.Context, lat, lng float64) ServiceAreaValidation {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+zonePath, nil)
	if err != nil {
		return ServiceAreaValidation{Err: err}
	}
	q := req.URL.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	req.URL.RawQuery = q.Encode()

	resp, err := v.Client.Do(req)
	if err != nil {
		return ServiceAreaValidation{Err: fmt.Errorf("address: validate service area: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ServiceAreaValidation{Valid: false}
	}
	if resp.StatusCode != http.StatusOK {
		return ServiceAreaValidation{Err: fmt.Errorf("address: zone service returned %d", resp.StatusCode)}
	}

	var out zoneResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ServiceAreaValidation{Err: fmt.Errorf("address: decode zone response: %w", err)}
	}

	zoneID, err := normalizeZoneID(out.ZoneID)
	if err != nil {
		return ServiceAreaValidation{Valid: false}
	}

	return ServiceAreaValidation{Valid: true, ZoneID: zoneID, ZoneName: out.ZoneName}
}

// normalizeZoneID collapses the three shapes the zone service has
// been observed to return into a single int, picking the first
// element when the payload is an array.
func normalizeZoneID(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("address: empty zone_id")
	}

	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt, nil
	}

	var asArray []int
	if err := json.Unmarshal(raw, &asArray); err == nil {
		if len(asArray) == 0 {
			return 0, fmt.Errorf("address: empty zone_id array")
		}
		return asArray[0], nil
	}

	// JSON-encoded string of an array, e.g. `"[3,7]"`.
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var nested []int
		if err := json.Unmarshal([]byte(asString), &nested); err == nil && len(nested) > 0 {
			return nested[0], nil
		}
	}

	return 0, fmt.Errorf("address: unrecognized zone_id shape: %s", string(raw))
}
