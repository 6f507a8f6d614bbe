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

// HTTPGeocoder is the PHP-backend-backed Geocoder and ReverseGeocoder,
// routed through the shared retry/backoff client. Both directions go
// through the same geocode-api endpoint: an address parameter geocodes
// text to coordinates, a lat/lng pair reverse-geocodes. The backend
// requires moduleid and zoneid headers on every call.
type HTTPGeocoder struct {
	Client   *httpclient.Client
	BaseURL  string
	ModuleID int
	ZoneID   int
}

const geocodePath = "/api/v1/config/geocode-api"

type geocodeResponse struct {
	Lat       json.Number `json:"lat"`
	Lng       json.Number `json:"lng"`
	Formatted string      `json:"formatted_address"`
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, text string) (float64, float64, string, error) {
	out, err := g.call(ctx, map[string]string{"address": text})
	if err != nil {
		return 0, 0, "", err
	}

	lat, err1 := out.Lat.Float64()
	lng, err2 := out.Lng.Float64()
	if err1 != nil || err2 != nil {
		return 0, 0, "", fmt.Errorf("address: geocode returned non-numeric coordinates")
	}
	return lat, lng, out.Formatted, nil
}

func (g *HTTPGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	out, err := g.call(ctx, map[string]string{
		"lat": strconv.FormatFloat(lat, 'f', -1, 64),
		"lng": strconv.FormatFloat(lng, 'f', -1, 64),
	})
	if err != nil {
		return "", err
	}
	if out.Formatted == "" {
		return formatFallback(lat, lng), nil
	}
	return out.Formatted, nil
}

func (g *HTTPGeocoder) call(ctx context.Context, params map[string]string) (geocodeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+geocodePath, nil)
	if err != nil {
		return geocodeResponse{}, err
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("moduleid", strconv.Itoa(g.ModuleID))
	req.Header.Set("zoneid", strconv.Itoa(g.ZoneID))

	resp, err := g.Client.Do(req)
	if err != nil {
		return geocodeResponse{}, fmt.Errorf("address: geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geocodeResponse{}, fmt.Errorf("address: geocode service returned %d", resp.StatusCode)
	}

	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return geocodeResponse{}, fmt.Errorf("address: decode geocode response: %w", err)
	}
	return out, nil
}

var (
	_ Geocoder        = (*HTTPGeocoder)(nil)
	_ ReverseGeocoder = (*HTTPGeocoder)(nil)
)
