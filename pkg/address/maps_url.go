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
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const maxRedirects = 5

var (
	shortLinkPattern   = regexp.MustCompile(`maps\.app\.goo\.gl/\S+`)
	atCoordPattern     = regexp.MustCompile(`@(-?\d{1,3}\.\d+),(-?\d{1,3}\.\d+)`)
	queryCoordPattern  = regexp.MustCompile(`[?&]q=(-?\d{1,3}\.\d+),\s*(-?\d{1,3}\.\d+)`)
	searchCoordPattern = regexp.MustCompile(`/search/(-?\d{1,3}\.\d+),\+?(-?\d{1,3}\.\d+)`)
	placeNamePattern   = regexp.MustCompile(`/place/([^/?]+)`)
	mapsURLPattern     = regexp.MustCompile(`https?://\S*(?:google\.[a-z.]+/maps|maps\.google\.[a-z.]+|maps\.app\.goo\.gl|goo\.gl/maps)\S*`)
)

// MapsURLStrategy is the first extraction strategy. It resolves
// goo.gl short links (following redirects), extracts lat/lng from the
// several URL shapes Google Maps produces, and falls back to
// geocoding a decoded place name.
type MapsURLStrategy struct {
	Geocoder Geocoder
}

func (s *MapsURLStrategy) Name() string { return "google_maps_url" }

func (s *MapsURLStrategy) Extract(ctx context.Context, raw string) Result {
	match := mapsURLPattern.FindString(raw)
	if match == "" {
		return Result{Success: false}
	}

	finalURL, err := s.resolve(ctx, match, 0)
	if err != nil {
		return Result{Success: false, Err: err}
	}

	return s.extractFromURL(ctx, raw, finalURL)
}

// resolve follows short-link redirects up to maxRedirects hops.
func (s *MapsURLStrategy) resolve(ctx context.Context, link string, depth int) (string, error) {
	if !shortLinkPattern.MatchString(link) {
		return link, nil
	}
	if depth >= maxRedirects {
		return link, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}

	httpClient := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("address: resolve short link: %w", err)
	}
	defer resp.Body.Close()

	if loc := resp.Header.Get("Location"); loc != "" {
		return s.resolve(ctx, loc, depth+1)
	}
	return link, nil
}

func (s *MapsURLStrategy) extractFromURL(ctx context.Context, raw, finalURL string) Result {
	if m := atCoordPattern.FindStringSubmatch(finalURL); m != nil {
		return s.coordResult(raw, m[1], m[2])
	}
	if m := queryCoordPattern.FindStringSubmatch(finalURL); m != nil {
		return s.coordResult(raw, m[1], m[2])
	}
	if m := searchCoordPattern.FindStringSubmatch(finalURL); m != nil {
		return s.coordResult(raw, m[1], m[2])
	}
	if m := placeNamePattern.FindStringSubmatch(finalURL); m != nil {
		return s.geocodePlace(ctx, raw, m[1])
	}
	return Result{Success: false}
}

func (s *MapsURLStrategy) coordResult(raw, latStr, lngStr string) Result {
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	if err1 != nil || err2 != nil {
		return Result{Success: false}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Result{Success: false, Err: coordErr(lat, lng)}
	}
	return Result{
		Success: true,
		Address: &ExtractedAddress{
			Address:    formatFallback(lat, lng),
			Latitude:   &lat,
			Longitude:  &lng,
			Source:     SourceGoogleMapsURL,
			Confidence: 1.0,
			Metadata:   Metadata{RawInput: raw, URL: raw},
		},
	}
}

func (s *MapsURLStrategy) geocodePlace(ctx context.Context, raw, encodedName string) Result {
	decoded, err := url.QueryUnescape(strings.ReplaceAll(encodedName, "+", " "))
	if err != nil {
		decoded = encodedName
	}
	if s.Geocoder == nil {
		return Result{Success: false}
	}

	lat, lng, formatted, err := s.Geocoder.Geocode(ctx, decoded)
	if err != nil {
		return Result{Success: false, Err: err}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Result{Success: false, Err: coordErr(lat, lng)}
	}
	if formatted == "" {
		formatted = decoded
	}

	return Result{
		Success: true,
		Address: &ExtractedAddress{
			Address:    formatted,
			Latitude:   &lat,
			Longitude:  &lng,
			Source:     SourceGoogleMapsURL,
			Confidence: 0.85,
			Metadata:   Metadata{RawInput: raw, URL: raw, Landmark: decoded},
		},
	}
}

var _ Strategy = (*MapsURLStrategy)(nil)
