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
	"regexp"
	"strconv"
	"strings"
)

// rawCoordPattern matches a bare "lat, lng" or "lat lng" pair,
// optionally prefixed with "lat:"/"lng:" style labels.
var rawCoordPattern = regexp.MustCompile(`(?i)(?:lat(?:itude)?\s*[:=]?\s*)?(-?\d{1,3}\.\d+)\s*[,\s]\s*(?:lo?ng(?:itude)?\s*[:=]?\s*)?(-?\d{1,3}\.\d+)`)

// CoordinatesStrategy is the second extraction strategy: a bare
// "float, float" pair.
type CoordinatesStrategy struct {
	Reverse ReverseGeocoder
}

func (s *CoordinatesStrategy) Name() string { return "raw_coordinates" }

func (s *CoordinatesStrategy) Extract(ctx context.Context, raw string) Result {
	m := rawCoordPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Result{Success: false}
	}

	lat, err1 := strconv.ParseFloat(m[1], 64)
	lng, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return Result{Success: false}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Result{Success: false, Err: coordErr(lat, lng)}
	}

	text := ""
	if s.Reverse != nil {
		if t, err := s.Reverse.ReverseGeocode(ctx, lat, lng); err == nil {
			text = t
		}
	}
	if text == "" {
		text = formatFallback(lat, lng)
	}

	return Result{
		Success: true,
		Address: &ExtractedAddress{
			Address:    text,
			Latitude:   &lat,
			Longitude:  &lng,
			Source:     SourceCoordinates,
			Confidence: 1.0,
			Metadata:   Metadata{RawInput: raw},
		},
	}
}

var _ Strategy = (*CoordinatesStrategy)(nil)
