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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGeocoder struct {
	lat, lng  float64
	formatted string
	called    bool
}

func (f *fakeGeocoder) Geocode(ctx context.Context, text string) (float64, float64, string, error) {
	f.called = true
	return f.lat, f.lng, f.formatted, nil
}

type alwaysFailStrategy struct{ name string }

func (s *alwaysFailStrategy) Name() string { return s.name }
func (s *alwaysFailStrategy) Extract(ctx context.Context, raw string) Result {
	return Result{Success: false}
}

func TestExtractor_OrderLaw_EarlierStrategyWins(t *testing.T) {
	// Both strategies would succeed on the same input; the one
	// registered first must win.
	lat1, lng1 := 19.0, 73.0
	first := resultStrategy{name: "first", result: Result{
		Success: true,
		Address: &ExtractedAddress{Address: "first", Latitude: &lat1, Longitude: &lng1, Source: SourceCoordinates, Confidence: 1},
	}}
	lat2, lng2 := 20.0, 74.0
	second := resultStrategy{name: "second", result: Result{
		Success: true,
		Address: &ExtractedAddress{Address: "second", Latitude: &lat2, Longitude: &lng2, Source: SourceTextGeocoded, Confidence: 1},
	}}

	e := NewExtractor(&first, &second)
	res := e.Extract(context.Background(), "anything")

	require.True(t, res.Success)
	assert.Equal(t, "first", res.Address.Address)
}

type resultStrategy struct {
	name   string
	result Result
}

func (s *resultStrategy) Name() string { return s.name }
func (s *resultStrategy) Extract(ctx context.Context, raw string) Result {
	return s.result
}

func TestExtractor_AllFail_ReturnsClarification(t *testing.T) {
	e := NewExtractor(&alwaysFailStrategy{"a"}, &alwaysFailStrategy{"b"})
	res := e.Extract(context.Background(), "???")

	assert.False(t, res.Success)
	assert.True(t, res.NeedsMoreInfo)
	assert.NotEmpty(t, res.ClarificationPrompt)
	assert.NotEmpty(t, res.ClarificationOptions)
}

func TestCoordinatesStrategy_ValidatesRange(t *testing.T) {
	s := &CoordinatesStrategy{}

	res := s.Extract(context.Background(), "19.9975, 73.7898")
	require.True(t, res.Success)
	assert.True(t, res.Address.Valid())
	assert.Equal(t, SourceCoordinates, res.Address.Source)

	outOfRange := s.Extract(context.Background(), "95.0, 200.0")
	assert.False(t, outOfRange.Success)
	assert.Error(t, outOfRange.Err)
}

func TestCoordinatesStrategy_NoMatch(t *testing.T) {
	s := &CoordinatesStrategy{}
	res := s.Extract(context.Background(), "I live near the old bus stand")
	assert.False(t, res.Success)
	assert.NoError(t, res.Err)
}

func TestTextGeocodeStrategy_KnownLocalityFixture(t *testing.T) {
	fake := &fakeGeocoder{}
	s := &TextGeocodeStrategy{Geocoder: fake}
	res := s.Extract(context.Background(), "I stay in Nashik near college road")
	require.True(t, res.Success)
	assert.Equal(t, SourceTextGeocoded, res.Address.Source)
	assert.True(t, res.Address.Valid())
	assert.False(t, fake.called, "known locality fixtures must not hit the external geocoder")
}

func TestTextGeocodeStrategy_NoAddressKeyword_FailsImmediately(t *testing.T) {
	fake := &fakeGeocoder{}
	s := &TextGeocodeStrategy{Geocoder: fake}
	res := s.Extract(context.Background(), "hello there")
	assert.False(t, res.Success)
	assert.False(t, fake.called, "non-address-looking text must fail before reaching the geocoder")
}

func TestTextGeocodeStrategy_ExternalGeocode(t *testing.T) {
	s := &TextGeocodeStrategy{Geocoder: &fakeGeocoder{lat: 21.1, lng: 79.08, formatted: "Nagpur, Maharashtra"}}
	res := s.Extract(context.Background(), "123 MG Road, near City Mall")
	require.True(t, res.Success)
	assert.Equal(t, "Nagpur, Maharashtra", res.Address.Address)
}

func TestNormalizeZoneID_AllThreeShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"plain int", `7`, 7},
		{"array", `[3,9]`, 3},
		{"json-encoded string array", `"[5,1]"`, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeZoneID(json.RawMessage(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeZoneID_Unrecognized(t *testing.T) {
	_, err := normalizeZoneID(json.RawMessage(`{"unexpected":true}`))
	assert.Error(t, err)
}
