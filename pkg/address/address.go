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

// Package address implements address extraction: a fixed-order
// pipeline of extraction strategies over a raw user
// string, each yielding either a typed address or a need for more
// information.
package address

import (
	"context"
	"fmt"
)

// Source is the closed set of provenances an ExtractedAddress can
// carry.
type Source string

const (
	SourceSavedAddress  Source = "saved_address"
	SourceGoogleMapsURL Source = "google_maps_link"
	SourceCoordinates   Source = "coordinates"
	SourceTextGeocoded  Source = "text_geocoded"
	SourceLLMExtracted  Source = "llm_extracted"
	SourceLocationShare Source = "location_share"
	SourceSmartDefault  Source = "smart_default"
)

// Metadata carries an ExtractedAddress's optional, source-dependent
// extras.
type Metadata struct {
	URL          string
	AddressID    string
	AddressType  string
	ContactName  string
	ContactPhone string
	Landmark     string
	Road         string
	House        string
	Floor        string
	RawInput     string
	City         string
}

// ExtractedAddress is the extraction result type. Latitude/Longitude
// are pointers: unset means "no coordinates were resolved", distinct from
// 0,0 which is a valid (if unlikely) coordinate pair.
type ExtractedAddress struct {
	Address    string
	Latitude   *float64
	Longitude  *float64
	Source     Source
	Confidence float64
	Metadata   Metadata
}

// HasCoordinates reports whether both lat/lng are set.
func (a ExtractedAddress) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// Valid enforces the coordinate-validity invariant: when set,
// -90<=lat<=90 and -180<=lng<=180.
func (a ExtractedAddress) Valid() bool {
	if !a.HasCoordinates() {
		return true
	}
	return *a.Latitude >= -90 && *a.Latitude <= 90 && *a.Longitude >= -180 && *a.Longitude <= 180
}

// Result is what each Strategy, and the Extractor as a whole, returns.
type Result struct {
	Success              bool
	Address              *ExtractedAddress
	NeedsMoreInfo        bool
	ClarificationPrompt  string
	ClarificationOptions []string
	Err                  error
}

// Strategy is one extraction approach in the fixed priority pipeline.
// Implementations must be side-effect-free on failure: a strategy
// that can't handle the input returns Result{Success: false} with no
// error, letting the Extractor fall through to the next strategy. An
// Err value signals a transient failure (network, upstream 5xx)
// worth surfacing distinctly from "this input doesn't match me".
type Strategy interface {
	Name() string
	Extract(ctx context.Context, raw string) Result
}

// Extractor runs Strategies in the fixed order they were registered
// in. The priority order is structural, not conventional, so
// NewExtractor takes the slice directly rather than letting callers
// register out of order.
type Extractor struct {
	strategies []Strategy
}

// NewExtractor builds an Extractor over an ordered strategy slice.
// The canonical order is Maps URL, raw coordinates, text geocoding,
// LLM extraction.
func NewExtractor(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

var clarificationOptions = []string{
	"share your live location",
	"type your full address",
	"paste a Google Maps link",
	"send coordinates (latitude, longitude)",
}

// Extract tries each strategy in order and returns the first success.
// If every strategy fails, it returns a clarification request rather
// than an error.
func (e *Extractor) Extract(ctx context.Context, raw string) Result {
	for _, s := range e.strategies {
		res := s.Extract(ctx, raw)
		if res.Success {
			return res
		}
		if res.NeedsMoreInfo {
			if len(res.ClarificationOptions) == 0 {
				res.ClarificationOptions = clarificationOptions
			}
			return res
		}
	}
	return Result{
		NeedsMoreInfo:        true,
		ClarificationPrompt:  "I couldn't figure out your address from that. Could you try one of these?",
		ClarificationOptions: clarificationOptions,
	}
}

func coordErr(lat, lng float64) error {
	return fmt.Errorf("address: coordinates out of range: %f,%f", lat, lng)
}
