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

	"github.com/mangwale/assistant-core/pkg/llm"
)

var llmExtractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"address":                map[string]any{"type": "string"},
		"landmark":               map[string]any{"type": "string"},
		"confidence":             map[string]any{"type": "number"},
		"needs_clarification":    map[string]any{"type": "boolean"},
		"clarification_question": map[string]any{"type": "string"},
	},
	"required": []string{"address", "confidence", "needs_clarification"},
}

type llmExtraction struct {
	Address               string  `json:"address"`
	Landmark              string  `json:"landmark"`
	Confidence            float64 `json:"confidence"`
	NeedsClarification    bool    `json:"needs_clarification"`
	ClarificationQuestion string  `json:"clarification_question"`
}

// LLMStrategy is the last extraction strategy before giving up. On a
// confident extraction, it geocodes the extracted text with its own
// Geocoder (the service TextGeocodeStrategy also calls) to obtain
// coordinates; TextGeocodeStrategy's address-keyword check and
// locality fixtures are not applied to that text.
type LLMStrategy struct {
	Provider llm.Provider
	Geocoder Geocoder
}

func (s *LLMStrategy) Name() string { return "llm_extraction" }

func (s *LLMStrategy) Extract(ctx context.Context, raw string) Result {
	if s.Provider == nil {
		return Result{Success: false}
	}

	prompt := fmt.Sprintf(
		"Extract a delivery address from this message. Return JSON with "+
			"address, landmark, confidence (0-1), needs_clarification, and "+
			"clarification_question if unclear.\n\nMessage: %q", raw)

	text, err := s.Provider.GenerateJSON(ctx, prompt, llmExtractionSchema)
	if err != nil {
		return Result{Success: false, Err: fmt.Errorf("address: llm extraction: %w", err)}
	}

	var ex llmExtraction
	if err := json.Unmarshal([]byte(text), &ex); err != nil {
		return Result{Success: false, Err: fmt.Errorf("address: parse llm extraction: %w", err)}
	}

	if ex.NeedsClarification || ex.Confidence < 0.5 {
		return Result{
			NeedsMoreInfo:       true,
			ClarificationPrompt: firstNonEmpty(ex.ClarificationQuestion, "Could you share more detail about your address?"),
		}
	}

	if s.Geocoder == nil {
		return Result{Success: false}
	}

	lat, lng, formatted, err := s.Geocoder.Geocode(ctx, ex.Address)
	if err != nil {
		return Result{Success: false, Err: err}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Result{Success: false, Err: coordErr(lat, lng)}
	}
	if formatted == "" {
		formatted = ex.Address
	}

	return Result{
		Success: true,
		Address: &ExtractedAddress{
			Address:    formatted,
			Latitude:   &lat,
			Longitude:  &lng,
			Source:     SourceLLMExtracted,
			Confidence: ex.Confidence,
			Metadata:   Metadata{RawInput: raw, Landmark: ex.Landmark},
		},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ Strategy = (*LLMStrategy)(nil)
