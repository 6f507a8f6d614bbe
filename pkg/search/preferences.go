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

package search

import (
	"github.com/mitchellh/mapstructure"

	"github.com/mangwale/assistant-core/pkg/agent"
)

// preferenceView is the typed shape a tolerant mapstructure decode
// pulls out of the orchestrator's open UserPreferenceContext bag
// (the PHP backend's saved-preferences response has no fixed schema
// the core owns). WeaklyTypedInput lets the common "1"/1/true
// spellings of a boolean preference all decode into Vegetarian.
type preferenceView struct {
	Vegetarian    *bool  `mapstructure:"is_vegetarian"`
	DefaultModule string `mapstructure:"default_module"`
}

func decodePreferences(raw map[string]any) preferenceView {
	var view preferenceView
	if raw == nil {
		return view
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &view,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return preferenceView{}
	}
	// Decode errors mean the bag didn't carry these fields; fall back
	// to the zero view rather than failing the search.
	_ = decoder.Decode(raw)
	return view
}

// RequestContextFromAgent builds a RequestContext from the
// orchestrator's agent.Context (the zone/module inputs and the
// vegetarian signal), decoding the open preference bag with
// decodePreferences instead of type-asserting it ad hoc.
func RequestContextFromAgent(actx agent.Context, loc *LatLng) RequestContext {
	rctx := RequestContext{
		UserID:    actx.UserID,
		Module:    actx.Module,
		ZoneID:    actx.ZoneID,
		HasZoneID: actx.ZoneID != 0,
		Location:  loc,
	}

	prefs := decodePreferences(actx.UserPreferenceContext)
	if prefs.Vegetarian != nil {
		rctx.UserVegSetExplicitly = true
		rctx.UserIsVegetarian = *prefs.Vegetarian
	}
	if rctx.Module == "" {
		rctx.Module = prefs.DefaultModule
	}
	return rctx
}
