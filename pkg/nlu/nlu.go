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

// Package nlu declares the capability interface the intent router
// binds against for remote NLU classification, so the core never
// couples to a specific vendor.
package nlu

import "context"

// EntityValue tolerates the two shapes an NLU classifier may return
// for any given entity: a bare string or a list of strings. Every
// entity read site goes through AsString/
// AsSlice instead of type-asserting the raw value directly.
type EntityValue struct {
	raw any
}

// NewEntityValue wraps an NLU-supplied entity value of either shape.
func NewEntityValue(raw any) EntityValue { return EntityValue{raw: raw} }

// AsString returns the first value regardless of whether the
// underlying shape was a bare string or a slice.
func (v EntityValue) AsString() (string, bool) {
	switch t := v.raw.(type) {
	case string:
		return t, t != ""
	case []string:
		if len(t) == 0 {
			return "", false
		}
		return t[0], true
	case []any:
		if len(t) == 0 {
			return "", false
		}
		s, ok := t[0].(string)
		return s, ok
	default:
		return "", false
	}
}

// AsSlice normalizes either shape into a []string.
func (v EntityValue) AsSlice() []string {
	switch t := v.raw.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Context is what the router passes alongside the raw message to give
// the classifier conversational grounding.
type Context struct {
	ActiveModule   string
	ActiveFlowID   string
	LastBotMessage string
}

// Classification is the NLU classifier's response shape.
type Classification struct {
	Intent     string
	Confidence float64
	Entities   map[string]EntityValue
	Raw        map[string]any
}

// Classifier is the remote NLU capability.
type Classifier interface {
	Classify(ctx context.Context, message string, nluCtx Context) (Classification, error)
}
