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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mangwale/assistant-core/pkg/agent"
)

func TestRequestContextFromAgent_DecodesVegetarianSignal(t *testing.T) {
	actx := agent.Context{
		ZoneID: 42,
		Module: "",
		UserPreferenceContext: map[string]any{
			"is_vegetarian":  "true", // weakly-typed: string, not bool
			"default_module": "food",
		},
	}

	rctx := RequestContextFromAgent(actx, nil)
	assert.True(t, rctx.HasZoneID)
	assert.Equal(t, 42, rctx.ZoneID)
	assert.True(t, rctx.UserVegSetExplicitly)
	assert.True(t, rctx.UserIsVegetarian)
	assert.Equal(t, "food", rctx.Module)
}

func TestRequestContextFromAgent_NoPreferencesLeavesVegUnset(t *testing.T) {
	actx := agent.Context{Module: "ecom"}
	rctx := RequestContextFromAgent(actx, nil)
	assert.False(t, rctx.UserVegSetExplicitly)
	assert.Equal(t, "ecom", rctx.Module)
}

func TestRequestContextFromAgent_ExplicitModuleWinsOverPreference(t *testing.T) {
	actx := agent.Context{
		Module:                "pharmacy",
		UserPreferenceContext: map[string]any{"default_module": "food"},
	}
	rctx := RequestContextFromAgent(actx, nil)
	assert.Equal(t, "pharmacy", rctx.Module)
}
