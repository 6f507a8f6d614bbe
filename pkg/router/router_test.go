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

package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangwale/assistant-core/pkg/nlu"
)

type fakeClassifier struct {
	result nlu.Classification
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, message string, nluCtx nlu.Context) (nlu.Classification, error) {
	f.calls++
	return f.result, f.err
}

func TestRoute_GamificationShortcutWinsOverEverythingElse(t *testing.T) {
	classifier := &fakeClassifier{}
	r := New(classifier)

	res, err := r.Route(context.Background(), "take me to rewards", nlu.Context{})
	require.NoError(t, err)
	assert.Equal(t, "play_game", res.Intent)
	assert.Equal(t, "game_agent", res.AgentType)
	assert.Equal(t, 0, classifier.calls, "gamification match must short-circuit before any NLU call")
}

func TestRoute_DirectActionPayload(t *testing.T) {
	r := New(&fakeClassifier{})
	res, err := r.Route(context.Background(), "add_to_cart:sku-42", nlu.Context{})
	require.NoError(t, err)
	assert.Equal(t, "add_to_cart", res.Intent)
	id, ok := res.Entities["itemId"].AsString()
	require.True(t, ok)
	assert.Equal(t, "sku-42", id)
}

func TestRoute_CartPatterns(t *testing.T) {
	r := New(&fakeClassifier{})

	cases := map[string]string{
		"please remove this item from my cart": "remove_from_cart",
		"show my cart":                         "view_cart",
		"can you update the quantity to 3":     "update_quantity",
	}
	for msg, want := range cases {
		res, err := r.Route(context.Background(), msg, nlu.Context{})
		require.NoError(t, err)
		assert.Equal(t, want, res.Intent, "message: %s", msg)
	}
}

func TestRoute_NLUHighConfidencePassesThrough(t *testing.T) {
	classifier := &fakeClassifier{result: nlu.Classification{Intent: "greeting", Confidence: 0.95}}
	r := New(classifier)

	res, err := r.Route(context.Background(), "hi there", nlu.Context{})
	require.NoError(t, err)
	assert.Equal(t, "greeting", res.Intent)
	assert.Equal(t, "faq_agent", res.AgentType)
}

func TestRoute_CompoundFallback_OnUnknownLowConfidence(t *testing.T) {
	classifier := &fakeClassifier{result: nlu.Classification{Intent: "unknown", Confidence: 0.2}}
	r := New(classifier)

	res, err := r.Route(context.Background(), "I want to order food biryani please", nlu.Context{})
	require.NoError(t, err)
	assert.Equal(t, "order_food", res.Intent)
	assert.Equal(t, "food_agent", res.AgentType)
}

func TestRoute_CompoundFallback_ParcelNeedsOnlyOneHit(t *testing.T) {
	classifier := &fakeClassifier{result: nlu.Classification{Intent: "unknown", Confidence: 0.1}}
	r := New(classifier)

	res, err := r.Route(context.Background(), "I need a courier", nlu.Context{})
	require.NoError(t, err)
	assert.Equal(t, "book_parcel", res.Intent)
}

func TestRoute_UnmappedIntentFallsBackToFAQAgent(t *testing.T) {
	classifier := &fakeClassifier{result: nlu.Classification{Intent: "chitchat", Confidence: 0.9}}
	r := New(classifier)

	res, err := r.Route(context.Background(), "how are you", nlu.Context{})
	require.NoError(t, err)
	assert.Equal(t, faqAgentType, res.AgentType)
}
