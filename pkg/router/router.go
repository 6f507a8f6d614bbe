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

// Package router implements intent routing: a fixed precedence
// pipeline over an inbound message that ends in a routed agent type.
// Deterministic shortcuts (gamification, direct-action payloads, cart
// patterns) run before the remote NLU classifier, and a compound
// keyword fallback catches what the classifier misses.
package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/mangwale/assistant-core/pkg/nlu"
)

// Result is what Route returns.
type Result struct {
	Intent     string
	Confidence float64
	Entities   map[string]nlu.EntityValue
	AgentType  string
	Source     string // which precedence step produced this result
}

// defaultAgentTable is the closed intent->agent-type configuration,
// with a FAQ fallback for anything not listed.
var defaultAgentTable = map[string]string{
	"order_food":        "food_agent",
	"search_product":    "ecom_agent",
	"book_parcel":       "parcel_agent",
	"parcel_booking":    "parcel_agent",
	"track_order":       "order_status_agent",
	"cancel_order":      "order_status_agent",
	"reorder":           "food_agent",
	"repeat_order":      "food_agent",
	"refund_request":    "support_agent",
	"schedule_delivery": "parcel_agent",
	"login":             "auth_agent",
	"add_to_cart":       "ecom_agent",
	"remove_from_cart":  "ecom_agent",
	"view_cart":         "ecom_agent",
	"update_quantity":   "ecom_agent",
	"play_game":         "game_agent",
}

const faqAgentType = "faq_agent"

// gamificationLexicon is the small exact/substring shortcut lexicon
// checked before anything else.
var gamificationLexicon = []string{"play game", "rewards", "spin the wheel", "my points", "leaderboard"}

var (
	removeFromCartPattern = regexp.MustCompile(`(?i)\b(remove|delete|take out|clear|empty)\b.*\b(cart|item)\b`)
	viewCartPattern       = regexp.MustCompile(`(?i)\b(view|show|see)\b.*\bcart\b|^my cart$`)
	updateQuantityPattern = regexp.MustCompile(`(?i)\b(change|update|make it|set)\b.*\b(quantity|qty|count)\b`)
	directActionPattern   = regexp.MustCompile(`^(order_item|add_to_cart):(\S+)$`)
	multiIntentSeparators = []string{" and also ", " and then ", "; ", " also "}
)

// compoundIntentDef is one entry in the fixed fallback list tried
// when the classifier is unsure.
type compoundIntentDef struct {
	intent          string
	keywordFamilies [][]string
	minHits         int
}

var compoundIntents = []compoundIntentDef{
	{"order_food", [][]string{{"order", "hungry"}, {"food", "biryani", "pizza", "meal"}}, 2},
	{"search_product", [][]string{{"find", "search", "show"}, {"product", "item", "buy"}}, 2},
	{"book_parcel", [][]string{{"parcel", "courier", "package", "delivery"}}, 1},
	{"parcel_booking", [][]string{{"send", "ship"}, {"parcel", "package"}}, 2},
	{"track_order", [][]string{{"track", "where is", "status"}, {"order"}}, 2},
	{"cancel_order", [][]string{{"cancel"}, {"order"}}, 2},
	{"reorder", [][]string{{"reorder", "order again", "same as last time"}}, 1},
	{"repeat_order", [][]string{{"repeat"}, {"order"}}, 2},
	{"refund_request", [][]string{{"refund", "money back"}, {"order", "payment"}}, 2},
	{"schedule_delivery", [][]string{{"schedule", "later", "tomorrow"}, {"delivery", "deliver"}}, 2},
	{"login", [][]string{{"login", "log in", "sign in"}}, 1},
}

// Router fuses the deterministic shortcuts with the remote NLU
// classifier.
type Router struct {
	Classifier nlu.Classifier
	AgentTable map[string]string
}

// New builds a Router with the default agent table; AgentTable can be
// overridden for tests or operator-supplied config.
func New(classifier nlu.Classifier) *Router {
	return &Router{Classifier: classifier, AgentTable: defaultAgentTable}
}

// Route runs the precedence pipeline: gamification shortcut,
// direct-action payload, cart pattern, remote NLU, compound fallback.
func (r *Router) Route(ctx context.Context, message string, nluCtx nlu.Context) (Result, error) {
	trimmed := strings.TrimSpace(message)
	lowered := strings.ToLower(trimmed)

	if intent, ok := r.matchGamification(lowered); ok {
		return r.finalize(Result{Intent: intent, Confidence: 1.0, Source: "gamification"}), nil
	}

	if intent, entity, ok := matchDirectAction(trimmed); ok {
		return r.finalize(Result{
			Intent:     intent,
			Confidence: 1.0,
			Entities:   map[string]nlu.EntityValue{"itemId": nlu.NewEntityValue(entity)},
			Source:     "direct_action",
		}), nil
	}

	if intent, ok := matchCartPattern(lowered); ok {
		return r.finalize(Result{Intent: intent, Confidence: 0.95, Source: "cart_pattern"}), nil
	}

	if r.Classifier == nil {
		return r.finalize(Result{Intent: "unknown", Confidence: 0, Source: "no_classifier"}), nil
	}

	cls, err := r.Classifier.Classify(ctx, trimmed, nluCtx)
	if err != nil {
		return Result{}, err
	}

	if cls.Intent == "unknown" || cls.Confidence < 0.6 || containsSeparator(lowered) {
		if intent, ok := matchCompoundIntent(lowered); ok {
			return r.finalize(Result{Intent: intent, Confidence: 0.7, Source: "compound_fallback"}), nil
		}
	}

	return r.finalize(Result{
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		Entities:   cls.Entities,
		Source:     "nlu",
	}), nil
}

func (r *Router) finalize(res Result) Result {
	table := r.AgentTable
	if table == nil {
		table = defaultAgentTable
	}
	if agent, ok := table[res.Intent]; ok {
		res.AgentType = agent
	} else {
		res.AgentType = faqAgentType
	}
	return res
}

func (r *Router) matchGamification(lowered string) (string, bool) {
	for _, kw := range gamificationLexicon {
		if strings.Contains(lowered, kw) {
			return "play_game", true
		}
	}
	return "", false
}

// matchDirectAction handles direct-action payloads: both "order_item:<id>"
// and "add_to_cart:<id>" payloads route to the same add_to_cart intent.
func matchDirectAction(trimmed string) (intent, entity string, ok bool) {
	m := directActionPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", "", false
	}
	return "add_to_cart", m[2], true
}

func matchCartPattern(lowered string) (string, bool) {
	switch {
	case removeFromCartPattern.MatchString(lowered):
		return "remove_from_cart", true
	case viewCartPattern.MatchString(lowered):
		return "view_cart", true
	case updateQuantityPattern.MatchString(lowered):
		return "update_quantity", true
	default:
		return "", false
	}
}

func containsSeparator(lowered string) bool {
	for _, sep := range multiIntentSeparators {
		if strings.Contains(lowered, sep) {
			return true
		}
	}
	return false
}

// matchCompoundIntent tries the fixed
// ordered fallback list, where most intents require >=2 keyword
// family hits but parcel/delivery vocabulary needs only one.
func matchCompoundIntent(lowered string) (string, bool) {
	for _, def := range compoundIntents {
		hits := 0
		for _, family := range def.keywordFamilies {
			for _, kw := range family {
				if strings.Contains(lowered, kw) {
					hits++
					break
				}
			}
		}
		if hits >= def.minHits {
			return def.intent, true
		}
	}
	return "", false
}
