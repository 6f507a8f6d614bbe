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

// Package filter implements the content filter: a synchronous,
// I/O-free refusal check that every inbound message passes through
// before any session access.
package filter

import (
	"strings"
	"sync"
	"unicode"
)

// Reason is the closed set of refusal reasons.
type Reason string

const (
	ReasonProfanity      Reason = "profanity"
	ReasonAdultContent   Reason = "adult_content"
	ReasonHarmfulContent Reason = "harmful_content"
	ReasonOffTopic       Reason = "off_topic"
	ReasonSpam           Reason = "spam"
)

// Verdict is the outcome of Filter.Check.
type Verdict struct {
	Blocked  bool
	Reason   Reason
	Response string
}

// Lexicon is the data a Filter is built from: word lists per reason
// plus a competitor name list that is logged, never blocked. Kept as
// data (not a switch statement) so operators can extend it via
// config hot-reload without a binary rebuild.
type Lexicon struct {
	Profanity      []string
	AdultContent   []string
	HarmfulContent []string
	OffTopic       []string
	Competitors    []string
	Replies        map[Reason]CannedReply
}

// CannedReply holds the bilingual refusal text for one reason.
type CannedReply struct {
	English string
	Hindi   string
}

// Filter is a compiled, ready-to-check content filter. The lexicon
// can be swapped at runtime via Reload when the operator edits the
// word-list config.
type Filter struct {
	mu  sync.RWMutex
	lex Lexicon
}

// New compiles a Lexicon into a Filter. Word lists are lower-cased
// once here so Check never allocates for case-folding on the hot path.
func New(lex Lexicon) *Filter {
	f := &Filter{}
	f.Reload(lex)
	return f
}

// Reload recompiles and swaps the lexicon. Safe to call while Check
// runs on other goroutines.
func (f *Filter) Reload(lex Lexicon) {
	compiled := Lexicon{
		Profanity:      lower(lex.Profanity),
		AdultContent:   lower(lex.AdultContent),
		HarmfulContent: lower(lex.HarmfulContent),
		OffTopic:       lower(lex.OffTopic),
		Competitors:    lower(lex.Competitors),
		Replies:        lex.Replies,
	}
	if compiled.Replies == nil {
		compiled.Replies = DefaultReplies()
	}
	f.mu.Lock()
	f.lex = compiled
	f.mu.Unlock()
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// DefaultReplies is the built-in bilingual canned-reply table, used
// when a Lexicon's Replies map is empty.
func DefaultReplies() map[Reason]CannedReply {
	return map[Reason]CannedReply{
		ReasonProfanity: {
			English: "Let's keep things respectful. How can I help you shop today?",
			Hindi:   "कृपया सम्मानजनक भाषा का प्रयोग करें। मैं आपकी किस तरह मदद कर सकता हूं?",
		},
		ReasonAdultContent: {
			English: "I can't help with that here. Is there something I can order or find for you?",
			Hindi:   "मैं इसमें मदद नहीं कर सकता। क्या मैं आपके लिए कुछ ऑर्डर या खोज सकता हूं?",
		},
		ReasonHarmfulContent: {
			English: "I can't assist with that request.",
			Hindi:   "मैं इस अनुरोध में सहायता नहीं कर सकता।",
		},
		ReasonOffTopic: {
			English: "I'm here to help with orders, deliveries and local shopping. What do you need?",
			Hindi:   "मैं ऑर्डर, डिलीवरी और स्थानीय खरीदारी में मदद के लिए यहां हूं। आपको क्या चाहिए?",
		},
		ReasonSpam: {
			English: "That message looks like spam to me. Could you rephrase what you need?",
			Hindi:   "यह संदेश स्पैम जैसा लग रहा है। कृपया फिर से बताएं कि आपको क्या चाहिए?",
		},
	}
}

// CompetitorHit is returned alongside a Verdict so callers can log
// competitor mentions without blocking them.
type CompetitorHit struct {
	Matched bool
	Name    string
}

// Check runs the filter. Empty or shorter-than-2-char messages are
// always allowed. No session I/O happens here or in any caller that
// checks Check first.
func (f *Filter) Check(message string) (Verdict, CompetitorHit) {
	trimmed := strings.TrimSpace(message)
	if len(trimmed) < 2 {
		return Verdict{Blocked: false}, CompetitorHit{}
	}

	lowered := strings.ToLower(trimmed)

	f.mu.RLock()
	lex := f.lex
	f.mu.RUnlock()

	hit := competitorHit(lowered, lex.Competitors)

	if reason, ok := matchAny(lowered, lex.Profanity); ok {
		return block(lex, ReasonProfanity, reason), hit
	}
	if reason, ok := matchAny(lowered, lex.AdultContent); ok {
		return block(lex, ReasonAdultContent, reason), hit
	}
	if reason, ok := matchAny(lowered, lex.HarmfulContent); ok {
		return block(lex, ReasonHarmfulContent, reason), hit
	}
	if isSpam(trimmed) {
		return block(lex, ReasonSpam, ""), hit
	}
	if reason, ok := matchAny(lowered, lex.OffTopic); ok {
		return block(lex, ReasonOffTopic, reason), hit
	}

	return Verdict{Blocked: false}, hit
}

func block(lex Lexicon, reason Reason, matched string) Verdict {
	reply := lex.Replies[reason]
	return Verdict{Blocked: true, Reason: reason, Response: reply.English}
}

func competitorHit(lowered string, competitors []string) CompetitorHit {
	for _, name := range competitors {
		if strings.Contains(lowered, name) {
			return CompetitorHit{Matched: true, Name: name}
		}
	}
	return CompetitorHit{}
}

func matchAny(lowered string, terms []string) (string, bool) {
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, term) {
			return term, true
		}
	}
	return "", false
}

// isSpam flags a long (>200 chars) message with zero whitespace as
// spam.
func isSpam(message string) bool {
	if len([]rune(message)) <= 200 {
		return false
	}
	for _, r := range message {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
