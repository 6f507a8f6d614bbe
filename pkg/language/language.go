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

// Package language implements language detection: script-dominance
// analysis plus a small Hinglish/Marathi lexeme
// check, used to annotate each session with a detected language
// before routing.
package language

import (
	"fmt"
	"strings"
)

// Script is the dominant Unicode block detected in a message.
type Script string

const (
	ScriptLatin      Script = "latin"
	ScriptDevanagari Script = "devanagari"
	ScriptOther      Script = "other"
	ScriptNone       Script = "none"
)

// Analysis is the detection output.
type Analysis struct {
	Language    string // "en" | "hi" | "mr" | "hinglish" | "mixed"
	Script      Script
	Confidence  float64
	Instruction string
}

// scriptRange is one Unicode block entry in the dominance table.
type scriptRange struct {
	script Script
	lo, hi rune
}

// ranges covers Latin + the recognized Indic scripts. Kept as a
// static, independently testable table rather than inline
// comparisons.
var ranges = []scriptRange{
	{ScriptDevanagari, 0x0900, 0x097F},
	{ScriptOther, 0x0980, 0x09FF}, // Bengali/Assamese block, grouped as "other Indic"
	{ScriptOther, 0x0A80, 0x0AFF}, // Gujarati
	{ScriptOther, 0x0B80, 0x0BFF}, // Tamil
	{ScriptOther, 0x0C00, 0x0C7F}, // Telugu
	{ScriptOther, 0x0C80, 0x0CFF}, // Kannada
	{ScriptLatin, 0x0041, 0x005A},
	{ScriptLatin, 0x0061, 0x007A},
}

var hinglishLexemes = []string{
	"hai", "kya", "kaise", "nahi", "mujhe", "chahiye", "kitna", "bhai",
	"acha", "theek", "haan", "yaar", "karo", "dikhao", "batao",
}

var marathiLexemes = []string{
	"आहे",   // aahe
	"काय",   // kaay
	"तुम्ही", // tumhi
	"मला",   // mala
}

// Analyze classifies text by dominant script and returns a language
// tag + an LLM system-prompt pinning instruction.
func Analyze(text string) Analysis {
	counts := map[Script]int{}
	total := 0

	for _, r := range text {
		s := classify(r)
		if s == ScriptNone {
			continue
		}
		counts[s]++
		total++
	}

	if total == 0 {
		return Analysis{Language: "en", Script: ScriptNone, Confidence: 0.5, Instruction: instructionFor("en")}
	}

	dominant, dominantCount := ScriptNone, 0
	for s, c := range counts {
		if c > dominantCount {
			dominant, dominantCount = s, c
		}
	}
	dominance := float64(dominantCount) / float64(total)

	// Mixed: at least two scripts individually exceed a minor-share
	// threshold (10%) and no script dominates (< 0.7 overall).
	minorShareScripts := 0
	for _, c := range counts {
		if float64(c)/float64(total) >= 0.10 {
			minorShareScripts++
		}
	}
	if minorShareScripts >= 2 && dominance < 0.7 {
		return Analysis{Language: "mixed", Script: dominant, Confidence: dominance, Instruction: instructionFor("mixed")}
	}

	lowered := strings.ToLower(text)

	switch dominant {
	case ScriptLatin:
		if containsAny(lowered, hinglishLexemes) {
			return Analysis{Language: "hinglish", Script: ScriptLatin, Confidence: dominance, Instruction: instructionFor("hinglish")}
		}
		return Analysis{Language: "en", Script: ScriptLatin, Confidence: dominance, Instruction: instructionFor("en")}
	case ScriptDevanagari:
		if containsAny(text, marathiLexemes) {
			return Analysis{Language: "mr", Script: ScriptDevanagari, Confidence: dominance, Instruction: instructionFor("mr")}
		}
		return Analysis{Language: "hi", Script: ScriptDevanagari, Confidence: dominance, Instruction: instructionFor("hi")}
	default:
		return Analysis{Language: "en", Script: dominant, Confidence: dominance, Instruction: instructionFor("en")}
	}
}

func classify(r rune) Script {
	for _, rg := range ranges {
		if r >= rg.lo && r <= rg.hi {
			return rg.script
		}
	}
	return ScriptNone
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

var languageNames = map[string]string{
	"en":       "English",
	"hi":       "Hindi",
	"mr":       "Marathi",
	"hinglish": "Hinglish (romanized Hindi mixed with English)",
	"mixed":    "a mix of languages",
}

func instructionFor(lang string) string {
	name, ok := languageNames[lang]
	if !ok {
		name = "English"
	}
	return fmt.Sprintf("Respond in %s, matching the user's own language and script.", name)
}
