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

// Package queryparser extracts structured filters and a cleaned
// query string from a free-text search message.
package queryparser

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsed is the parse output. Optional fields are pointers so the
// orchestrator's caller-precedence merge can distinguish "parser
// found nothing" from "parser found zero".
type Parsed struct {
	CleanQuery   string
	Veg          *bool
	PriceMin     *float64
	PriceMax     *float64
	Category     string
	Rating       *float64
	TargetModule string
}

type moduleKeyword struct {
	word   string
	module string
}

// moduleKeywords is an ordered slice, not a map, so the first match is
// deterministic across runs.
var moduleKeywords = []moduleKeyword{
	{"dukan", "ecom"},
	{"kirana", "ecom"},
	{"grocery", "ecom"},
	{"groceries", "ecom"},
	{"pharmacy", "pharmacy"},
	{"medicine", "pharmacy"},
	{"restaurant", "food"},
	{"store", "ecom"},
	{"shop", "ecom"},
}

var vegKeywords = []string{"veg", "vegetarian", "pure veg"}
var nonVegKeywords = []string{
	"chicken", "mutton", "fish", "egg", "eggs", "prawns", "beef", "pork", "non veg", "non-veg",
}

type cuisineWord struct {
	word string
	tag  string
}

// cuisineCategories is likewise an ordered slice for deterministic
// first-match behavior.
var cuisineCategories = []cuisineWord{
	{"chinese", "chinese"},
	{"italian", "italian"},
	{"indian", "indian"},
	{"mexican", "mexican"},
	{"fast food", "fast-food"},
	{"burger", "fast-food"},
	{"pizza", "fast-food"},
	{"dessert", "dessert"},
	{"sweet", "dessert"},
	{"bakery", "dessert"},
}

var fillerPhrases = []string{
	"show me", "find", "search", "i want", "looking for",
}

var (
	reUnder   = regexp.MustCompile(`(?i)\b(?:under|below|max|upto|up to)\s*(?:rs\.?|₹)?\s*(\d+(?:\.\d+)?)`)
	reAbove   = regexp.MustCompile(`(?i)\b(?:above|min|from)\s*(?:rs\.?|₹)?\s*(\d+(?:\.\d+)?)`)
	reBetween = regexp.MustCompile(`(?i)\bbetween\s*(?:rs\.?|₹)?\s*(\d+(?:\.\d+)?)\s*(?:and|to|-)\s*(?:rs\.?|₹)?\s*(\d+(?:\.\d+)?)`)
	reRating  = regexp.MustCompile(`(?i)\brated?\s*(?:>=|at least|above)?\s*(\d(?:\.\d)?)\s*stars?`)
)

// Parse extracts structured filters from a raw search query.
func Parse(query string) Parsed {
	lowered := strings.ToLower(query)
	cleaned := lowered

	p := Parsed{}

	// Module hint precedence: explicit keywords set TargetModule and
	// are stripped from CleanQuery. The first match decides the
	// module; every later synonym ("kirana store") is stripped too.
	for _, mk := range moduleKeywords {
		if strings.Contains(cleaned, mk.word) {
			if p.TargetModule == "" {
				p.TargetModule = mk.module
			}
			cleaned = removeWord(cleaned, mk.word)
		}
	}

	if containsAny(lowered, vegKeywords) {
		v := true
		p.Veg = &v
	}
	// Non-veg keywords are seen anywhere but NOT stripped from the
	// clean query.
	if containsAny(lowered, nonVegKeywords) {
		v := false
		p.Veg = &v
	}

	// Rating is checked before price: "rated above 4 stars" would
	// otherwise be swallowed by the price-above pattern, since both
	// use the word "above" ahead of a bare number.
	if m := reRating.FindStringSubmatch(cleaned); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		p.Rating = &v
		cleaned = reRating.ReplaceAllString(cleaned, "")
	}

	// Price: first match wins, in the order between > under > above,
	// since "between" subsumes both bounds and must be checked first
	// to avoid reUnder/reAbove partially matching its own text.
	if m := reBetween.FindStringSubmatch(cleaned); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		p.PriceMin, p.PriceMax = &lo, &hi
		cleaned = reBetween.ReplaceAllString(cleaned, "")
	} else if m := reUnder.FindStringSubmatch(cleaned); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		p.PriceMax = &v
		cleaned = reUnder.ReplaceAllString(cleaned, "")
	} else if m := reAbove.FindStringSubmatch(cleaned); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		p.PriceMin = &v
		cleaned = reAbove.ReplaceAllString(cleaned, "")
	}

	for _, cw := range cuisineCategories {
		if strings.Contains(cleaned, cw.word) {
			p.Category = cw.tag
			cleaned = removeWord(cleaned, cw.word)
			if p.TargetModule == "" {
				p.TargetModule = "food"
			}
			break
		}
	}

	for _, phrase := range fillerPhrases {
		cleaned = removeWord(cleaned, phrase)
	}

	p.CleanQuery = collapseSpace(cleaned)
	return p
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func removeWord(s, word string) string {
	return strings.ReplaceAll(s, word, " ")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Merge applies the three-way precedence: caller-supplied args win,
// then the parsed result, then profile defaults.
func Merge(caller, parsed, profileDefaults Parsed) Parsed {
	out := profileDefaults
	applyNonZero(&out, parsed)
	applyNonZero(&out, caller)
	return out
}

func applyNonZero(dst *Parsed, src Parsed) {
	if src.CleanQuery != "" {
		dst.CleanQuery = src.CleanQuery
	}
	if src.Veg != nil {
		dst.Veg = src.Veg
	}
	if src.PriceMin != nil {
		dst.PriceMin = src.PriceMin
	}
	if src.PriceMax != nil {
		dst.PriceMax = src.PriceMax
	}
	if src.Category != "" {
		dst.Category = src.Category
	}
	if src.Rating != nil {
		dst.Rating = src.Rating
	}
	if src.TargetModule != "" {
		dst.TargetModule = src.TargetModule
	}
}
