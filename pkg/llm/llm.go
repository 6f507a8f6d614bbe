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

// Package llm declares the capability interface the core binds
// against for every LLM-backed operation: address extraction,
// canned-fallback text generation, and intent-router compound-intent
// prompts. Providers live behind this interface so the core never
// couples to a vendor; it only needs two non-streaming calls (one
// schema-constrained, one free-text), so the interface is
// deliberately small.
package llm

import "context"

// Provider is the one capability the core depends on: ask a model to
// answer a prompt, either as text constrained to a JSON schema or as
// free-form text.
type Provider interface {
	// GenerateJSON sends prompt to the model and returns its raw text
	// response, expected (but not guaranteed) to be a JSON object
	// matching schema. Callers are responsible for decoding and
	// validating the result.
	GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error)

	// GenerateText sends prompt and returns a free-form text response,
	// used for conversational fallback generation.
	GenerateText(ctx context.Context, prompt string) (string, error)
}
