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

// Package deadlines holds the per-call bounded-timeout table so
// every external call's budget lives in one place instead of being
// a magic number scattered across pkg/address, pkg/embedder,
// pkg/routing, pkg/llm and pkg/nlu call sites.
package deadlines

import (
	"context"
	"time"
)

// Call names one kind of outbound external call.
type Call string

const (
	NLUClassify  Call = "nlu_classify"
	LLMChat      Call = "llm_chat"
	Embedding    Call = "embedding"
	VectorSearch Call = "vector_search"
	PHPBackend   Call = "php_backend"
	Geocoding    Call = "geocoding"
	ZoneResolve  Call = "zone_resolve"
	Routing      Call = "routing"
	SessionStore Call = "session_store"
	FlowEngine   Call = "flow_engine"
)

// table holds the bound for each call kind, within a 3-8s range:
// quick lookups (NLU classify, zone resolve, session store) get the
// shorter end, generation-heavy calls (LLM chat, flow engine) the
// longer.
var table = map[Call]time.Duration{
	NLUClassify:  3 * time.Second,
	LLMChat:      8 * time.Second,
	Embedding:    4 * time.Second,
	VectorSearch: 4 * time.Second,
	PHPBackend:   5 * time.Second,
	Geocoding:    5 * time.Second,
	ZoneResolve:  3 * time.Second,
	Routing:      4 * time.Second,
	SessionStore: 3 * time.Second,
	FlowEngine:   8 * time.Second,
}

// For returns the configured bound for call, defaulting to 5s for any
// call this table doesn't name: a safety net, not a documented bound.
func For(call Call) time.Duration {
	if d, ok := table[call]; ok {
		return d
	}
	return 5 * time.Second
}

// WithDeadline wraps ctx with the bound configured for call.
func WithDeadline(ctx context.Context, call Call) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, For(call))
}
