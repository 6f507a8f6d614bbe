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

// Package agent implements the agent registry and invocation
// contract: lookup of specialized agents by ID and their single-call
// contract. The agents' own business logic (FAQ, search, order, ...)
// lives elsewhere; this package only owns the lookup table and the
// Invoke boundary, local or out-of-process (see plugin.go).
package agent

import (
	"context"
	"fmt"

	"github.com/mangwale/assistant-core/pkg/registry"
)

// Button is one inline quick-reply the transport layer rewrites into
// a platform-native control.
type Button struct {
	Label string
	Value string
}

// HistoryTurn is one bounded recent turn handed to an agent for
// conversational continuity.
type HistoryTurn struct {
	Role string
	Text string
}

// Context is the single-call invocation contract every agent
// receives: the routed intent/entities plus enough session and
// preference context to act without its own session round-trip.
type Context struct {
	ParticipantID         string
	Message               string
	Intent                string
	Entities              map[string]any
	Module                string
	ZoneID                int
	Authenticated         bool
	UserID                *int64
	AuthToken             string
	UserPreferenceContext map[string]any
	History               []HistoryTurn
	Metadata              map[string]any
}

// Result is what one agent invocation produces.
type Result struct {
	Response string
	Buttons  []Button
	Metadata map[string]any
	Handoff  *HandoffRequest
}

// Agent is the single-call invocation contract. Local agents are
// plain Go values implementing this directly; remote ones are
// *PluginAgent stubs; callers never know the difference.
type Agent interface {
	ID() string
	Invoke(ctx context.Context, actx Context) (Result, error)
}

// RegistryError is this package's kind-tagged error shape: a small
// Component/Action/Message/Err struct, not a sentinel string.
type RegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// Registry is the agent lookup table, keyed by agent ID.
type Registry struct {
	*registry.BaseRegistry[Agent]
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Agent]()}
}

// RegisterAgent adds an agent under its own ID.
func (r *Registry) RegisterAgent(a Agent) error {
	if a == nil {
		return &RegistryError{Component: "AgentRegistry", Action: "RegisterAgent", Message: "agent cannot be nil"}
	}
	if err := r.Register(a.ID(), a); err != nil {
		return &RegistryError{Component: "AgentRegistry", Action: "RegisterAgent",
			Message: fmt.Sprintf("register agent %s", a.ID()), Err: err}
	}
	return nil
}

// Invoke looks up agentID and runs its single-call contract,
// producing a "not found, available: ..." listing when a routed
// agentId has no registered backing.
func (r *Registry) Invoke(ctx context.Context, agentID string, actx Context) (Result, error) {
	a, ok := r.Get(agentID)
	if !ok {
		return Result{}, &RegistryError{
			Component: "AgentRegistry",
			Action:    "Invoke",
			Message:   fmt.Sprintf("agent %q not found, available: %v", agentID, r.Keys()),
		}
	}
	return a.Invoke(ctx, actx)
}
