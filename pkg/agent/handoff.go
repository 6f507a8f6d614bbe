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

package agent

import "time"

// Priority is the closed urgency vocabulary a HandoffRequest carries,
// later mapped to a Frappe issue priority by the Handoff Service.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// HandoffContext is the conversational grounding carried alongside a
// delegation.
type HandoffContext struct {
	UserMessage         string
	ExtractedData       map[string]any
	ConversationSummary string
	Priority            Priority
}

// HandoffOptions are the optional delegation knobs.
type HandoffOptions struct {
	SendTransitionMessage bool
	TransitionMessage     string
	RequireAcknowledgment bool
	Timeout               time.Duration
	AllowBounceback       bool
}

// HumanTarget is the reserved TargetAgent value signaling escalation
// to a human operator rather than another agent.
const HumanTarget = "human"

// HandoffRequest is an agent-initiated delegation, to another agent
// or to a human.
type HandoffRequest struct {
	SourceAgent string
	TargetAgent string
	Reason      string
	Context     HandoffContext
	Options     HandoffOptions
}
