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

package session

// ModeKind discriminates the tagged-union view of a Session's "what
// drives the next reply" state. ModeOf reports exactly one kind per
// session, so at most one of {active flow, awaiting-auth,
// awaiting-resume-confirmation, escalated} drives the next reply even
// when Data carries signals for several. The Mode struct itself does
// not stop a caller from filling in fields of another kind.
//
// The wire-compatible Session/Data struct (its literal field list is
// what the external Flow Engine and PHP backend read) remains the
// source of truth on disk; ModeOf derives this view from it, and
// nothing writes a Mode back into Data.
type ModeKind int

const (
	ModeIdle ModeKind = iota
	ModeAuthenticating
	ModeInFlow
	ModeAwaitingResumeConfirmation
	ModeEscalatedToHuman
)

// Mode is the resolved, mutually-exclusive conversation state.
type Mode struct {
	Kind ModeKind

	// ModeAuthenticating
	AuthStep        Step
	PendingIntent   string
	PendingMessage  string
	PendingAction   string
	PendingModule   string
	PendingEntities map[string]any

	// ModeInFlow
	Flow *FlowHandle

	// ModeAwaitingResumeConfirmation
	Suspended *FlowHandle

	// ModeEscalatedToHuman
	TicketID string
}

// ModeOf resolves a Session's data bag into its current Mode,
// resolving collisions by the orchestrator's gate order: human
// escalation first, then resume-confirmation, then auth, then
// active flow, then idle. It is derived on each call rather than
// cached, since any gate may have just mutated the underlying Data;
// the orchestrator's gates read the same Data fields directly, in
// the same order.
func ModeOf(s *Session) Mode {
	d := &s.Data
	switch {
	case d.EscalatedToHuman:
		return Mode{Kind: ModeEscalatedToHuman, TicketID: d.FrappeIssueID}
	case d.AwaitingResumeConfirmation:
		return Mode{Kind: ModeAwaitingResumeConfirmation, Suspended: d.SuspendedFlow}
	case isAuthStep(s.CurrentStep):
		return Mode{
			Kind:            ModeAuthenticating,
			AuthStep:        s.CurrentStep,
			PendingIntent:   d.PendingIntent,
			PendingMessage:  d.PendingMessage,
			PendingAction:   d.PendingAction,
			PendingModule:   d.PendingModule,
			PendingEntities: d.PendingEntities,
		}
	case d.FlowContext != nil:
		return Mode{Kind: ModeInFlow, Flow: d.FlowContext}
	default:
		return Mode{Kind: ModeIdle}
	}
}

func isAuthStep(step Step) bool {
	switch step {
	case StepAwaitingPhoneNumber, StepAwaitingOTP, StepAwaitingName, StepAwaitingEmail:
		return true
	default:
		return false
	}
}
