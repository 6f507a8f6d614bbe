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

// Package session implements the session store contract: a durable
// per-participant key/value record with a `currentStep` and an open
// `data` bag, plus the mutual-exclusion ConversationMode view the
// orchestrator layers on top of it.
package session

import (
	"time"
)

// Step is the auth sub-state machine's current position. The empty
// Step is equivalent to StepIdle.
type Step string

const (
	StepIdle                Step = "idle"
	StepAwaitingPhoneNumber Step = "awaiting_phone_number"
	StepAwaitingOTP         Step = "awaiting_otp"
	StepAwaitingName        Step = "awaiting_name"
	StepAwaitingEmail       Step = "awaiting_email"
)

// Location is the last known participant location.
type Location struct {
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	LastLocationUpdate int64   `json:"lastLocationUpdate"` // epoch ms
}

// FlowHandle is the opaque content-addressed handle the Flow
// Dispatcher understands; the core never interprets its fields.
type FlowHandle struct {
	FlowID         string `json:"flowId"`
	FlowRunID      string `json:"flowRunId"`
	CurrentStateID string `json:"currentStateId"`
}

// Turn is one bounded history entry.
type Turn struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Text      string    `json:"text"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Data is the session's open data bag. The fields every component
// reads are promoted to typed struct fields; anything else an agent
// or flow wants to stash goes in Extra, which
// round-trips through the SQL backend as a JSON blob.
type Data struct {
	Authenticated bool        `json:"authenticated"`
	UserID        *int64      `json:"userId,omitempty"`
	AuthToken     string      `json:"authToken,omitempty"`
	Language      string      `json:"language,omitempty"`
	Module        string      `json:"module,omitempty"`
	Location      *Location   `json:"location,omitempty"`
	ZoneID        int         `json:"zoneId,omitempty"`
	ZoneName      string      `json:"zoneName,omitempty"`
	FlowContext   *FlowHandle `json:"flowContext,omitempty"`

	PendingIntent   string         `json:"pendingIntent,omitempty"`
	PendingEntities map[string]any `json:"pendingEntities,omitempty"`
	PendingMessage  string         `json:"pendingMessage,omitempty"`
	PendingAction   string         `json:"pendingAction,omitempty"`
	PendingModule   string         `json:"pendingModule,omitempty"`

	AwaitingResumeConfirmation bool        `json:"awaitingResumeConfirmation"`
	SuspendedFlow              *FlowHandle `json:"suspendedFlow,omitempty"`

	EscalatedToHuman bool   `json:"escalatedToHuman"`
	FrappeIssueID    string `json:"frappeIssueId,omitempty"`
	HandoffDepth     int    `json:"handoffDepth"`

	DetectedLanguage  string `json:"detectedLanguage,omitempty"`
	CommunicationTone string `json:"_communicationTone,omitempty"`
	EmojiUsage        string `json:"_emojiUsage,omitempty"`

	TempPhone string `json:"tempPhone,omitempty"`
	TempName  string `json:"tempName,omitempty"`

	History []Turn `json:"history,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// HasPendingIntent reports whether a resumable pending intent is
// parked. A pending intent always carries a non-empty PendingMessage.
func (d *Data) HasPendingIntent() bool {
	return d.PendingIntent != "" && d.PendingMessage != ""
}

// ClearPending clears all pending* fields together.
func (d *Data) ClearPending() {
	d.PendingIntent = ""
	d.PendingEntities = nil
	d.PendingMessage = ""
	d.PendingAction = ""
	d.PendingModule = ""
}

// AppendHistory appends a turn and trims to maxTurns, keeping the
// most recent ones.
func (d *Data) AppendHistory(t Turn, maxTurns int) {
	d.History = append(d.History, t)
	if maxTurns > 0 && len(d.History) > maxTurns {
		d.History = d.History[len(d.History)-maxTurns:]
	}
}

// Session is one participant's durable record.
type Session struct {
	Key            string    `json:"key"` // participant identifier
	CurrentStep    Step      `json:"currentStep"`
	Data           Data      `json:"data"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
}

// New creates an empty, freshly-initialized session for key. Sessions
// are created lazily on a participant's first message.
func New(key string) *Session {
	return &Session{
		Key:            key,
		CurrentStep:    StepIdle,
		Data:           Data{Language: "en"},
		LastUpdateTime: time.Now(),
	}
}

// Clone returns a deep-enough copy safe to hand to callers without
// risking aliasing the store's internal state.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Data.PendingEntities = cloneMap(s.Data.PendingEntities)
	cp.Data.Extra = cloneMap(s.Data.Extra)
	cp.Data.History = append([]Turn(nil), s.Data.History...)
	if s.Data.Location != nil {
		loc := *s.Data.Location
		cp.Data.Location = &loc
	}
	if s.Data.FlowContext != nil {
		fc := *s.Data.FlowContext
		cp.Data.FlowContext = &fc
	}
	if s.Data.SuspendedFlow != nil {
		sf := *s.Data.SuspendedFlow
		cp.Data.SuspendedFlow = &sf
	}
	if s.Data.UserID != nil {
		id := *s.Data.UserID
		cp.Data.UserID = &id
	}
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
