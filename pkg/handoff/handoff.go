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

// Package handoff implements inter-agent delegation with a loop
// limit, per-pair statistics, and human escalation ticket creation.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/mangwale/assistant-core/internal/ticketing"
	"github.com/mangwale/assistant-core/pkg/agent"
	"github.com/mangwale/assistant-core/pkg/session"
)

// maxHandoffDepth bounds delegation chains.
const maxHandoffDepth = 3

// ErrMaxDepthExceeded terminates a handoff cycle: Execute rejects a
// request once the session's depth counter exceeds maxHandoffDepth,
// so a chain of agents delegating to each other runs at most four
// nested hops (depths 0 through 3) before it ends.
var ErrMaxDepthExceeded = fmt.Errorf("handoff: maximum handoff depth exceeded")

// PairStats accumulates the per-"source_to_target" statistics
// (count, success rate, avg duration).
type PairStats struct {
	Count         int
	Successes     int
	TotalDuration time.Duration
}

// SuccessRate returns Successes/Count, or 0 for an untouched pair.
func (s PairStats) SuccessRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Count)
}

// AvgDuration returns TotalDuration/Count, or 0 for an untouched pair.
func (s PairStats) AvgDuration() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Count)
}

// Service executes HandoffRequests on behalf of an invoking agent.
// Stats are kept in memory; Flush hands the accumulated snapshot to a
// StatsSink (the SQL session backend in production).
type Service struct {
	Agents  *agent.Registry
	Tickets ticketing.Client

	mu    sync.Mutex
	stats map[string]*PairStats
}

// NewService builds a Service.
func NewService(agents *agent.Registry, tickets ticketing.Client) *Service {
	return &Service{Agents: agents, Tickets: tickets, stats: make(map[string]*PairStats)}
}

// Execute runs one handoff. data is the requesting participant's
// session data, mutated in place: HandoffDepth is bumped before the
// target runs and reset to 0 on success, preventing loops;
// EscalatedToHuman/FrappeIssueID are set when the
// target is agent.HumanTarget.
func (s *Service) Execute(ctx context.Context, participantID string, data *session.Data, req agent.HandoffRequest) (agent.Result, error) {
	if data.HandoffDepth > maxHandoffDepth {
		return agent.Result{}, ErrMaxDepthExceeded
	}

	data.HandoffDepth++
	pairKey := req.SourceAgent + "_to_" + req.TargetAgent
	start := time.Now()

	result, err := s.dispatch(ctx, participantID, data, req)

	s.record(pairKey, err == nil, time.Since(start))
	if err != nil {
		return agent.Result{}, err
	}

	data.HandoffDepth = 0
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, participantID string, data *session.Data, req agent.HandoffRequest) (agent.Result, error) {
	if req.TargetAgent == agent.HumanTarget {
		return s.escalateToHuman(ctx, participantID, data, req)
	}

	wireMsg, err := ToA2AMessage(req)
	if err != nil {
		return agent.Result{}, fmt.Errorf("handoff: serialize request: %w", err)
	}

	actx := agent.Context{
		ParticipantID: participantID,
		Message:       req.Context.UserMessage,
		Authenticated: data.Authenticated,
		UserID:        data.UserID,
		AuthToken:     data.AuthToken,
		Metadata: map[string]any{
			"handoff_reason":      req.Reason,
			"conversation_summary": req.Context.ConversationSummary,
			"a2a_handoff_message": wireMsg,
		},
	}
	for k, v := range req.Context.ExtractedData {
		actx.Entities = ensureMap(actx.Entities)
		actx.Entities[k] = v
	}

	result, err := s.Agents.Invoke(ctx, req.TargetAgent, actx)
	if err != nil {
		return agent.Result{}, fmt.Errorf("handoff: invoke %s: %w", req.TargetAgent, err)
	}

	if req.Options.SendTransitionMessage && req.Options.TransitionMessage != "" {
		result.Response = req.Options.TransitionMessage + "\n\n" + result.Response
	}
	return result, nil
}

// escalateToHuman creates the support ticket idempotently: reuse
// session.Data.FrappeIssueID if present, else look up by external
// conversation id before filing a new one.
func (s *Service) escalateToHuman(ctx context.Context, participantID string, data *session.Data, req agent.HandoffRequest) (agent.Result, error) {
	data.EscalatedToHuman = true

	if s.Tickets != nil {
		if data.FrappeIssueID == "" {
			if existing, found, err := s.Tickets.FindByExternalID(ctx, participantID); err == nil && found {
				data.FrappeIssueID = existing.IssueID
			}
		}

		if data.FrappeIssueID == "" {
			ticket, err := s.Tickets.CreateTicket(ctx, participantID, req.Context.Priority, req.Reason)
			if err != nil {
				return agent.Result{}, fmt.Errorf("handoff: create ticket: %w", err)
			}
			data.FrappeIssueID = ticket.IssueID
		}
	}

	return agent.Result{
		Response: "A human will assist you shortly.",
		Metadata: map[string]any{"escalated": true, "issueId": data.FrappeIssueID},
	}, nil
}

func (s *Service) record(pairKey string, success bool, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.stats[pairKey]
	if !ok {
		stats = &PairStats{}
		s.stats[pairKey] = stats
	}
	stats.Count++
	if success {
		stats.Successes++
	}
	stats.TotalDuration += d
}

// Stats returns a snapshot of per-pair statistics.
func (s *Service) Stats() map[string]PairStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]PairStats, len(s.stats))
	for k, v := range s.stats {
		out[k] = *v
	}
	return out
}

// StatsSink persists a flushed stats snapshot, e.g. the SQL session
// backend's stats table.
type StatsSink interface {
	FlushHandoffStats(ctx context.Context, snapshot map[string]PairStats) error
}

// Flush hands the current in-memory snapshot to sink and clears it
// rather than accumulating unboundedly in-process.
func (s *Service) Flush(ctx context.Context, sink StatsSink) error {
	snapshot := s.Stats()
	if err := sink.FlushHandoffStats(ctx, snapshot); err != nil {
		return err
	}

	s.mu.Lock()
	s.stats = make(map[string]*PairStats)
	s.mu.Unlock()
	return nil
}

func ensureMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	return m
}

// ToA2AMessage serializes a HandoffRequest into an a2a-go message, the
// one wire shape inter-agent delegation and the A2A ecosystem share
// when a handoff crosses the plugin process boundary.
func ToA2AMessage(req agent.HandoffRequest) (*a2a.Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: string(payload)})
	return msg, nil
}

// FromA2AMessage reverses ToA2AMessage.
func FromA2AMessage(msg *a2a.Message) (agent.HandoffRequest, error) {
	var req agent.HandoffRequest
	for _, part := range msg.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			if err := json.Unmarshal([]byte(tp.Text), &req); err != nil {
				return agent.HandoffRequest{}, err
			}
			return req, nil
		}
	}
	return agent.HandoffRequest{}, fmt.Errorf("handoff: no text part in a2a message")
}
