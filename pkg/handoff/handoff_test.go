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

package handoff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangwale/assistant-core/internal/ticketing"
	"github.com/mangwale/assistant-core/pkg/agent"
	"github.com/mangwale/assistant-core/pkg/session"
)

type stubAgent struct {
	id     string
	result agent.Result
	err    error
}

func (s *stubAgent) ID() string { return s.id }
func (s *stubAgent) Invoke(ctx context.Context, actx agent.Context) (agent.Result, error) {
	return s.result, s.err
}

type stubTickets struct {
	created   ticketing.Ticket
	found     ticketing.Ticket
	foundOK   bool
	createErr error
}

func (s *stubTickets) CreateTicket(ctx context.Context, externalConversationID string, priority agent.Priority, summary string) (ticketing.Ticket, error) {
	if s.createErr != nil {
		return ticketing.Ticket{}, s.createErr
	}
	return s.created, nil
}

func (s *stubTickets) FindByExternalID(ctx context.Context, externalConversationID string) (ticketing.Ticket, bool, error) {
	return s.found, s.foundOK, nil
}

func newRegistry(t *testing.T, agents ...*stubAgent) *agent.Registry {
	r := agent.NewRegistry()
	for _, a := range agents {
		require.NoError(t, r.RegisterAgent(a))
	}
	return r
}

func TestExecute_RejectsBeyondMaxDepth(t *testing.T) {
	svc := NewService(newRegistry(t), &stubTickets{})
	data := &session.Data{HandoffDepth: maxHandoffDepth + 1}

	_, err := svc.Execute(context.Background(), "p1", data, agent.HandoffRequest{TargetAgent: "faq"})
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestExecute_ResetsDepthOnSuccess(t *testing.T) {
	svc := NewService(newRegistry(t, &stubAgent{id: "faq", result: agent.Result{Response: "ok"}}), &stubTickets{})
	data := &session.Data{HandoffDepth: 1}

	result, err := svc.Execute(context.Background(), "p1", data, agent.HandoffRequest{TargetAgent: "faq"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Response)
	assert.Equal(t, 0, data.HandoffDepth)
}

func TestExecute_EscalatesToHumanReusesIssueID(t *testing.T) {
	tickets := &stubTickets{created: ticketing.Ticket{IssueID: "ISS-1"}}
	svc := NewService(newRegistry(t), tickets)
	data := &session.Data{FrappeIssueID: "ISS-EXISTING"}

	result, err := svc.Execute(context.Background(), "p1", data, agent.HandoffRequest{TargetAgent: agent.HumanTarget})
	require.NoError(t, err)
	assert.True(t, data.EscalatedToHuman)
	assert.Equal(t, "ISS-EXISTING", data.FrappeIssueID)
	assert.Equal(t, "ISS-EXISTING", result.Metadata["issueId"])
}

func TestExecute_EscalatesToHumanLooksUpBeforeCreating(t *testing.T) {
	tickets := &stubTickets{found: ticketing.Ticket{IssueID: "ISS-FOUND"}, foundOK: true,
		created: ticketing.Ticket{IssueID: "ISS-NEW"}}
	svc := NewService(newRegistry(t), tickets)
	data := &session.Data{}

	_, err := svc.Execute(context.Background(), "p1", data, agent.HandoffRequest{TargetAgent: agent.HumanTarget})
	require.NoError(t, err)
	assert.Equal(t, "ISS-FOUND", data.FrappeIssueID)
}

func TestExecute_EscalatesToHumanCreatesWhenNoneFound(t *testing.T) {
	tickets := &stubTickets{created: ticketing.Ticket{IssueID: "ISS-NEW"}}
	svc := NewService(newRegistry(t), tickets)
	data := &session.Data{}

	_, err := svc.Execute(context.Background(), "p1", data, agent.HandoffRequest{TargetAgent: agent.HumanTarget})
	require.NoError(t, err)
	assert.Equal(t, "ISS-NEW", data.FrappeIssueID)
}

func TestExecute_PrependsTransitionMessage(t *testing.T) {
	svc := NewService(newRegistry(t, &stubAgent{id: "faq", result: agent.Result{Response: "answer"}}), &stubTickets{})
	data := &session.Data{}

	req := agent.HandoffRequest{
		TargetAgent: "faq",
		Options:     agent.HandoffOptions{SendTransitionMessage: true, TransitionMessage: "Connecting you..."},
	}
	result, err := svc.Execute(context.Background(), "p1", data, req)
	require.NoError(t, err)
	assert.Contains(t, result.Response, "Connecting you...")
	assert.Contains(t, result.Response, "answer")
}

func TestStats_TracksPerPairSuccessRate(t *testing.T) {
	svc := NewService(newRegistry(t, &stubAgent{id: "faq", result: agent.Result{}}), &stubTickets{})
	data := &session.Data{}

	_, err := svc.Execute(context.Background(), "p1", data, agent.HandoffRequest{SourceAgent: "router", TargetAgent: "faq"})
	require.NoError(t, err)

	stats := svc.Stats()
	s, ok := stats["router_to_faq"]
	require.True(t, ok)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, float64(1), s.SuccessRate())
}

func TestToFromA2AMessage_RoundTrips(t *testing.T) {
	req := agent.HandoffRequest{
		SourceAgent: "router",
		TargetAgent: "search",
		Reason:      "needs product lookup",
		Context:     agent.HandoffContext{UserMessage: "find me snacks", Priority: agent.PriorityMedium},
	}

	msg, err := ToA2AMessage(req)
	require.NoError(t, err)

	got, err := FromA2AMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}
