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

package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangwale/assistant-core/pkg/agent"
	"github.com/mangwale/assistant-core/pkg/auth"
	"github.com/mangwale/assistant-core/pkg/filter"
	"github.com/mangwale/assistant-core/pkg/flow"
	"github.com/mangwale/assistant-core/pkg/nlu"
	"github.com/mangwale/assistant-core/pkg/router"
	"github.com/mangwale/assistant-core/pkg/session"
)

// --- fakes -----------------------------------------------------------

type fakeClassifier struct {
	result nlu.Classification
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, message string, nluCtx nlu.Context) (nlu.Classification, error) {
	return f.result, f.err
}

type fakeEngine struct {
	active        *flow.Handle
	inWaitState   bool
	processResult flow.ProcessResult
	startResult   flow.ProcessResult
	suspended     bool
	cancelled     bool
	resumed       bool
}

func (e *fakeEngine) GetActiveFlow(ctx context.Context, key string) (*flow.Handle, error) {
	return e.active, nil
}
func (e *fakeEngine) IsInWaitState(ctx context.Context, key string) (bool, error) {
	return e.inWaitState, nil
}
func (e *fakeEngine) ProcessActiveFlow(ctx context.Context, key, message, intent string, confidence float64) (flow.ProcessResult, error) {
	return e.processResult, nil
}
func (e *fakeEngine) StartFlow(ctx context.Context, flowID string, initCtx flow.InitContext) (flow.ProcessResult, error) {
	return e.startResult, nil
}
func (e *fakeEngine) SuspendFlow(ctx context.Context, key string) error {
	e.suspended = true
	return nil
}
func (e *fakeEngine) CancelFlow(ctx context.Context, key string) error {
	e.cancelled = true
	return nil
}
func (e *fakeEngine) ResumeSuspendedFlow(ctx context.Context, key string) (bool, error) {
	e.resumed = true
	return true, nil
}

type fakeCatalog struct {
	defs []flow.FlowDef
}

func (c *fakeCatalog) FetchCatalog(ctx context.Context) ([]flow.FlowDef, error) {
	return c.defs, nil
}

type fakeVerifier struct{ profile auth.Profile }

func (f *fakeVerifier) SendOTP(ctx context.Context, phone string) error { return nil }
func (f *fakeVerifier) VerifyOTP(ctx context.Context, phone, code string) (auth.Profile, error) {
	return f.profile, nil
}

type fakeUpdater struct{ profile auth.Profile }

func (f *fakeUpdater) UpdateUserInfo(ctx context.Context, phone, name, email string) (auth.Profile, error) {
	return f.profile, nil
}

type fakeAgent struct {
	id     string
	result agent.Result
	err    error
}

func (a *fakeAgent) ID() string { return a.id }
func (a *fakeAgent) Invoke(ctx context.Context, actx agent.Context) (agent.Result, error) {
	return a.result, a.err
}

func newTestOrchestrator(t *testing.T, classify nlu.Classification, agents map[string]agent.Result, eng *fakeEngine, catalog []flow.FlowDef) (*Orchestrator, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()

	reg := agent.NewRegistry()
	for id, res := range agents {
		require.NoError(t, reg.RegisterAgent(&fakeAgent{id: id, result: res}))
	}

	var dispatcher *flow.Dispatcher
	if eng != nil {
		dispatcher = flow.NewDispatcher(eng, &fakeCatalog{defs: catalog})
	}

	return &Orchestrator{
		Sessions: store,
		Filter:   filter.New(filter.Lexicon{Profanity: []string{"badword"}}),
		Router:   router.New(&fakeClassifier{result: classify}),
		Flows:    dispatcher,
		Agents:   reg,
	}, store
}

// --- tests -------------------------------------------------------------

func TestProcessMessage_ContentFilterShortCircuitsBeforeSessionLoad(t *testing.T) {
	o, store := newTestOrchestrator(t, nlu.Classification{Intent: "unknown"}, nil, nil, nil)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p1", Message: "you badword idiot"})
	require.NoError(t, err)
	assert.Equal(t, true, res.Metadata["content_blocked"])

	_, getErr := store.Get(context.Background(), "p1")
	assert.ErrorIs(t, getErr, session.ErrNotFound, "blocked message must never touch the session store")
}

func TestProcessMessage_HumanTakeoverGateShortCircuits(t *testing.T) {
	o, store := newTestOrchestrator(t, nlu.Classification{Intent: "unknown"}, nil, nil, nil)
	_, err := store.Mutate(context.Background(), "p2", func(s *session.Session) error {
		s.Data.EscalatedToHuman = true
		s.Data.FrappeIssueID = "ISSUE-7"
		return nil
	})
	require.NoError(t, err)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p2", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "ISSUE-7", res.Metadata["issueId"])
	assert.Contains(t, res.Response, "human")
}

func TestProcessMessage_RestartDuringAuthReturnsCancelled(t *testing.T) {
	o, store := newTestOrchestrator(t, nlu.Classification{Intent: "unknown"}, nil, nil, nil)
	_, err := store.Mutate(context.Background(), "p3", func(s *session.Session) error {
		s.CurrentStep = session.StepAwaitingOTP
		return nil
	})
	require.NoError(t, err)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p3", Message: "start again"})
	require.NoError(t, err)
	assert.Equal(t, "Cancelled. How can I help you?", res.Response)

	sess, err := store.Get(context.Background(), "p3")
	require.NoError(t, err)
	assert.Equal(t, session.StepIdle, sess.CurrentStep)
	assert.Nil(t, sess.Data.FlowContext)
}

func TestProcessMessage_GibberishYieldsClarificationMenu(t *testing.T) {
	o, _ := newTestOrchestrator(t, nlu.Classification{Intent: "unknown", Confidence: 0.3}, nil, nil, nil)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p4", Message: "xzqw"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Buttons)
}

func TestProcessMessage_DontInterruptFlowInWaitState(t *testing.T) {
	eng := &fakeEngine{
		active:      &flow.Handle{FlowID: "parcel-1"},
		inWaitState: true,
		processResult: flow.ProcessResult{
			Response: "still waiting on the receiver address",
		},
	}
	o, store := newTestOrchestrator(t, nlu.Classification{Intent: "parcel_booking", Confidence: 0.92}, nil, eng, nil)
	_, err := store.Mutate(context.Background(), "p5", func(s *session.Session) error {
		s.Data.FlowContext = &session.FlowHandle{FlowID: "parcel-1"}
		return nil
	})
	require.NoError(t, err)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p5", Message: "send parcel to my office"})
	require.NoError(t, err)
	assert.Equal(t, "still waiting on the receiver address", res.Response)
	assert.False(t, eng.suspended, "a flow in a wait state must not be interrupted")
}

func TestProcessMessage_InterruptsFlowOnStrongDifferentModuleIntent(t *testing.T) {
	eng := &fakeEngine{
		active:      &flow.Handle{FlowID: "parcel-1"},
		inWaitState: false,
	}
	o, store := newTestOrchestrator(t, nlu.Classification{Intent: "search_product", Confidence: 0.95}, nil, eng, nil)
	_, err := store.Mutate(context.Background(), "p6", func(s *session.Session) error {
		s.Data.FlowContext = &session.FlowHandle{FlowID: "parcel-1"}
		s.Data.Module = "parcel"
		return nil
	})
	require.NoError(t, err)

	_, err = o.ProcessMessage(context.Background(), Input{ParticipantID: "p6", Message: "show me some good quality rice and lentils please"})
	require.NoError(t, err)
	assert.True(t, eng.suspended)

	sess, err := store.Get(context.Background(), "p6")
	require.NoError(t, err)
	assert.NotNil(t, sess.Data.SuspendedFlow)
	assert.Nil(t, sess.Data.FlowContext)
}

func TestProcessMessage_ResumeConfirmationYesResumesSuspendedFlow(t *testing.T) {
	eng := &fakeEngine{}
	o, store := newTestOrchestrator(t, nlu.Classification{Intent: "unknown"}, nil, eng, nil)
	_, err := store.Mutate(context.Background(), "p7", func(s *session.Session) error {
		s.Data.AwaitingResumeConfirmation = true
		s.Data.SuspendedFlow = &session.FlowHandle{FlowID: "parcel-1"}
		return nil
	})
	require.NoError(t, err)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p7", Message: "yes"})
	require.NoError(t, err)
	assert.True(t, eng.resumed)
	assert.Contains(t, res.Response, "picking up")

	sess, err := store.Get(context.Background(), "p7")
	require.NoError(t, err)
	assert.NotNil(t, sess.Data.FlowContext)
	assert.Nil(t, sess.Data.SuspendedFlow)
	assert.False(t, sess.Data.AwaitingResumeConfirmation)
}

func TestProcessMessage_PendingIntentResumeRestoresMessage(t *testing.T) {
	o, store := newTestOrchestrator(t, nlu.Classification{Intent: "unknown"}, map[string]agent.Result{
		"faq_agent": {Response: "handled"},
	}, nil, nil)
	_, err := store.Mutate(context.Background(), "p8", func(s *session.Session) error {
		s.Data.Authenticated = true
		s.Data.PendingIntent = "parcel_booking"
		s.Data.PendingMessage = "send parcel to Koregaon Park"
		s.Data.PendingAction = "faq_agent"
		return nil
	})
	require.NoError(t, err)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p8", Message: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "handled", res.Response)
	assert.Equal(t, "parcel_booking", res.Metadata["intent"])

	sess, err := store.Get(context.Background(), "p8")
	require.NoError(t, err)
	assert.False(t, sess.Data.HasPendingIntent())
}

func TestProcessMessage_FlowStartPrependsPostAuthConfirmation(t *testing.T) {
	eng := &fakeEngine{
		startResult: flow.ProcessResult{Response: "Where should I send the parcel?"},
	}
	o, store := newTestOrchestrator(t, nlu.Classification{Intent: "parcel_booking", Confidence: 0.9}, nil, eng,
		[]flow.FlowDef{{ID: "parcel-flow", Intent: "parcel_booking"}})
	_, err := store.Mutate(context.Background(), "p9", func(s *session.Session) error {
		s.CurrentStep = session.StepAwaitingOTP
		s.Data.TempPhone = "9876543210"
		return nil
	})
	require.NoError(t, err)
	o.Auth = &auth.StateMachine{
		Verifier: &fakeVerifier{profile: auth.Profile{UserID: 42, IsPersonalInfo: true}},
		Updater:  &fakeUpdater{},
	}

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p9", Message: "123456"})
	require.NoError(t, err)
	assert.Contains(t, res.Response, "You're verified!")
	assert.Contains(t, res.Response, "Where should I send the parcel?")
}

func TestProcessMessage_AgentFallbackUsedWhenNoFlowMatches(t *testing.T) {
	o, _ := newTestOrchestrator(t, nlu.Classification{Intent: "order_food", Confidence: 0.9}, map[string]agent.Result{
		"food_agent": {Response: "What would you like to eat?"},
	}, nil, nil)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p10", Message: "I want to order food please"})
	require.NoError(t, err)
	assert.Equal(t, "What would you like to eat?", res.Response)
	assert.Equal(t, "order_food", res.Metadata["intent"])
}

func TestProcessMessage_ProtectedIntentLowConfidencePassesThrough(t *testing.T) {
	o, _ := newTestOrchestrator(t, nlu.Classification{Intent: "greeting", Confidence: 0.5}, map[string]agent.Result{
		"faq_agent": {Response: "Hi there!"},
	}, nil, nil)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p11", Message: "hi there friend"})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", res.Response)
}

func TestProcessMessage_UnprotectedLowConfidenceYieldsClarification(t *testing.T) {
	o, _ := newTestOrchestrator(t, nlu.Classification{Intent: "checkout", Confidence: 0.4}, map[string]agent.Result{
		"ecom_agent": {Response: "should not be reached"},
	}, nil, nil)

	res, err := o.ProcessMessage(context.Background(), Input{ParticipantID: "p12", Message: "checkout please do it now"})
	require.NoError(t, err)
	assert.NotEqual(t, "should not be reached", res.Response)
	assert.NotEmpty(t, res.Buttons)
}

func TestGates_PriorityOrder(t *testing.T) {
	want := []string{
		"human_takeover", "restart_reset", "resume_confirmation", "auth_step",
		"intent_routing", "pending_intent_resume", "active_flow", "escape_intent",
		"clarification", "flow_start", "game_intent", "agent_fallback",
	}
	got := make([]string, len(gates))
	for i, g := range gates {
		got[i] = g.name
	}
	assert.Equal(t, want, got)
}
