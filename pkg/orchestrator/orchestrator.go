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

// Package orchestrator implements the central processMessage
// algorithm: an ordered pipeline of priority gates walked over every
// inbound message, wiring together the content filter, language
// detector, intent router, session store, flow dispatcher, agent
// registry, and handoff service.
//
// The gate pipeline is an ordered []gate slice so the priority order
// is a structural guarantee a test can assert directly against the
// slice rather than against emergent control flow.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mangwale/assistant-core/internal/deadlines"
	"github.com/mangwale/assistant-core/internal/obslog"
	"github.com/mangwale/assistant-core/pkg/agent"
	"github.com/mangwale/assistant-core/pkg/auth"
	"github.com/mangwale/assistant-core/pkg/filter"
	"github.com/mangwale/assistant-core/pkg/flow"
	"github.com/mangwale/assistant-core/pkg/handoff"
	"github.com/mangwale/assistant-core/pkg/language"
	"github.com/mangwale/assistant-core/pkg/nlu"
	"github.com/mangwale/assistant-core/pkg/router"
	"github.com/mangwale/assistant-core/pkg/session"
)

// Button is one inline quick-reply. The transport layer rewrites it
// into the "[BUTTON:<label>:<value>]" marker syntax (reserved
// __LOCATION__/__LOGIN__ values); this package only passes button
// data through.
type Button struct {
	Label string
	Value string
}

const (
	ButtonLocation = "__LOCATION__"
	ButtonLogin    = "__LOGIN__"
)

// Result is processMessage's external contract.
type Result struct {
	Response      string
	Buttons       []Button
	ExecutionTime time.Duration
	Metadata      map[string]any
}

// Input is processMessage's argument bundle.
type Input struct {
	ParticipantID         string
	Message               string
	Module                string
	ImageURL              string
	TestSession           bool
	UserPreferenceContext map[string]any
}

// AuthRequiredError signals that an agent or flow collaborator needs
// the participant to be logged in before it can proceed. The
// orchestrator starts the auth sub-state machine and parks the
// deferred action so the pending-intent gate can resume it after
// login.
type AuthRequiredError struct {
	Action   string
	Module   string
	Intent   string
	Entities map[string]any
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("orchestrator: auth required for action %q", e.Action)
}

// PreferenceProvider loads the saved shopping preferences gate 7
// injects into the agent context for authenticated (or phone-
// identified) participants.
type PreferenceProvider interface {
	Preferences(ctx context.Context, identifier string) (map[string]any, error)
}

// TrainingSink records one (intent, success, language) sample per
// message, fire-and-forget.
type TrainingSink interface {
	RecordTraining(ctx context.Context, participantID, intent, language string, success bool)
}

// SentimentSink records sentiment for one message, fire-and-forget.
type SentimentSink interface {
	RecordSentiment(ctx context.Context, participantID, message string)
}

// Orchestrator wires every collaborator component into the gate
// pipeline.
type Orchestrator struct {
	Sessions session.Store
	Filter   *filter.Filter
	Router   *router.Router
	Auth     *auth.StateMachine
	Flows    *flow.Dispatcher
	Agents   *agent.Registry
	Handoffs *handoff.Service

	Preferences PreferenceProvider
	Training    TrainingSink
	Sentiment   SentimentSink

	BackgroundTasks *TaskQueue
	Logger          *slog.Logger

	MaxHistoryTurns int // defaults to 20 if zero

	// HistoryBudget bounds the history handed to agents by an accurate
	// token count rather than MaxHistoryTurns' raw turn count.
	// Optional; nil falls back to MaxHistoryTurns alone.
	HistoryBudget    *session.TokenBudget
	MaxHistoryTokens int // defaults to 2000 if zero and HistoryBudget is set
}

// gateCtx is the mutable state threaded through one processMessage
// call's gate pipeline. It is constructed once per call and discarded
// afterward; nothing here is shared across goroutines.
type gateCtx struct {
	ctx   context.Context
	o     *Orchestrator
	log   *slog.Logger
	start time.Time

	in Input

	sess *session.Session

	route         router.Result
	postAuthReply string
	metadata      map[string]any
	interrupted   bool
	flowCompleted bool
}

// gate is one priority-gate evaluator. A non-nil *Result short-
// circuits the pipeline with that response; a non-nil error aborts to
// the top-level catch; (nil, nil) falls through to the next gate.
type gate func(g *gateCtx) (*Result, error)

// gates is the fixed priority order. The content filter and session
// load run before the session is available for the later gates'
// shared gateCtx shape, and post-processing always runs as a finisher
// rather than a competing gate; see ProcessMessage.
var gates = []struct {
	name string
	fn   gate
}{
	{"human_takeover", gateHumanTakeover},
	{"restart_reset", gateRestartReset},
	{"resume_confirmation", gateResumeConfirmation},
	{"auth_step", gateAuthStep},
	{"intent_routing", gateIntentRouting},
	{"pending_intent_resume", gatePendingIntentResume},
	{"active_flow", gateActiveFlow},
	{"escape_intent", gateEscapeIntent},
	{"clarification", gateClarification},
	{"flow_start", gateFlowStart},
	{"game_intent", gateGameIntent},
	{"agent_fallback", gateAgentFallback},
}

// ProcessMessage runs the full gate pipeline over one inbound message.
func (o *Orchestrator) ProcessMessage(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	log := obslog.WithFields(o.logger(), in.ParticipantID, in.ParticipantID)

	// Gate 1: content filter. Deliberately runs before any session
	// I/O; a blocked message must never touch the store.
	if o.Filter != nil {
		verdict, competitorHit := o.Filter.Check(in.Message)
		if competitorHit.Matched {
			log.Info("competitor_mention", "name", competitorHit.Name)
		}
		if verdict.Blocked {
			log.Info("gate", "name", "content_filter", "blocked", true, "reason", verdict.Reason)
			return Result{
				Response:      verdict.Response,
				ExecutionTime: time.Since(start),
				Metadata:      map[string]any{"content_blocked": true, "reason": string(verdict.Reason)},
			}, nil
		}
	}

	var result *Result
	var completedGate string

	_, err := o.Sessions.Mutate(ctx, in.ParticipantID, func(sess *session.Session) error {
		g := &gateCtx{
			ctx:      ctx,
			o:        o,
			log:      log,
			start:    start,
			in:       in,
			sess:     sess,
			metadata: map[string]any{},
		}

		// Gate 2: session load + language annotation. The session is
		// already loaded for us by Mutate; this step only needs to
		// stamp the language.
		analysis := language.Analyze(in.Message)
		sess.Data.DetectedLanguage = analysis.Language
		if sess.Data.Language == "" {
			sess.Data.Language = analysis.Language
		}

		for _, st := range gates {
			res, err := st.fn(g)
			if err != nil {
				return err
			}
			if res != nil {
				result = res
				completedGate = st.name
				break
			}
		}

		if result == nil {
			// Nothing fired: fall back to the generic help menu the
			// clarification gate would have produced for an
			// unroutable message.
			result = genericHelpMenu(g)
			completedGate = "fallback"
		}

		finalizePostProcessing(g, result, completedGate)
		return nil
	})
	if err != nil {
		log.Error("processMessage: aborted", "error", err)
		return Result{
			Response:      "Sorry, something went wrong on my end. Please try again in a moment.",
			ExecutionTime: time.Since(start),
			Metadata:      map[string]any{"fatal": true},
		}, nil
	}

	result.ExecutionTime = time.Since(start)
	return *result, nil
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// --- Gate 3: human takeover ---------------------------------------

func gateHumanTakeover(g *gateCtx) (*Result, error) {
	if !g.sess.Data.EscalatedToHuman {
		return nil, nil
	}
	return &Result{
		Response: "A human team member will assist you shortly.",
		Metadata: map[string]any{"escalated": true, "issueId": g.sess.Data.FrappeIssueID},
	}, nil
}

// --- Gate 4: restart / reset / greeting-in-auth --------------------

var restartKeywords = []string{"restart", "start over", "start again", "reset", "main menu"}
var greetingKeywords = []string{"hi", "hello", "hey", "namaste", "hola"}

func gateRestartReset(g *gateCtx) (*Result, error) {
	lowered := strings.ToLower(strings.TrimSpace(g.in.Message))

	isRestart := containsAny(lowered, restartKeywords)
	stuckInAuth := g.sess.CurrentStep == session.StepAwaitingOTP || g.sess.CurrentStep == session.StepAwaitingPhoneNumber
	isGreetingInAuth := stuckInAuth && containsAny(lowered, greetingKeywords)

	if !isRestart && !isGreetingInAuth {
		return nil, nil
	}

	g.sess.Data.FlowContext = nil
	g.sess.CurrentStep = session.StepIdle

	if isRestart {
		return &Result{Response: "Cancelled. How can I help you?"}, nil
	}
	return nil, nil // stuck-auth greeting: fall through
}

// --- Gate 5: resume confirmation -----------------------------------

var yesLexicon = map[string]bool{"yes": true, "resume": true, "sure": true, "ok": true, "ha": true, "ho": true}

func gateResumeConfirmation(g *gateCtx) (*Result, error) {
	if !g.sess.Data.AwaitingResumeConfirmation {
		return nil, nil
	}

	lowered := strings.ToLower(strings.TrimSpace(g.in.Message))
	g.sess.Data.AwaitingResumeConfirmation = false

	if yesLexicon[lowered] {
		suspended := g.sess.Data.SuspendedFlow
		g.sess.Data.SuspendedFlow = nil
		if suspended != nil && g.o.Flows != nil {
			ctx, cancel := deadlines.WithDeadline(g.ctx, deadlines.FlowEngine)
			defer cancel()
			resumed, err := g.o.Flows.ResumeSuspendedFlow(ctx, g.sess.Key)
			if err == nil && resumed {
				g.sess.Data.FlowContext = suspended
				return &Result{Response: "Welcome back! Picking up where we left off."}, nil
			}
		}
		return &Result{Response: "I couldn't resume that, let's start fresh. How can I help?"}, nil
	}

	g.sess.Data.SuspendedFlow = nil
	return nil, nil // "no": discard and fall through
}

// --- Gate 6: auth step ----------------------------------------------

func gateAuthStep(g *gateCtx) (*Result, error) {
	step := g.sess.CurrentStep
	if step == session.StepIdle || g.o.Auth == nil {
		return nil, nil
	}

	isLocationShare := isLocationSharePayload(g.in.Message)
	if auth.LocationShareDuringNameOrEmail(&g.sess.Data, step, isLocationShare) {
		g.sess.CurrentStep = session.StepIdle
		return nil, nil // fall through to normal routing
	}
	if isLocationShare {
		return nil, nil
	}

	ctx, cancel := deadlines.WithDeadline(g.ctx, deadlines.PHPBackend)
	defer cancel()

	outcome, err := g.o.Auth.Handle(ctx, &g.sess.Data, step, g.in.Message)
	if err != nil {
		g.log.Warn("gate", "name", "auth_step", "error", err)
		return &Result{Response: "Something went wrong verifying that, please try again."}, nil
	}

	g.sess.CurrentStep = outcome.NextStep

	if outcome.Cancelled {
		return &Result{Response: outcome.Reply}, nil
	}
	if !outcome.FallThrough {
		return &Result{Response: outcome.Reply}, nil
	}

	// FallThrough: authenticated, ready to resume step 8. Record the
	// auth_data metadata, capture a confirmation to prepend once a
	// flow or agent produces its response, and let the pipeline
	// continue so gate 8 can restore the pending intent.
	g.metadata["auth_data"] = outcome.AuthData
	g.postAuthReply = "You're verified!"
	return nil, nil
}

func isLocationSharePayload(message string) bool {
	return strings.Contains(message, "__LOCATION__") || strings.HasPrefix(strings.TrimSpace(message), "geo:")
}

// --- Gate 7: intent routing -----------------------------------------

var phonePrefixes = []string{"web-", "whatsapp-", "test-", "sess-"}
var phoneShape = regexp.MustCompile(`^(\+?91)?[6-9]\d{9}$`)

func looksLikePhone(participantID string) bool {
	rest := participantID
	for _, p := range phonePrefixes {
		rest = strings.TrimPrefix(rest, p)
	}
	return phoneShape.MatchString(rest)
}

func gateIntentRouting(g *gateCtx) (*Result, error) {
	if g.o.Router == nil {
		return nil, nil
	}

	nluCtx := nlu.Context{ActiveModule: g.sess.Data.Module}
	if g.sess.Data.FlowContext != nil {
		nluCtx.ActiveFlowID = g.sess.Data.FlowContext.FlowID
	}

	ctx, cancel := deadlines.WithDeadline(g.ctx, deadlines.NLUClassify)
	defer cancel()

	res, err := g.o.Router.Route(ctx, g.in.Message, nluCtx)
	if err != nil {
		g.log.Warn("gate", "name", "intent_routing", "error", err)
		res = router.Result{Intent: "unknown", Confidence: 0, Source: "error_fallback"}
	}
	g.route = res

	identifier := ""
	switch {
	case g.sess.Data.Authenticated && g.sess.Data.UserID != nil:
		identifier = fmt.Sprintf("%d", *g.sess.Data.UserID)
	case looksLikePhone(g.in.ParticipantID):
		identifier = g.in.ParticipantID
	}
	if identifier != "" && g.o.Preferences != nil {
		prefCtx, prefCancel := deadlines.WithDeadline(g.ctx, deadlines.PHPBackend)
		defer prefCancel()
		if prefs, err := g.o.Preferences.Preferences(prefCtx, identifier); err == nil {
			g.metadata["userPreferenceContext"] = prefs
		}
	}

	return nil, nil
}

// --- Gate 8: pending-intent resume -----------------------------------

func gatePendingIntentResume(g *gateCtx) (*Result, error) {
	if !g.sess.Data.Authenticated || !g.sess.Data.HasPendingIntent() {
		return nil, nil
	}

	d := &g.sess.Data
	g.route = router.Result{
		Intent:     d.PendingIntent,
		Confidence: 1.0,
		Entities:   entitiesFromPending(d.PendingEntities),
		AgentType:  d.PendingAction,
		Source:     "pending_resume",
	}
	g.in.Message = d.PendingMessage
	if d.PendingModule != "" {
		g.in.Module = d.PendingModule
	}
	d.ClearPending()
	return nil, nil
}

func entitiesFromPending(m map[string]any) map[string]nlu.EntityValue {
	if m == nil {
		return nil
	}
	out := make(map[string]nlu.EntityValue, len(m))
	for k, v := range m {
		out[k] = nlu.NewEntityValue(v)
	}
	return out
}

// --- Gate 9: active-flow continuation + 9a interruption check ------

// strongIntents is the closed set of intents important enough to ever
// consider interrupting an active flow.
var strongIntents = map[string]bool{
	"order_food": true, "search_product": true, "parcel_booking": true,
	"book_parcel": true, "track_order": true, "checkout": true,
	"login": true, "cancel": true,
}

var shortAllowedIntents = map[string]bool{"help": true, "cancel": true, "stop": true, "menu": true, "login": true}

func gateActiveFlow(g *gateCtx) (*Result, error) {
	if g.o.Flows == nil || g.sess.Data.FlowContext == nil {
		return nil, nil
	}

	ctx, cancel := deadlines.WithDeadline(g.ctx, deadlines.FlowEngine)
	defer cancel()

	active, err := g.o.Flows.GetActiveFlow(ctx, g.sess.Key)
	if err != nil || active == nil {
		g.sess.Data.FlowContext = nil
		return nil, nil
	}

	if shouldInterrupt(g, active) {
		g.interrupted = true
		if suspErr := g.o.Flows.SuspendFlow(ctx, g.sess.Key); suspErr == nil {
			g.sess.Data.SuspendedFlow = toSessionFlowHandle(active)
			g.sess.Data.FlowContext = nil
		}
		return nil, nil // continue the pipeline with the new intent
	}

	res, err := g.o.Flows.ProcessActiveFlow(ctx, g.sess.Key, g.in.Message, g.route.Intent, g.route.Confidence)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: process active flow: %w", err)
	}
	if res.Completed {
		g.sess.Data.FlowContext = nil
		g.flowCompleted = true
	}
	return &Result{
		Response: res.Response,
		Buttons:  convertFlowButtons(res.Buttons),
		Metadata: res.Metadata,
	}, nil
}

func shouldInterrupt(g *gateCtx, active *flow.Handle) bool {
	if !strongIntents[g.route.Intent] || g.route.Confidence <= 0.8 {
		return false
	}
	if g.route.AgentType != "" && g.sess.Data.Module != "" && sameModule(g.route, g.sess.Data.Module) {
		return false
	}

	ctx, cancel := deadlines.WithDeadline(g.ctx, deadlines.FlowEngine)
	defer cancel()
	if waiting, err := g.o.Flows.IsInWaitState(ctx, g.sess.Key); err == nil && waiting {
		return false
	}

	longEnough := len([]rune(strings.TrimSpace(g.in.Message))) >= 20
	if !longEnough && !shortAllowedIntents[g.route.Intent] {
		return false
	}
	return true
}

// sameModule reports whether the routed intent's module matches the
// session's active module; interruption requires a *different*
// module.
func sameModule(res router.Result, activeModule string) bool {
	return moduleForAgentType(res.AgentType) == activeModule
}

func moduleForAgentType(agentType string) string {
	switch agentType {
	case "food_agent":
		return "food"
	case "ecom_agent":
		return "ecom"
	case "parcel_agent":
		return "parcel"
	case "order_status_agent":
		return "tracking"
	default:
		return ""
	}
}

func toSessionFlowHandle(h *flow.Handle) *session.FlowHandle {
	if h == nil {
		return nil
	}
	return &session.FlowHandle{FlowID: h.FlowID, FlowRunID: h.FlowRunID, CurrentStateID: h.CurrentStateID}
}

func convertFlowButtons(in []flow.Button) []Button {
	out := make([]Button, len(in))
	for i, b := range in {
		out[i] = Button{Label: b.Label, Value: b.Value}
	}
	return out
}

// --- Gate 10: escape-intent fast path -------------------------------

var escapeIntents = map[string]bool{
	"login": true, "cancel": true, "reset": true, "help": true, "start_over": true, "main_menu": true,
}
var cancelKeywordPattern = regexp.MustCompile(`(?i)^(cancel|stop|never ?mind)\b`)

func gateEscapeIntent(g *gateCtx) (*Result, error) {
	explicitCancel := cancelKeywordPattern.MatchString(strings.TrimSpace(g.in.Message)) && len([]rune(g.in.Message)) < 20

	if !escapeIntents[g.route.Intent] && !explicitCancel {
		return nil, nil
	}
	if g.sess.Data.FlowContext != nil && g.o.Flows != nil {
		ctx, cancel := deadlines.WithDeadline(g.ctx, deadlines.FlowEngine)
		defer cancel()
		_ = g.o.Flows.CancelFlow(ctx, g.sess.Key) // idempotent
	}
	g.sess.Data.FlowContext = nil
	return nil, nil // continue: the escape intent itself still needs routing
}

// --- Gate 11: clarification gates -----------------------------------

var protectedIntents = map[string]bool{
	"greeting": true, "chitchat": true, "order_food": true, "search_product": true,
	"parcel_booking": true, "track_order": true, "farewell": true, "feedback": true,
}

func gateClarification(g *gateCtx) (*Result, error) {
	if g.route.Intent == "needs_clarification" {
		return smartClarificationMenu(g), nil
	}
	if g.route.Intent == "unknown" && g.route.Confidence < 0.6 {
		return genericHelpMenu(g), nil
	}
	if protectedIntents[g.route.Intent] {
		return nil, nil
	}

	trimmed := strings.TrimSpace(g.in.Message)
	gibberish := len([]rune(trimmed)) < 10 && !hasKnownLexicalHit(trimmed)
	if g.route.Confidence < 0.55 || gibberish {
		return genericHelpMenu(g), nil
	}
	return nil, nil
}

func hasKnownLexicalHit(message string) bool {
	lowered := strings.ToLower(message)
	for intent := range defaultAgentTableIntents() {
		if strings.Contains(lowered, intent) {
			return true
		}
	}
	return false
}

// defaultAgentTableIntents is a fixed set of domain keyword stems
// (order, food, parcel, ...) drawn from the intent names in
// router.defaultAgentTable; it is not that table's key set, which
// router does not export.
func defaultAgentTableIntents() map[string]bool {
	return map[string]bool{
		"order": true, "food": true, "parcel": true, "delivery": true,
		"cart": true, "track": true, "refund": true, "login": true,
	}
}

func genericHelpMenu(g *gateCtx) *Result {
	return &Result{
		Response: "I'm not sure I understood that. Here's what I can help with:",
		Buttons: []Button{
			{Label: "Order food", Value: "order_food"},
			{Label: "Search products", Value: "search_product"},
			{Label: "Send a parcel", Value: "parcel_booking"},
			{Label: "Track an order", Value: "track_order"},
		},
	}
}

func smartClarificationMenu(g *gateCtx) *Result {
	res := &Result{Response: "Did you mean one of these?"}
	for k, v := range g.route.Entities {
		if s, ok := v.AsString(); ok {
			res.Buttons = append(res.Buttons, Button{Label: s, Value: k})
		}
	}
	if len(res.Buttons) == 0 {
		return genericHelpMenu(g)
	}
	return res
}

// --- Gate 12: flow start ---------------------------------------------

func gateFlowStart(g *gateCtx) (*Result, error) {
	if g.o.Flows == nil {
		return nil, nil
	}

	ctx, cancel := deadlines.WithDeadline(g.ctx, deadlines.FlowEngine)
	defer cancel()

	def, err := g.o.Flows.FindFlowByIntent(ctx, g.route.Intent, g.in.Module)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: find flow by intent: %w", err)
	}
	if def == nil {
		return nil, nil
	}

	initCtx := flow.InitContext{
		Message:               g.in.Message,
		Intent:                g.route.Intent,
		Entities:              entitiesToAny(g.route.Entities),
		UserPreferenceContext: mergedPreferenceContext(g),
	}

	res, err := g.o.Flows.StartFlow(ctx, def.ID, initCtx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: start flow %s: %w", def.ID, err)
	}

	g.sess.Data.FlowContext = &session.FlowHandle{FlowID: def.ID}
	response := res.Response
	if g.postAuthReply != "" {
		response = g.postAuthReply + "\n\n" + response
	}
	return &Result{Response: response, Buttons: convertFlowButtons(res.Buttons), Metadata: res.Metadata}, nil
}

func entitiesToAny(in map[string]nlu.EntityValue) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.AsString(); ok {
			out[k] = s
		} else {
			out[k] = v.AsSlice()
		}
	}
	return out
}

func mergedPreferenceContext(g *gateCtx) map[string]any {
	if v, ok := g.metadata["userPreferenceContext"].(map[string]any); ok {
		return v
	}
	return g.in.UserPreferenceContext
}

// --- Gate 13: game-intent handler -------------------------------------

var gameIntents = map[string]bool{
	"play_game": true, "claim_reward": true, "view_rewards": true,
	"check_points": true, "leaderboard": true, "game_intro": true,
}

func gateGameIntent(g *gateCtx) (*Result, error) {
	if !gameIntents[g.route.Intent] {
		return nil, nil
	}
	if g.o.Agents == nil {
		return nil, nil
	}

	actx := buildAgentContext(g)
	ctx, cancel := deadlines.WithDeadline(g.ctx, deadlines.PHPBackend)
	defer cancel()

	res, err := g.o.Agents.Invoke(ctx, "game_agent", actx)
	if err != nil {
		g.log.Warn("gate", "name", "game_intent", "error", err)
		return genericHelpMenu(g), nil
	}
	g.metadata["gameIntent"] = g.route.Intent
	return &Result{Response: res.Response, Buttons: convertAgentButtons(res.Buttons), Metadata: res.Metadata}, nil
}

// --- Gate 14: agent fallback --------------------------------------------

func gateAgentFallback(g *gateCtx) (*Result, error) {
	if g.o.Agents == nil {
		return genericHelpMenu(g), nil
	}

	actx := buildAgentContext(g)
	ctx, cancel := deadlines.WithDeadline(g.ctx, deadlines.PHPBackend)
	defer cancel()

	res, err := g.o.Agents.Invoke(ctx, g.route.AgentType, actx)
	if err != nil {
		var authErr *AuthRequiredError
		if errors.As(err, &authErr) {
			auth.StartAuth(&g.sess.Data, authErr.Action, authErr.Module, authErr.Intent, g.in.Message, authErr.Entities)
			g.sess.CurrentStep = session.StepAwaitingPhoneNumber
			return &Result{Response: "To continue, I'll need to verify your phone number. What's your number?"}, nil
		}
		g.log.Warn("gate", "name", "agent_fallback", "agent", g.route.AgentType, "error", err)
		return genericHelpMenu(g), nil
	}

	if res.Handoff != nil && g.o.Handoffs != nil {
		res.Handoff.SourceAgent = g.route.AgentType
		handoffRes, hErr := g.o.Handoffs.Execute(ctx, g.in.ParticipantID, &g.sess.Data, *res.Handoff)
		if hErr != nil {
			if errors.Is(hErr, handoff.ErrMaxDepthExceeded) {
				return &Result{Response: "I'm having trouble routing this request. Let me get a human to help."}, nil
			}
			g.log.Warn("gate", "name", "agent_fallback", "handoff_error", hErr)
		} else {
			res = handoffRes
		}
	}

	response := res.Response
	if g.postAuthReply != "" {
		response = g.postAuthReply + "\n\n" + response
	}
	return &Result{Response: response, Buttons: convertAgentButtons(res.Buttons), Metadata: res.Metadata}, nil
}

func buildAgentContext(g *gateCtx) agent.Context {
	return agent.Context{
		ParticipantID:         g.in.ParticipantID,
		Message:               g.in.Message,
		Intent:                g.route.Intent,
		Entities:              entitiesToAny(g.route.Entities),
		Module:                g.in.Module,
		ZoneID:                g.sess.Data.ZoneID,
		Authenticated:         g.sess.Data.Authenticated,
		UserID:                g.sess.Data.UserID,
		AuthToken:             g.sess.Data.AuthToken,
		UserPreferenceContext: mergedPreferenceContext(g),
		History:               boundedHistory(g),
		Metadata:              g.metadata,
	}
}

// boundedHistory trims session history to the configured token budget
// when one is wired, otherwise hands every turn AppendHistory already
// kept (bounded by MaxHistoryTurns).
func boundedHistory(g *gateCtx) []agent.HistoryTurn {
	turns := g.sess.Data.History
	if g.o.HistoryBudget != nil {
		maxTokens := g.o.MaxHistoryTokens
		if maxTokens <= 0 {
			maxTokens = 2000
		}
		turns = g.o.HistoryBudget.FitTurns(turns, maxTokens)
	}

	out := make([]agent.HistoryTurn, len(turns))
	for i, t := range turns {
		out[i] = agent.HistoryTurn{Role: t.Role, Text: t.Text}
	}
	return out
}

func convertAgentButtons(in []agent.Button) []Button {
	out := make([]Button, len(in))
	for i, b := range in {
		out[i] = Button{Label: b.Label, Value: b.Value}
	}
	return out
}

// --- Gate 15: post-processing (finisher, not a competing gate) -----

func finalizePostProcessing(g *gateCtx, result *Result, gateName string) {
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	if g.route.Intent != "" {
		result.Metadata["intent"] = g.route.Intent
	}
	if g.flowCompleted {
		result.Metadata["flow_completed"] = true
	}
	if g.interrupted {
		result.Metadata["flow_interrupted"] = true
		// The suspended flow is resumable on the next turn: ask now so
		// the resume-confirmation gate can act on the user's yes/no.
		if g.sess.Data.SuspendedFlow != nil {
			g.sess.Data.AwaitingResumeConfirmation = true
			result.Response += "\n\nI've paused what we were doing earlier. Want to pick it back up?"
			result.Buttons = append(result.Buttons, Button{Label: "Yes, resume", Value: "yes"}, Button{Label: "No, discard", Value: "no"})
		}
	}
	for k, v := range g.metadata {
		if _, exists := result.Metadata[k]; !exists {
			result.Metadata[k] = v
		}
	}

	maxTurns := g.o.MaxHistoryTurns
	if maxTurns == 0 {
		maxTurns = 20
	}
	g.sess.Data.AppendHistory(session.Turn{Role: "user", Text: g.in.Message, Intent: g.route.Intent, Timestamp: g.start}, maxTurns)
	g.sess.Data.AppendHistory(session.Turn{Role: "assistant", Text: result.Response, Timestamp: time.Now()}, maxTurns)

	g.log.Info("processMessage", "gate", gateName, "intent", g.route.Intent, "confidence", g.route.Confidence)

	if g.o.BackgroundTasks == nil {
		return
	}
	participantID := g.in.ParticipantID
	intent := g.route.Intent
	lang := g.sess.Data.DetectedLanguage
	message := g.in.Message
	success := result.Metadata["content_blocked"] == nil

	if g.o.Training != nil {
		g.o.BackgroundTasks.Submit(func(ctx context.Context) {
			g.o.Training.RecordTraining(ctx, participantID, intent, lang, success)
		})
	}
	if g.o.Sentiment != nil {
		g.o.BackgroundTasks.Submit(func(ctx context.Context) {
			g.o.Sentiment.RecordSentiment(ctx, participantID, message)
		})
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
