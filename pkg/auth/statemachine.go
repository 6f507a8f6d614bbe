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

// Package auth implements the login sub-state machine (phone, OTP,
// name, email) and session-token issuance. The state machine is
// realized as inline handlers called from the orchestrator's
// auth-step gate, not as a dedicated Flow Engine flow.
package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mangwale/assistant-core/pkg/session"
)

// Profile is what a successful OTP verification or profile update
// yields.
type Profile struct {
	UserID         int64
	Name           string
	Email          string
	Phone          string
	IsPersonalInfo bool
}

// Verifier is the external phone/OTP capability (the PHP backend's
// auth endpoints).
type Verifier interface {
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (Profile, error)
}

// ProfileUpdater persists the name/email collected after first login.
type ProfileUpdater interface {
	UpdateUserInfo(ctx context.Context, phone, name, email string) (Profile, error)
}

// Outcome is what one auth-step transition produces.
type Outcome struct {
	NextStep    session.Step
	Reply       string
	AuthData    map[string]any
	FallThrough bool // true once authenticated and ready to resume step 8
	Cancelled   bool
}

const (
	cancelHint = `Type "cancel" to exit anytime.`
)

var (
	otpPattern   = regexp.MustCompile(`^\d{4}$|^\d{6}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigit     = regexp.MustCompile(`\D`)
)

// StateMachine drives the login transitions: idle, awaiting phone,
// awaiting OTP, then optionally awaiting name and email.
type StateMachine struct {
	Verifier Verifier
	Updater  ProfileUpdater

	// Tokens, when set, mints a first-party session token on every
	// successful login; the token travels in the session's authToken
	// field and in the auth_data metadata.
	Tokens *TokenIssuer
}

// IsCancel reports whether message is the auth-cancel keyword (case
// insensitive), valid at any auth step.
func IsCancel(message string) bool {
	return strings.EqualFold(strings.TrimSpace(message), "cancel")
}

// StartAuth transitions idle -> awaiting_phone_number, parking the
// action that required login so step 8 (pending-intent resume) can
// restore it after successful login.
func StartAuth(data *session.Data, action, module, intent, rawMessage string, entities map[string]any) {
	data.PendingAction = action
	data.PendingModule = module
	data.PendingIntent = intent
	data.PendingMessage = rawMessage
	data.PendingEntities = entities
}

// Handle runs one auth-step transition. Callers are expected to have
// already routed to this function only when currentStep is one of the
// awaiting_* auth steps.
func (m *StateMachine) Handle(ctx context.Context, data *session.Data, step session.Step, message string) (Outcome, error) {
	if IsCancel(message) {
		data.ClearPending()
		return Outcome{NextStep: session.StepIdle, Reply: "Login cancelled.", Cancelled: true}, nil
	}

	switch step {
	case session.StepAwaitingPhoneNumber:
		return m.handlePhoneNumber(ctx, data, message)
	case session.StepAwaitingOTP:
		return m.handleOTP(ctx, data, message)
	case session.StepAwaitingName:
		return m.handleName(data, message)
	case session.StepAwaitingEmail:
		return m.handleEmail(ctx, data, message)
	default:
		return Outcome{NextStep: step, Reply: ""}, fmt.Errorf("auth: not an auth step: %s", step)
	}
}

func (m *StateMachine) handlePhoneNumber(ctx context.Context, data *session.Data, message string) (Outcome, error) {
	digits := nonDigit.ReplaceAllString(message, "")
	if len(digits) < 10 {
		return Outcome{
			NextStep: session.StepAwaitingPhoneNumber,
			Reply:    "That doesn't look like a valid phone number. Please share a 10-digit number. " + cancelHint,
		}, nil
	}

	if err := m.Verifier.SendOTP(ctx, digits); err != nil {
		return Outcome{}, fmt.Errorf("auth: send otp: %w", err)
	}

	data.TempPhone = digits
	return Outcome{
		NextStep: session.StepAwaitingOTP,
		Reply:    "I've sent you an OTP. Please enter the code to continue.",
	}, nil
}

func (m *StateMachine) handleOTP(ctx context.Context, data *session.Data, message string) (Outcome, error) {
	code := strings.TrimSpace(message)
	if !otpPattern.MatchString(code) {
		return Outcome{
			NextStep: session.StepAwaitingOTP,
			Reply:    "That code doesn't look right. Please enter the 4 or 6 digit OTP. " + cancelHint,
		}, nil
	}

	profile, err := m.Verifier.VerifyOTP(ctx, data.TempPhone, code)
	if err != nil {
		return Outcome{
			NextStep: session.StepAwaitingOTP,
			Reply:    "That OTP didn't verify. Please try again. " + cancelHint,
		}, nil
	}

	data.Authenticated = true
	userID := profile.UserID
	data.UserID = &userID
	m.issueToken(data, profile)

	if !profile.IsPersonalInfo {
		return Outcome{NextStep: session.StepAwaitingName, Reply: "What's your name?"}, nil
	}

	return Outcome{
		NextStep:    session.StepIdle,
		AuthData:    m.authData(data, profile),
		FallThrough: true,
	}, nil
}

// issueToken mints the session auth token when an issuer is wired; a
// signing failure degrades to an authenticated session without a
// token rather than failing the login.
func (m *StateMachine) issueToken(data *session.Data, profile Profile) {
	if m.Tokens == nil {
		return
	}
	if token, err := m.Tokens.Issue(profile); err == nil {
		data.AuthToken = token
	}
}

func (m *StateMachine) authData(data *session.Data, profile Profile) map[string]any {
	out := map[string]any{
		"userId": profile.UserID,
		"name":   profile.Name,
		"email":  profile.Email,
		"phone":  profile.Phone,
	}
	if data.AuthToken != "" {
		out["authToken"] = data.AuthToken
	}
	return out
}

func (m *StateMachine) handleName(data *session.Data, message string) (Outcome, error) {
	name := strings.TrimSpace(message)
	if len(name) < 2 {
		return Outcome{
			NextStep: session.StepAwaitingName,
			Reply:    "Could you share your name (at least 2 characters)? " + cancelHint,
		}, nil
	}

	data.TempName = name
	return Outcome{NextStep: session.StepAwaitingEmail, Reply: "And your email address?"}, nil
}

func (m *StateMachine) handleEmail(ctx context.Context, data *session.Data, message string) (Outcome, error) {
	email := strings.TrimSpace(message)
	if !emailPattern.MatchString(email) {
		return Outcome{
			NextStep: session.StepAwaitingEmail,
			Reply:    "That doesn't look like a valid email address. Please try again. " + cancelHint,
		}, nil
	}

	profile, err := m.Updater.UpdateUserInfo(ctx, data.TempPhone, data.TempName, email)
	if err != nil {
		return Outcome{}, fmt.Errorf("auth: update user info: %w", err)
	}

	data.TempName = ""
	return Outcome{
		NextStep:    session.StepIdle,
		AuthData:    m.authData(data, profile),
		FallThrough: true,
	}, nil
}

// LocationShareDuringNameOrEmail handles the one exception to the
// auth gate: a location share while awaiting name/email clears the
// auth step and discards tempName so the message falls through to
// normal routing instead of being swallowed by the name/email parser.
func LocationShareDuringNameOrEmail(data *session.Data, step session.Step, isLocationShare bool) bool {
	if !isLocationShare {
		return false
	}
	if step != session.StepAwaitingName && step != session.StepAwaitingEmail {
		return false
	}
	data.TempName = ""
	return true
}
