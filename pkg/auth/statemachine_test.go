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

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangwale/assistant-core/pkg/session"
)

type fakeVerifier struct {
	sentTo   string
	otpErr   error
	verifyOK bool
	profile  Profile
}

func (f *fakeVerifier) SendOTP(ctx context.Context, phone string) error {
	f.sentTo = phone
	return f.otpErr
}

func (f *fakeVerifier) VerifyOTP(ctx context.Context, phone, code string) (Profile, error) {
	if !f.verifyOK {
		return Profile{}, assert.AnError
	}
	return f.profile, nil
}

type fakeUpdater struct {
	profile Profile
	err     error
}

func (f *fakeUpdater) UpdateUserInfo(ctx context.Context, phone, name, email string) (Profile, error) {
	if f.err != nil {
		return Profile{}, f.err
	}
	f.profile.Name = name
	f.profile.Email = email
	return f.profile, nil
}

func TestHandle_CancelAtAnyStep(t *testing.T) {
	sm := &StateMachine{Verifier: &fakeVerifier{}, Updater: &fakeUpdater{}}
	for _, step := range []session.Step{
		session.StepAwaitingPhoneNumber,
		session.StepAwaitingOTP,
		session.StepAwaitingName,
		session.StepAwaitingEmail,
	} {
		data := &session.Data{}
		out, err := sm.Handle(context.Background(), data, step, "Cancel")
		require.NoError(t, err)
		assert.True(t, out.Cancelled)
		assert.Equal(t, session.StepIdle, out.NextStep)
	}
}

func TestHandlePhoneNumber_InvalidNumberReprompts(t *testing.T) {
	sm := &StateMachine{Verifier: &fakeVerifier{}, Updater: &fakeUpdater{}}
	data := &session.Data{}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingPhoneNumber, "123")
	require.NoError(t, err)
	assert.Equal(t, session.StepAwaitingPhoneNumber, out.NextStep)
	assert.Contains(t, out.Reply, "valid phone number")
}

func TestHandlePhoneNumber_ValidNumberSendsOTP(t *testing.T) {
	verifier := &fakeVerifier{}
	sm := &StateMachine{Verifier: verifier, Updater: &fakeUpdater{}}
	data := &session.Data{}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingPhoneNumber, "+91 98765 43210")
	require.NoError(t, err)
	assert.Equal(t, session.StepAwaitingOTP, out.NextStep)
	assert.Equal(t, "919876543210", verifier.sentTo)
	assert.Equal(t, "919876543210", data.TempPhone)
}

func TestHandleOTP_InvalidFormatReprompts(t *testing.T) {
	sm := &StateMachine{Verifier: &fakeVerifier{}, Updater: &fakeUpdater{}}
	data := &session.Data{TempPhone: "919876543210"}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingOTP, "12")
	require.NoError(t, err)
	assert.Equal(t, session.StepAwaitingOTP, out.NextStep)
	assert.Contains(t, out.Reply, "doesn't look right")
}

func TestHandleOTP_VerifyFailureReprompts(t *testing.T) {
	sm := &StateMachine{Verifier: &fakeVerifier{verifyOK: false}, Updater: &fakeUpdater{}}
	data := &session.Data{TempPhone: "919876543210"}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingOTP, "1234")
	require.NoError(t, err)
	assert.Equal(t, session.StepAwaitingOTP, out.NextStep)
	assert.Contains(t, out.Reply, "didn't verify")
	assert.False(t, data.Authenticated)
}

func TestHandleOTP_SuccessWithPersonalInfoFallsThrough(t *testing.T) {
	profile := Profile{UserID: 42, Name: "Asha", Email: "asha@example.com", Phone: "919876543210", IsPersonalInfo: true}
	sm := &StateMachine{Verifier: &fakeVerifier{verifyOK: true, profile: profile}, Updater: &fakeUpdater{}}
	data := &session.Data{TempPhone: "919876543210"}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingOTP, "123456")
	require.NoError(t, err)
	assert.True(t, out.FallThrough)
	assert.Equal(t, session.StepIdle, out.NextStep)
	assert.True(t, data.Authenticated)
	require.NotNil(t, data.UserID)
	assert.Equal(t, int64(42), *data.UserID)
	assert.Equal(t, int64(42), out.AuthData["userId"])
}

func TestHandleOTP_SuccessWithoutPersonalInfoAsksName(t *testing.T) {
	profile := Profile{UserID: 42, IsPersonalInfo: false}
	sm := &StateMachine{Verifier: &fakeVerifier{verifyOK: true, profile: profile}, Updater: &fakeUpdater{}}
	data := &session.Data{TempPhone: "919876543210"}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingOTP, "1234")
	require.NoError(t, err)
	assert.False(t, out.FallThrough)
	assert.Equal(t, session.StepAwaitingName, out.NextStep)
	assert.True(t, data.Authenticated)
}

func TestHandleName_TooShortReprompts(t *testing.T) {
	sm := &StateMachine{Verifier: &fakeVerifier{}, Updater: &fakeUpdater{}}
	data := &session.Data{}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingName, "A")
	require.NoError(t, err)
	assert.Equal(t, session.StepAwaitingName, out.NextStep)
}

func TestHandleName_ValidAdvancesToEmail(t *testing.T) {
	sm := &StateMachine{Verifier: &fakeVerifier{}, Updater: &fakeUpdater{}}
	data := &session.Data{}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingName, "Asha Kumar")
	require.NoError(t, err)
	assert.Equal(t, session.StepAwaitingEmail, out.NextStep)
	assert.Equal(t, "Asha Kumar", data.TempName)
}

func TestHandleEmail_InvalidFormatReprompts(t *testing.T) {
	sm := &StateMachine{Verifier: &fakeVerifier{}, Updater: &fakeUpdater{}}
	data := &session.Data{TempName: "Asha", TempPhone: "919876543210"}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingEmail, "not-an-email")
	require.NoError(t, err)
	assert.Equal(t, session.StepAwaitingEmail, out.NextStep)
}

func TestHandleEmail_ValidUpdatesProfileAndFallsThrough(t *testing.T) {
	updater := &fakeUpdater{profile: Profile{UserID: 42, Phone: "919876543210"}}
	sm := &StateMachine{Verifier: &fakeVerifier{}, Updater: updater}
	data := &session.Data{TempName: "Asha", TempPhone: "919876543210"}

	out, err := sm.Handle(context.Background(), data, session.StepAwaitingEmail, "asha@example.com")
	require.NoError(t, err)
	assert.True(t, out.FallThrough)
	assert.Equal(t, session.StepIdle, out.NextStep)
	assert.Equal(t, "", data.TempName)
	assert.Equal(t, "asha@example.com", out.AuthData["email"])
}

func TestLocationShareDuringNameOrEmail(t *testing.T) {
	data := &session.Data{TempName: "partial"}
	assert.True(t, LocationShareDuringNameOrEmail(data, session.StepAwaitingName, true))
	assert.Equal(t, "", data.TempName)

	data2 := &session.Data{}
	assert.False(t, LocationShareDuringNameOrEmail(data2, session.StepAwaitingPhoneNumber, true))
	assert.False(t, LocationShareDuringNameOrEmail(data2, session.StepAwaitingName, false))
}

func TestStartAuth_ParksPendingIntent(t *testing.T) {
	data := &session.Data{}
	StartAuth(data, "order", "food", "order_food", "I want a pizza", map[string]any{"item": "pizza"})

	assert.Equal(t, "order", data.PendingAction)
	assert.Equal(t, "food", data.PendingModule)
	assert.Equal(t, "order_food", data.PendingIntent)
	assert.Equal(t, "I want a pizza", data.PendingMessage)
	assert.True(t, data.HasPendingIntent())
}

func TestTokenIssuer_IssueAndVerifyRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer([]byte("a-test-signing-secret-value"), "assistant-core", "assistant-clients")
	require.NoError(t, err)

	profile := Profile{UserID: 7, Name: "Asha", Email: "asha@example.com", Phone: "919876543210"}
	token, err := issuer.Issue(profile)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	userID, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
}

func TestTokenIssuer_RejectsEmptySecret(t *testing.T) {
	_, err := NewTokenIssuer(nil, "assistant-core", "assistant-clients")
	assert.Error(t, err)
}

func TestTokenIssuer_VerifyRejectsWrongAudience(t *testing.T) {
	issuerA, err := NewTokenIssuer([]byte("a-test-signing-secret-value"), "assistant-core", "audience-a")
	require.NoError(t, err)
	issuerB, err := NewTokenIssuer([]byte("a-test-signing-secret-value"), "assistant-core", "audience-b")
	require.NoError(t, err)

	token, err := issuerA.Issue(Profile{UserID: 1})
	require.NoError(t, err)

	_, err = issuerB.Verify(token)
	assert.Error(t, err)
}
