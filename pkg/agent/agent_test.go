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

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct {
	id     string
	result Result
	err    error
}

func (s *stubAgent) ID() string { return s.id }
func (s *stubAgent) Invoke(ctx context.Context, actx Context) (Result, error) {
	return s.result, s.err
}

func TestRegisterAgent_NilRejected(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterAgent(nil)
	assert.Error(t, err)
}

func TestInvoke_NotFoundListsAvailable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterAgent(&stubAgent{id: "faq"}))
	require.NoError(t, r.RegisterAgent(&stubAgent{id: "search"}))

	_, err := r.Invoke(context.Background(), "missing", Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing" not found`)
	assert.Contains(t, err.Error(), "faq")
	assert.Contains(t, err.Error(), "search")
}

func TestInvoke_DispatchesToRegisteredAgent(t *testing.T) {
	r := NewRegistry()
	want := Result{Response: "hi"}
	require.NoError(t, r.RegisterAgent(&stubAgent{id: "faq", result: want}))

	got, err := r.Invoke(context.Background(), "faq", Context{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRegistryError_UnwrapsCause(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterAgent(&stubAgent{id: "faq"}))
	err := r.RegisterAgent(&stubAgent{id: "faq"})
	require.Error(t, err)

	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "AgentRegistry", regErr.Component)
}
