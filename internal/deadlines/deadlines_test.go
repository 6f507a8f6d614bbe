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

package deadlines

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFor_KnownCallsBounded(t *testing.T) {
	for _, call := range []Call{NLUClassify, LLMChat, Embedding, VectorSearch, PHPBackend, Geocoding, ZoneResolve, Routing, SessionStore, FlowEngine} {
		d := For(call)
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 8*time.Second)
	}
}

func TestFor_UnknownCallDefaults(t *testing.T) {
	assert.Equal(t, 5*time.Second, For(Call("unknown_call")))
}

func TestWithDeadline_SetsContextDeadline(t *testing.T) {
	ctx, cancel := WithDeadline(context.Background(), LLMChat)
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(8*time.Second), deadline, time.Second)
}
