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

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no session exists for the key.
var ErrNotFound = errors.New("session: not found")

// Patch mutates a Session in place during a Store.Mutate call. It
// returns an error to abort the write (the store leaves the record
// untouched in that case).
type Patch func(*Session) error

// Store is the session-store contract: get / save / setStep /
// setData, plus the
// atomic Mutate the orchestrator relies on to do read-modify-write
// without a caller-visible race: two concurrent messages for the same
// session key must not interleave.
//
// Implementations must serialize Mutate calls per key (see
// KeyedMutex) and must treat writes as whole-object last-writer-wins.
type Store interface {
	// Get loads the session for key, creating nothing. Returns
	// ErrNotFound if absent.
	Get(ctx context.Context, key string) (*Session, error)

	// Create lazily initializes an empty session for key.
	Create(ctx context.Context, key string) (*Session, error)

	// Mutate loads the session (creating one if absent), applies fn,
	// and persists the result atomically with respect to other
	// Mutate calls on the same key.
	Mutate(ctx context.Context, key string, fn Patch) (*Session, error)

	// Delete removes a session. Used by operator tooling only; the
	// core itself never auto-destroys sessions.
	Delete(ctx context.Context, key string) error
}

// SetStep is a convenience Patch-returning helper for the common
// "advance currentStep and merge data" operation the auth sub-state
// machine performs at every transition.
func SetStep(step Step, dataPatch func(*Data)) Patch {
	return func(s *Session) error {
		s.CurrentStep = step
		if dataPatch != nil {
			dataPatch(&s.Data)
		}
		return nil
	}
}

// SetData applies a single field-level mutation to the data bag.
func SetData(fn func(*Data)) Patch {
	return func(s *Session) error {
		fn(&s.Data)
		return nil
	}
}
