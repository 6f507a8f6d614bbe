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
	"sync"
)

// memoryStore is an in-memory Store implementation, used by tests
// and by the memory session backend for local development.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	keyed    *KeyedMutex
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[string]*Session),
		keyed:    NewKeyedMutex(),
	}
}

func (m *memoryStore) Get(ctx context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memoryStore) Create(ctx context.Context, key string) (*Session, error) {
	unlock := m.keyed.Lock(key)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s.Clone(), nil
	}
	s := New(key)
	m.sessions[key] = s
	return s.Clone(), nil
}

func (m *memoryStore) Mutate(ctx context.Context, key string, fn Patch) (*Session, error) {
	unlock := m.keyed.Lock(key)
	defer unlock()

	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok {
		s = New(key)
	} else {
		s = s.Clone()
	}
	m.mu.Unlock()

	if err := fn(s); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[key] = s
	m.mu.Unlock()

	return s.Clone(), nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}
