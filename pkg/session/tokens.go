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
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenBudget bounds Session.Data.History by an accurate token count
// instead of a raw turn count (cl100k_base encoding, per-message role
// overhead, most-recent-first fitting).
type TokenBudget struct {
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

// NewTokenBudget builds a TokenBudget using the cl100k_base
// encoding.
func NewTokenBudget() (*TokenBudget, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("session: load tiktoken encoding: %w", err)
	}
	return &TokenBudget{encoding: encoding}, nil
}

// CountTurn returns the token cost of one history turn, including a
// fixed per-message role overhead.
func (b *TokenBudget) CountTurn(t Turn) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	const tokensPerMessage = 3
	return tokensPerMessage +
		len(b.encoding.Encode(t.Role, nil, nil)) +
		len(b.encoding.Encode(t.Text, nil, nil))
}

// FitTurns returns the suffix of turns (most recent first, then
// restored to chronological order) that fits within maxTokens.
func (b *TokenBudget) FitTurns(turns []Turn, maxTokens int) []Turn {
	if len(turns) == 0 || maxTokens <= 0 {
		return turns
	}

	fitted := make([]Turn, 0, len(turns))
	total := 0
	for i := len(turns) - 1; i >= 0; i-- {
		cost := b.CountTurn(turns[i])
		if total+cost > maxTokens {
			break
		}
		fitted = append([]Turn{turns[i]}, fitted...)
		total += cost
	}
	return fitted
}
