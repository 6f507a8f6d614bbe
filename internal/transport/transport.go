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

// Package transport exposes the orchestration core's single entry
// point, processMessage, over both a gRPC service and a
// plain chi-routed REST surface, sharing one request/response
// conversion so the two transports can never drift from each other.
package transport

import (
	"context"

	"github.com/mangwale/assistant-core/pkg/orchestrator"
)

// ProcessMessageRequest is the wire shape of processMessage's
// argument bundle.
type ProcessMessageRequest struct {
	ParticipantID         string         `json:"participantId"`
	Message               string         `json:"message"`
	Module                string         `json:"module,omitempty"`
	ImageURL              string         `json:"imageUrl,omitempty"`
	TestSession           bool           `json:"testSession,omitempty"`
	UserPreferenceContext map[string]any `json:"userPreferenceContext,omitempty"`
}

// Button mirrors orchestrator.Button for the wire.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ProcessMessageResponse is the wire shape of processMessage's result.
type ProcessMessageResponse struct {
	Response        string         `json:"response"`
	Buttons         []Button       `json:"buttons,omitempty"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Server adapts an *orchestrator.Orchestrator to both transports'
// request/response shapes.
type Server struct {
	Orchestrator *orchestrator.Orchestrator
}

// Handle runs one processMessage call. Both the gRPC handler and the
// chi REST handler call this directly so response shaping never
// diverges between transports.
func (s *Server) Handle(ctx context.Context, req *ProcessMessageRequest) (*ProcessMessageResponse, error) {
	res, err := s.Orchestrator.ProcessMessage(ctx, orchestrator.Input{
		ParticipantID:         req.ParticipantID,
		Message:               req.Message,
		Module:                req.Module,
		ImageURL:              req.ImageURL,
		TestSession:           req.TestSession,
		UserPreferenceContext: req.UserPreferenceContext,
	})
	if err != nil {
		return nil, err
	}

	buttons := make([]Button, len(res.Buttons))
	for i, b := range res.Buttons {
		buttons[i] = Button{Label: b.Label, Value: b.Value}
	}

	return &ProcessMessageResponse{
		Response:        res.Response,
		Buttons:         buttons,
		ExecutionTimeMs: res.ExecutionTime.Milliseconds(),
		Metadata:        res.Metadata,
	}, nil
}

