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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mangwale/assistant-core/internal/httpclient"
)

// HTTPPreferenceProvider fetches a participant's saved shopping
// preferences from the PHP backend for gate 7's injection step,
// the same thin wire-adapter idiom as pkg/nlu.HTTPClassifier and
// pkg/flow.HTTPEngine.
type HTTPPreferenceProvider struct {
	Client  *httpclient.Client
	BaseURL string
}

func (p *HTTPPreferenceProvider) Preferences(ctx context.Context, identifier string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/users/"+identifier+"/preferences", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: fetch preferences: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("orchestrator: fetch preferences returned %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("orchestrator: decode preferences: %w", err)
	}
	return out, nil
}

// HTTPTrainingSink and HTTPSentimentSink post step 15's fire-and-
// forget samples to the PHP backend's training/sentiment collection
// endpoints. Both run only from inside a BackgroundTasks.Submit
// closure, so a failed post is logged by the caller and never
// surfaces to processMessage.
type HTTPTrainingSink struct {
	Client  *httpclient.Client
	BaseURL string
}

type trainingSample struct {
	ParticipantID string `json:"participantId"`
	Intent        string `json:"intent"`
	Language      string `json:"language"`
	Success       bool   `json:"success"`
}

func (s *HTTPTrainingSink) RecordTraining(ctx context.Context, participantID, intent, language string, success bool) {
	s.post(ctx, "/training/samples", trainingSample{ParticipantID: participantID, Intent: intent, Language: language, Success: success})
}

type HTTPSentimentSink struct {
	Client  *httpclient.Client
	BaseURL string
}

type sentimentSample struct {
	ParticipantID string `json:"participantId"`
	Message       string `json:"message"`
}

func (s *HTTPSentimentSink) RecordSentiment(ctx context.Context, participantID, message string) {
	s.post(ctx, "/sentiment/samples", sentimentSample{ParticipantID: participantID, Message: message})
}

func (s *HTTPTrainingSink) post(ctx context.Context, path string, body any) {
	postJSON(ctx, s.Client, s.BaseURL+path)(body)
}

func (s *HTTPSentimentSink) post(ctx context.Context, path string, body any) {
	postJSON(ctx, s.Client, s.BaseURL+path)(body)
}

func postJSON(ctx context.Context, client *httpclient.Client, url string) func(body any) {
	return func(body any) {
		encoded, err := json.Marshal(body)
		if err != nil {
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return
		}
		resp.Body.Close()
	}
}

var (
	_ PreferenceProvider = (*HTTPPreferenceProvider)(nil)
	_ TrainingSink       = (*HTTPTrainingSink)(nil)
	_ SentimentSink      = (*HTTPSentimentSink)(nil)
)
