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

package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mangwale/assistant-core/internal/httpclient"
)

// HTTPClassifier is the default Classifier, calling the remote NLU
// service through the shared retry/backoff client.
type HTTPClassifier struct {
	Client  *httpclient.Client
	BaseURL string
}

type classifyRequest struct {
	Message        string `json:"message"`
	ActiveModule   string `json:"activeModule,omitempty"`
	ActiveFlowID   string `json:"activeFlowId,omitempty"`
	LastBotMessage string `json:"lastBotMessage,omitempty"`
}

type classifyResponse struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
	Raw        map[string]any `json:"raw"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, message string, nluCtx Context) (Classification, error) {
	body, err := json.Marshal(classifyRequest{
		Message:        message,
		ActiveModule:   nluCtx.ActiveModule,
		ActiveFlowID:   nluCtx.ActiveFlowID,
		LastBotMessage: nluCtx.LastBotMessage,
	})
	if err != nil {
		return Classification{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return Classification{}, fmt.Errorf("nlu: classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Classification{}, fmt.Errorf("nlu: classifier returned %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Classification{}, fmt.Errorf("nlu: decode classify response: %w", err)
	}

	entities := make(map[string]EntityValue, len(out.Entities))
	for k, v := range out.Entities {
		entities[k] = NewEntityValue(v)
	}

	return Classification{
		Intent:     out.Intent,
		Confidence: out.Confidence,
		Entities:   entities,
		Raw:        out.Raw,
	}, nil
}

var _ Classifier = (*HTTPClassifier)(nil)
