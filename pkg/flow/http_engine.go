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

package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mangwale/assistant-core/internal/httpclient"
)

// HTTPEngine is the default Engine, calling the external Flow Engine
// service over HTTP. The state machine's internals live on the other
// side of that wire, so this package only ever needs to shuttle
// requests/responses across it the way nlu.HTTPClassifier does
// for the NLU service.
type HTTPEngine struct {
	Client  *httpclient.Client
	BaseURL string
}

type activeFlowResponse struct {
	Active *Handle `json:"active"`
}

type waitStateResponse struct {
	Waiting bool `json:"waiting"`
}

type processFlowRequest struct {
	Message    string  `json:"message"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type startFlowRequest struct {
	FlowID    string      `json:"flowId"`
	InitCtx   InitContext `json:"initContext"`
	RequestID string      `json:"requestId"`
}

type resumeFlowResponse struct {
	Resumed bool `json:"resumed"`
}

func (e *HTTPEngine) GetActiveFlow(ctx context.Context, key string) (*Handle, error) {
	var out activeFlowResponse
	if err := e.get(ctx, "/flows/"+key+"/active", &out); err != nil {
		return nil, err
	}
	return out.Active, nil
}

func (e *HTTPEngine) IsInWaitState(ctx context.Context, key string) (bool, error) {
	var out waitStateResponse
	if err := e.get(ctx, "/flows/"+key+"/wait-state", &out); err != nil {
		return false, err
	}
	return out.Waiting, nil
}

func (e *HTTPEngine) ProcessActiveFlow(ctx context.Context, key, message, intent string, confidence float64) (ProcessResult, error) {
	var out ProcessResult
	err := e.post(ctx, "/flows/"+key+"/process", processFlowRequest{Message: message, Intent: intent, Confidence: confidence}, &out)
	return out, err
}

// StartFlow assigns a fresh request id per call so the Flow Engine can
// de-duplicate a locally-retried start (internal/httpclient retries
// once on a transient failure, and without an idempotency key that
// retry could start the same flow twice).
func (e *HTTPEngine) StartFlow(ctx context.Context, flowID string, initCtx InitContext) (ProcessResult, error) {
	var out ProcessResult
	err := e.post(ctx, "/flows/start", startFlowRequest{
		FlowID:    flowID,
		InitCtx:   initCtx,
		RequestID: uuid.NewString(),
	}, &out)
	return out, err
}

func (e *HTTPEngine) SuspendFlow(ctx context.Context, key string) error {
	return e.post(ctx, "/flows/"+key+"/suspend", struct{}{}, nil)
}

func (e *HTTPEngine) CancelFlow(ctx context.Context, key string) error {
	return e.post(ctx, "/flows/"+key+"/cancel", struct{}{}, nil)
}

func (e *HTTPEngine) ResumeSuspendedFlow(ctx context.Context, key string) (bool, error) {
	var out resumeFlowResponse
	err := e.post(ctx, "/flows/"+key+"/resume", struct{}{}, &out)
	return out.Resumed, err
}

func (e *HTTPEngine) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return e.do(req, out)
}

func (e *HTTPEngine) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, out)
}

func (e *HTTPEngine) do(req *http.Request, out any) error {
	resp, err := e.Client.Do(req)
	if err != nil {
		return fmt.Errorf("flow: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("flow: %s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("flow: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

var _ Engine = (*HTTPEngine)(nil)

// HTTPCatalogSource fetches the intent/module -> flow catalog from the
// same external Flow Engine service. Kept as a separate small type
// from HTTPEngine (rather than one more method on it) since
// Dispatcher already treats Engine and CatalogSource as independently
// swappable collaborators.
type HTTPCatalogSource struct {
	Client  *httpclient.Client
	BaseURL string
}

type catalogResponse struct {
	Flows []FlowDef `json:"flows"`
}

func (c *HTTPCatalogSource) FetchCatalog(ctx context.Context) ([]FlowDef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/flows/catalog", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flow: fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flow: fetch catalog returned %d", resp.StatusCode)
	}
	var out catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("flow: decode catalog response: %w", err)
	}
	return out.Flows, nil
}

var _ CatalogSource = (*HTTPCatalogSource)(nil)
