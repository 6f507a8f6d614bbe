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

// Package ticketing implements the human-escalation ticket creation
// the Handoff Service calls when a HandoffRequest targets
// "human". The default adapter talks to a Frappe issue tracker,
// configured by the FRAPPE_* environment variables, over the same
// retry/backoff httpclient.Client every other collaborator in this
// repo uses.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mangwale/assistant-core/internal/httpclient"
	"github.com/mangwale/assistant-core/pkg/agent"
)

// Ticket is the created-issue handle the Handoff Service stores in
// session.Data.FrappeIssueID for idempotent reuse.
type Ticket struct {
	IssueID string
}

// Client creates and looks up support tickets.
type Client interface {
	// CreateTicket opens a new issue. externalConversationID is used
	// as the idempotency key for lookups on later escalations.
	CreateTicket(ctx context.Context, externalConversationID string, priority agent.Priority, summary string) (Ticket, error)

	// FindByExternalID looks up an existing ticket by conversation
	// id, used when session.Data.FrappeIssueID is absent but a prior
	// escalation already created one (e.g. after a session reset).
	FindByExternalID(ctx context.Context, externalConversationID string) (Ticket, bool, error)
}

// FrappeClient implements Client against a Frappe REST API.
type FrappeClient struct {
	HTTP            *httpclient.Client
	BaseURL         string
	APIKey          string
	APISecret       string
	Doctype         string
	ExternalIDField string
}

type frappeDocResponse struct {
	Data struct {
		Name string `json:"name"`
	} `json:"data"`
}

// priorityMap maps handoff priorities to Frappe issue priorities.
var priorityMap = map[agent.Priority]string{
	agent.PriorityCritical: "Urgent",
	agent.PriorityHigh:     "High",
	agent.PriorityMedium:   "Medium",
	agent.PriorityLow:      "Low",
}

func (c *FrappeClient) CreateTicket(ctx context.Context, externalConversationID string, priority agent.Priority, summary string) (Ticket, error) {
	payload := map[string]any{
		"doctype":         c.Doctype,
		"priority":        priorityMap[priority],
		"subject":         summary,
		c.ExternalIDField: externalConversationID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Ticket{}, fmt.Errorf("ticketing: marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/resource/"+c.Doctype, bytes.NewReader(body))
	if err != nil {
		return Ticket{}, fmt.Errorf("ticketing: build request: %w", err)
	}
	c.authenticate(req)
	// One id per logical call, reused across internal/httpclient's
	// retry attempts, so a locally-retried create can't double-file
	// the same ticket on the Frappe side.
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Ticket{}, fmt.Errorf("ticketing: create ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Ticket{}, fmt.Errorf("ticketing: frappe returned %d", resp.StatusCode)
	}

	var out frappeDocResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Ticket{}, fmt.Errorf("ticketing: decode response: %w", err)
	}
	return Ticket{IssueID: out.Data.Name}, nil
}

func (c *FrappeClient) FindByExternalID(ctx context.Context, externalConversationID string) (Ticket, bool, error) {
	filter, err := json.Marshal([][]string{{c.ExternalIDField, "=", externalConversationID}})
	if err != nil {
		return Ticket{}, false, fmt.Errorf("ticketing: build filter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/resource/"+c.Doctype, nil)
	if err != nil {
		return Ticket{}, false, fmt.Errorf("ticketing: build lookup request: %w", err)
	}
	q := req.URL.Query()
	q.Set("filters", string(filter))
	req.URL.RawQuery = q.Encode()
	c.authenticate(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Ticket{}, false, fmt.Errorf("ticketing: lookup ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Ticket{}, false, fmt.Errorf("ticketing: frappe returned %d", resp.StatusCode)
	}

	var out struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Ticket{}, false, fmt.Errorf("ticketing: decode lookup response: %w", err)
	}
	if len(out.Data) == 0 {
		return Ticket{}, false, nil
	}
	return Ticket{IssueID: out.Data[0].Name}, true, nil
}

func (c *FrappeClient) authenticate(req *http.Request) {
	if c.APIKey != "" && c.APISecret != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.APIKey, c.APISecret))
	}
	req.Header.Set("Content-Type", "application/json")
}

var _ Client = (*FrappeClient)(nil)
