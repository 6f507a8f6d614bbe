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

package ticketing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangwale/assistant-core/internal/httpclient"
	"github.com/mangwale/assistant-core/pkg/agent"
)

func TestFindByExternalID_EscapesConversationIDInFilter(t *testing.T) {
	var gotFilters string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilters = r.URL.Query().Get("filters")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"name":"ISS-001"}]}`))
	}))
	defer srv.Close()

	c := &FrappeClient{
		HTTP:            httpclient.New(),
		BaseURL:         srv.URL,
		Doctype:         "Issue",
		ExternalIDField: "custom_conversation_id",
	}

	ticket, found, err := c.FindByExternalID(context.Background(), `conv-"quoted"&tricky`)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ISS-001", ticket.IssueID)
	assert.JSONEq(t, `[["custom_conversation_id","=","conv-\"quoted\"&tricky"]]`, gotFilters)
}

func TestFindByExternalID_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := &FrappeClient{HTTP: httpclient.New(), BaseURL: srv.URL, Doctype: "Issue", ExternalIDField: "custom_conversation_id"}

	_, found, err := c.FindByExternalID(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateTicket_SetsIdempotencyKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Idempotency-Key")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"name":"ISS-002"}}`))
	}))
	defer srv.Close()

	c := &FrappeClient{HTTP: httpclient.New(), BaseURL: srv.URL, Doctype: "Issue", ExternalIDField: "custom_conversation_id"}

	ticket, err := c.CreateTicket(context.Background(), "conv-1", agent.PriorityMedium, "help needed")
	require.NoError(t, err)
	assert.Equal(t, "ISS-002", ticket.IssueID)
	assert.NotEmpty(t, gotKey)
}
