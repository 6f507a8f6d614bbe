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

package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangwale/assistant-core/internal/httpclient"
)

func TestHTTPClient_Distances_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/distances", r.URL.Path)
		assert.Equal(t, 2, len(r.URL.Query()["dest"]))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"distances_km":[1.2,3.4]}`))
	}))
	defer srv.Close()

	c := &HTTPClient{Client: httpclient.New(), BaseURL: srv.URL}
	dists, err := c.Distances(context.Background(), 12.9, 77.6, [][2]float64{{12.91, 77.61}, {12.92, 77.62}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.2, 3.4}, dists)
}

func TestHTTPClient_Distances_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &HTTPClient{Client: httpclient.New(httpclient.WithMaxRetries(0)), BaseURL: srv.URL}
	_, err := c.Distances(context.Background(), 0, 0, nil)
	assert.Error(t, err)
}
