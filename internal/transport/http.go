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

package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mangwale/assistant-core/pkg/flow"
)

// NewHTTPRouter builds the REST dev server that runs alongside the
// gRPC service: a direct JSON-over-HTTP
// surface for local development and for any caller that would rather
// not speak gRPC.
func NewHTTPRouter(s *Server, flows *flow.Dispatcher, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req ProcessMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.ParticipantID == "" || req.Message == "" {
			http.Error(w, `{"error":"participantId and message are required"}`, http.StatusBadRequest)
			return
		}

		res, err := s.Handle(r.Context(), &req)
		if err != nil {
			log.Error("processMessage", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	})

	if flows != nil {
		r.Post("/v1/admin/clear-flow-cache", func(w http.ResponseWriter, r *http.Request) {
			flows.ClearFlowCache()
			w.WriteHeader(http.StatusNoContent)
		})
	}

	return r
}
