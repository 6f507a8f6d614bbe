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

package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
)

func TestInitGlobalTracer_DisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := InitGlobalTracer(context.Background(), TracerConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	tracer := GetTracer("test")
	_, span := tracer.Start(context.Background(), "test_span")
	defer span.End()
}

func TestInitGlobalTracer_StdoutExporterEnabled(t *testing.T) {
	shutdown, err := InitGlobalTracer(context.Background(), TracerConfig{
		Enabled:      true,
		ExporterType: "stdout",
		ServiceName:  "assistant-core-test",
		SamplingRate: 1,
	})
	require.NoError(t, err)
	defer shutdown(context.Background())

	tracer := GetTracer("assistant-core-test")
	_, span := tracer.Start(context.Background(), "test_span")
	span.End()
}

func TestCallRecorder_NilRecorderIsSafe(t *testing.T) {
	var r *CallRecorder
	r.RecordCall(context.Background(), "api.example.com", 10*time.Millisecond, nil)
}

func TestInitMeter_RecordsCallsWithoutError(t *testing.T) {
	recorder, err := InitMeter("assistant-core-test", otelprom.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	recorder.RecordCall(context.Background(), "php-backend.internal", 25*time.Millisecond, nil)
	recorder.RecordCall(context.Background(), "php-backend.internal", 40*time.Millisecond, assert.AnError)
}
