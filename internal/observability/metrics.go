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
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// CallRecorder records duration/outcome metrics for one outbound call
// to an external collaborator. One instrument set covers everything,
// since every outbound call this repo makes funnels through
// internal/httpclient.Client.
type CallRecorder struct {
	duration    metric.Float64Histogram
	callsTotal  metric.Int64Counter
	errorsTotal metric.Int64Counter
}

// InitMeter installs a Prometheus-backed OTel MeterProvider (exported
// through the same /metrics endpoint internal/transport/http.go
// already serves via promhttp.Handler, since by default the exporter
// registers against the default Prometheus registerer) and builds the
// external-call CallRecorder. opts is forwarded to the
// exporter unchanged; tests pass otelprom.WithRegisterer(a fresh
// registry) so repeated calls in one test binary don't collide on the
// default registerer.
func InitMeter(serviceName string, opts ...otelprom.Option) (*CallRecorder, error) {
	exporter, err := otelprom.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	if serviceName == "" {
		serviceName = "assistant-core"
	}
	meter := mp.Meter(serviceName)

	duration, err := meter.Float64Histogram(
		"assistant_external_call_duration_seconds",
		metric.WithDescription("Duration of outbound calls to external collaborators."),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create duration histogram: %w", err)
	}
	callsTotal, err := meter.Int64Counter(
		"assistant_external_calls_total",
		metric.WithDescription("Outbound calls to external collaborators, by host."),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create calls counter: %w", err)
	}
	errorsTotal, err := meter.Int64Counter(
		"assistant_external_call_errors_total",
		metric.WithDescription("Outbound calls to external collaborators that returned an error."),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create errors counter: %w", err)
	}

	return &CallRecorder{duration: duration, callsTotal: callsTotal, errorsTotal: errorsTotal}, nil
}

// RecordCall records one completed outbound call. host is the
// collaborator's request host (php backend, nlu service, flow engine,
// ...), used as the one low-cardinality label this histogram carries.
func (r *CallRecorder) RecordCall(ctx context.Context, host string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("host", host))
	r.duration.Record(ctx, duration.Seconds(), attrs)
	r.callsTotal.Add(ctx, 1, attrs)
	if err != nil {
		r.errorsTotal.Add(ctx, 1, attrs)
	}
}
