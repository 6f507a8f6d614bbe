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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mangwale/assistant-core/internal/config"
	"github.com/mangwale/assistant-core/internal/httpclient"
	"github.com/mangwale/assistant-core/internal/observability"
	"github.com/mangwale/assistant-core/internal/obslog"
	"github.com/mangwale/assistant-core/internal/ticketing"
	"github.com/mangwale/assistant-core/internal/transport"
	"github.com/mangwale/assistant-core/pkg/agent"
	"github.com/mangwale/assistant-core/pkg/auth"
	"github.com/mangwale/assistant-core/pkg/filter"
	"github.com/mangwale/assistant-core/pkg/flow"
	"github.com/mangwale/assistant-core/pkg/handoff"
	"github.com/mangwale/assistant-core/pkg/nlu"
	"github.com/mangwale/assistant-core/pkg/orchestrator"
	"github.com/mangwale/assistant-core/pkg/router"
	"github.com/mangwale/assistant-core/pkg/session"
)

// ServeCmd starts both transports (gRPC and the chi REST dev server)
// over one shared *orchestrator.Orchestrator: load config, build the
// runtime, start serving, block on signals.
type ServeCmd struct {
	GRPCAddr string `help:"gRPC listen address (overrides config)." placeholder:"ADDR"`
	HTTPAddr string `help:"REST listen address (overrides config)." placeholder:"ADDR"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	watcher, err := config.NewWatcher(cli.Config)
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}
	defer watcher.Close()
	cfg := watcher.Current()

	log := obslog.New(cli.LogLevel, cli.LogFormat)

	orch, flows, cleanup, err := buildOrchestrator(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("serve: build orchestrator: %w", err)
	}
	defer cleanup()

	// Operators edit the lexicon (and flow catalog source) in place;
	// a config reload swaps the compiled word lists and drops the
	// cached flow catalog without a restart.
	watcher.OnReload = func(updated *config.Config) {
		orch.Filter.Reload(updated.Lexicon.ToLexicon())
		flows.ClearFlowCache()
		log.Info("config reloaded")
	}

	srv := &transport.Server{Orchestrator: orch}

	grpcAddr := cfg.Server.GRPCAddr
	if c.GRPCAddr != "" {
		grpcAddr = c.GRPCAddr
	}
	if grpcAddr == "" {
		grpcAddr = ":9090"
	}
	httpAddr := cfg.Server.HTTPAddr
	if c.HTTPAddr != "" {
		httpAddr = c.HTTPAddr
	}
	if httpAddr == "" {
		httpAddr = ":8081"
	}

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("serve: listen grpc: %w", err)
	}
	grpcServer := transport.NewGRPCServer(srv)
	go func() {
		log.Info("grpc server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc server stopped", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: transport.NewHTTPRouter(srv, flows, log),
	}
	go func() {
		log.Info("http server listening", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()

	return nil
}

// buildOrchestrator wires every collaborator into one
// *orchestrator.Orchestrator, assembling the runtime in main rather
// than hiding it behind a framework container.
func buildOrchestrator(ctx context.Context, cfg *config.Config, log *slog.Logger) (*orchestrator.Orchestrator, *flow.Dispatcher, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	tracerShutdown, err := observability.InitGlobalTracer(ctx, observability.TracerConfig{
		Enabled:      cfg.Tracing.Enabled,
		ExporterType: cfg.Tracing.ExporterType,
		EndpointURL:  cfg.Tracing.EndpointURL,
		SamplingRate: cfg.Tracing.SamplingRate,
		ServiceName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("serve: init tracer: %w", err)
	}
	closers = append(closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerShutdown(shutdownCtx)
	})

	var callRecorder *observability.CallRecorder
	if cfg.Tracing.Enabled {
		callRecorder, err = observability.InitMeter(cfg.Tracing.ServiceName)
		if err != nil {
			log.Warn("external-call metrics disabled", "error", err)
		}
	}

	store, err := buildSessionStore(cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	httpClient := httpclient.New(
		httpclient.WithTimeout(8*time.Second),
		httpclient.WithTracing(cfg.Tracing.ServiceName, callRecorder),
	)

	contentFilter := filter.New(cfg.Lexicon.ToLexicon())

	classifier := &nlu.HTTPClassifier{Client: httpClient, BaseURL: cfg.External.NLUServiceURL}
	intentRouter := router.New(classifier)

	var authMachine *auth.StateMachine
	if cfg.External.PHPBackendURL != "" {
		verifier := &auth.HTTPVerifier{Client: httpClient, BaseURL: cfg.External.PHPBackendURL}
		authMachine = &auth.StateMachine{Verifier: verifier, Updater: verifier}
		if cfg.Auth.TokenSecret != "" {
			issuer, err := auth.NewTokenIssuer([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenIssuer, cfg.Auth.TokenAudience)
			if err != nil {
				cleanup()
				return nil, nil, nil, fmt.Errorf("build token issuer: %w", err)
			}
			authMachine.Tokens = issuer
		}
	}

	flowEngine := &flow.HTTPEngine{Client: httpClient, BaseURL: cfg.External.FlowEngineURL}
	flowCatalog := &flow.HTTPCatalogSource{Client: httpClient, BaseURL: cfg.External.FlowEngineURL}
	flowDispatcher := flow.NewDispatcher(flowEngine, flowCatalog)

	agentRegistry := agent.NewRegistry()
	for _, p := range cfg.Agents {
		plugin, err := agent.LaunchPluginAgent(p.ID, p.Binary, p.Args...)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("launch agent plugin %s: %w", p.ID, err)
		}
		closers = append(closers, plugin.Close)
		if err := agentRegistry.RegisterAgent(plugin); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("register agent plugin %s: %w", p.ID, err)
		}
	}

	var ticketClient ticketing.Client
	if cfg.External.FrappeBaseURL != "" {
		ticketClient = &ticketing.FrappeClient{
			HTTP:            httpClient,
			BaseURL:         cfg.External.FrappeBaseURL,
			APIKey:          cfg.External.FrappeAPIKey,
			APISecret:       cfg.External.FrappeAPISecret,
			Doctype:         cfg.External.FrappeIssueDoctype,
			ExternalIDField: cfg.External.FrappeExternalIDField,
		}
	}
	handoffService := handoff.NewService(agentRegistry, ticketClient)

	taskCapacity := cfg.Orchestrator.BackgroundQueueCapacity
	taskWorkers := cfg.Orchestrator.BackgroundWorkers
	taskQueue := orchestrator.NewTaskQueue(taskCapacity, taskWorkers)
	closers = append(closers, taskQueue.Close)

	var preferences orchestrator.PreferenceProvider
	var training orchestrator.TrainingSink
	var sentiment orchestrator.SentimentSink
	if cfg.External.PHPBackendURL != "" {
		preferences = &orchestrator.HTTPPreferenceProvider{Client: httpClient, BaseURL: cfg.External.PHPBackendURL}
		training = &orchestrator.HTTPTrainingSink{Client: httpClient, BaseURL: cfg.External.PHPBackendURL}
		sentiment = &orchestrator.HTTPSentimentSink{Client: httpClient, BaseURL: cfg.External.PHPBackendURL}
	}

	historyBudget, err := session.NewTokenBudget()
	if err != nil {
		log.Warn("history token budget disabled", "error", err)
	}

	orch := &orchestrator.Orchestrator{
		Sessions:         store,
		Filter:           contentFilter,
		Router:           intentRouter,
		Auth:             authMachine,
		Flows:            flowDispatcher,
		Agents:           agentRegistry,
		Handoffs:         handoffService,
		Preferences:      preferences,
		Training:         training,
		Sentiment:        sentiment,
		BackgroundTasks:  taskQueue,
		Logger:           log,
		MaxHistoryTurns:  cfg.Orchestrator.MaxHistoryTurns,
		HistoryBudget:    historyBudget,
		MaxHistoryTokens: cfg.Orchestrator.MaxHistoryTokens,
	}

	return orch, flowDispatcher, cleanup, nil
}

func buildSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		return session.NewSQLStore("sqlite3", cfg.Session.DSN)
	case "postgres":
		return session.NewSQLStore("postgres", cfg.Session.DSN)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
