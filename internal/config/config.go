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

// Package config loads this service's YAML configuration: connection
// settings for every external collaborator (the
// PHP_BACKEND_URL/SEARCH_API_URL/... environment variables), the
// content-filter lexicon, and operator-tunable knobs. godotenv covers
// local dev secrets, `${VAR}`/`${VAR:-default}` substitution runs
// before YAML unmarshal, and an fsnotify-backed hot-reload path lets
// operators edit the lexicon without a redeploy (the serve command
// also drops its cached flow catalog on each reload).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mangwale/assistant-core/pkg/filter"
)

// External holds the operator-configured base URLs and credentials
// for every external collaborator. PHPBackendURL is the one
// fatal-if-absent setting.
type External struct {
	PHPBackendURL       string `yaml:"php_backend_url"`
	SearchAPIURL        string `yaml:"search_api_url"`
	OpenSearchURL       string `yaml:"opensearch_url"`
	EmbeddingServiceURL string `yaml:"embedding_service_url"`
	ImageAIURL          string `yaml:"image_ai_url"`

	FrappeBaseURL         string `yaml:"frappe_base_url"`
	FrappeAPIKey          string `yaml:"frappe_api_key"`
	FrappeAPISecret       string `yaml:"frappe_api_secret"`
	FrappeIssueDoctype    string `yaml:"frappe_issue_doctype"`
	FrappeExternalIDField string `yaml:"frappe_external_id_field"`

	NLUServiceURL string `yaml:"nlu_service_url"`
	FlowEngineURL string `yaml:"flow_engine_url"`
	RoutingAPIURL string `yaml:"routing_api_url"`
}

// Session configures the session-store backend: an in-memory map or
// a SQL-backed implementation.
type Session struct {
	Backend string `yaml:"backend"` // "memory" (default) or "sqlite"/"postgres"
	DSN     string `yaml:"dsn"`
}

// Auth configures session-token issuance.
type Auth struct {
	TokenSecret   string `yaml:"token_secret"`
	TokenIssuer   string `yaml:"token_issuer"`
	TokenAudience string `yaml:"token_audience"`
}

// AgentPlugin is one go-plugin-backed agent binary the Agent Registry
// launches at startup.
type AgentPlugin struct {
	ID     string   `yaml:"id"`
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// Orchestrator configures the orchestrator's tunables:
// background-task queue sizing
// and the bounded conversation-history window.
type Orchestrator struct {
	BackgroundQueueCapacity int `yaml:"background_queue_capacity"`
	BackgroundWorkers       int `yaml:"background_workers"`
	MaxHistoryTurns         int `yaml:"max_history_turns"`
	MaxHistoryTokens        int `yaml:"max_history_tokens"`
}

// Tracing configures the OTel tracer/meter providers that instrument
// every outbound external call.
type Tracing struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter_type"`
	EndpointURL  string  `yaml:"endpoint_url"`
	SamplingRate float64 `yaml:"sampling_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// Server holds the transport-layer bind addresses cmd/assistant-core
// wires up.
type Server struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// Vector selects and configures the k-NN backend, mirroring
// pkg/vector.Config's shape in YAML form.
type Vector struct {
	Backend string `yaml:"backend"`

	Qdrant struct {
		Host   string `yaml:"host"`
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
		UseTLS bool   `yaml:"use_tls"`
	} `yaml:"qdrant"`

	Pinecone struct {
		APIKey    string `yaml:"api_key"`
		Host      string `yaml:"host"`
		IndexName string `yaml:"index_name"`
	} `yaml:"pinecone"`

	Chromem struct {
		PersistPath string `yaml:"persist_path"`
		Compress    bool   `yaml:"compress"`
	} `yaml:"chromem"`
}

// LexiconFile is the content filter's word-list configuration,
// reloadable without a binary rebuild.
type LexiconFile struct {
	Profanity      []string `yaml:"profanity"`
	AdultContent   []string `yaml:"adult_content"`
	HarmfulContent []string `yaml:"harmful_content"`
	OffTopic       []string `yaml:"off_topic"`
	Competitors    []string `yaml:"competitors"`

	Replies map[string]struct {
		English string `yaml:"en"`
		Hindi   string `yaml:"hi"`
	} `yaml:"replies"`
}

// ToLexicon converts the on-disk shape into pkg/filter's compile-ready
// Lexicon.
func (f LexiconFile) ToLexicon() filter.Lexicon {
	replies := make(map[filter.Reason]filter.CannedReply, len(f.Replies))
	for reason, r := range f.Replies {
		replies[filter.Reason(reason)] = filter.CannedReply{English: r.English, Hindi: r.Hindi}
	}
	return filter.Lexicon{
		Profanity:      f.Profanity,
		AdultContent:   f.AdultContent,
		HarmfulContent: f.HarmfulContent,
		OffTopic:       f.OffTopic,
		Competitors:    f.Competitors,
		Replies:        replies,
	}
}

// Config is the top-level on-disk shape.
type Config struct {
	Server       Server        `yaml:"server"`
	External     External      `yaml:"external"`
	Vector       Vector        `yaml:"vector"`
	Lexicon      LexiconFile   `yaml:"lexicon"`
	Session      Session       `yaml:"session"`
	Auth         Auth          `yaml:"auth"`
	Agents       []AgentPlugin `yaml:"agents"`
	Orchestrator Orchestrator  `yaml:"orchestrator"`
	Tracing      Tracing       `yaml:"tracing"`
}

// Load reads path, expanding ${VAR}/${VAR:-default} references against
// the process environment (after loading any .env file alongside it),
// and unmarshals the result as YAML.
func Load(path string) (*Config, error) {
	if err := loadDotEnvNear(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.External.PHPBackendURL == "" {
		return nil, fmt.Errorf("config: php_backend_url (PHP_BACKEND_URL) is required")
	}
	return &cfg, nil
}

// loadDotEnvNear loads a .env file next to the config file, if any;
// missing .env is not an error.
func loadDotEnvNear(configPath string) error {
	dir := filepath.Dir(configPath)
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("config: load %s: %w", envPath, err)
	}
	return nil
}

var (
	reWithDefault = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`)
	reBraced      = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
)

// expandEnvVars substitutes ${VAR} and ${VAR:-default} references:
// defaults first, then bare braced references.
func expandEnvVars(s string) string {
	s = reWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := reWithDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
	s = reBraced.ReplaceAllStringFunc(s, func(match string) string {
		parts := reBraced.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})
	return s
}

// Watcher hot-reloads a Config as its file changes on disk, so the
// lexicon stays editable without a redeploy.
// It watches the directory rather than the file (editors replace
// files on save) and debounces reloads.
type Watcher struct {
	path string

	// OnReload, when set, is called with each successfully reloaded
	// Config. Set it before the first edit lands; the callback runs on
	// the watcher goroutine.
	OnReload func(*Config)

	mu      sync.RWMutex
	current *Config

	watcher *fsnotify.Watcher
}

// NewWatcher loads path once and starts watching it for changes.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch directory: %w", err)
	}

	w := &Watcher{path: absPath, current: cfg, watcher: fw}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	configFile := filepath.Base(w.path)
	const debounceDelay = 150 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, w.reload)

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// A bad edit must not take down a running process; keep
		// serving the last good config until the file is fixed.
		return
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	if w.OnReload != nil {
		w.OnReload(cfg)
	}
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
