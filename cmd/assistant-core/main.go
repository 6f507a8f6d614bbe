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

// Command assistant-core runs the conversational orchestration core:
// the gRPC + REST entry point
// that wires together the content filter, language detection, intent
// router, auth state machine, flow dispatcher, agent registry, and
// handoff service behind the fifteen-gate Message Orchestrator.
//
// Usage:
//
//	assistant-core serve --config config.yaml
//	assistant-core clear-flow-cache --config config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/mangwale/assistant-core/internal/obslog"
)

// CLI defines the command-line interface.
type CLI struct {
	Version        ServeVersionCmd   `cmd:"" name:"version" help:"Show version information."`
	Serve          ServeCmd          `cmd:"" help:"Start the gRPC + REST orchestration server."`
	ClearFlowCache ClearFlowCacheCmd `cmd:"" name:"clear-flow-cache" help:"Ask a running server to drop its cached flow catalog."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (json or text)." default:"json"`
}

// ClearFlowCacheCmd hits a running server's admin endpoint
// (internal/transport.NewHTTPRouter's /v1/admin/clear-flow-cache) so
// operators can force an immediate re-fetch of the flow catalog
// without waiting out the 5-minute TTL or restarting the process.
type ClearFlowCacheCmd struct {
	Addr string `help:"REST address of a running server." default:"http://localhost:8081"`
}

func (c *ClearFlowCacheCmd) Run(cli *CLI) error {
	resp, err := http.Post(c.Addr+"/v1/admin/clear-flow-cache", "application/json", nil)
	if err != nil {
		return fmt.Errorf("clear-flow-cache: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("clear-flow-cache: server returned %d", resp.StatusCode)
	}
	fmt.Println("flow cache cleared")
	return nil
}

// ServeVersionCmd shows version information.
type ServeVersionCmd struct{}

func (c *ServeVersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("assistant-core version %s\n", version)
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("assistant-core"),
		kong.Description("Conversational orchestration core for the commerce chat assistant backend"),
		kong.UsageOnError(),
	)

	slog.SetDefault(obslog.New(cli.LogLevel, cli.LogFormat))

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
