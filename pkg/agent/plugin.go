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

package agent

import (
	"context"
	"fmt"
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
)

// handshakeConfig is the go-plugin handshake every out-of-process
// agent binary must match.
var handshakeConfig = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MANGWALE_AGENT_PLUGIN",
	MagicCookieValue: "commerce-assistant-core",
}

// invokeArgs/invokeReply are the gob-encodable net/rpc payload for
// one Agent.Invoke call. No generated gRPC service exists for the
// Agent contract, so the plugin boundary uses go-plugin's other
// documented transport, net/rpc, rather than hand-rolling protobuf
// messages with no .proto source to generate from.
type invokeArgs struct {
	ParticipantID         string
	Message               string
	Intent                string
	Entities              map[string]any
	Module                string
	ZoneID                int
	Authenticated         bool
	UserID                int64
	HasUserID             bool
	AuthToken             string
	UserPreferenceContext map[string]any
	Metadata              map[string]any
}

type invokeReply struct {
	Response string
	Buttons  []Button
	Metadata map[string]any
	Handoff  *HandoffRequest
	ErrMsg   string
}

// RPCAgent is the interface an out-of-process agent plugin binary
// implements and registers via Serve.
type RPCAgent interface {
	ID() string
	Invoke(ctx context.Context, actx Context) (Result, error)
}

// agentRPCServer runs inside the plugin binary, dispatching net/rpc
// calls into a local RPCAgent implementation.
type agentRPCServer struct {
	Impl RPCAgent
}

func (s *agentRPCServer) ID(_ struct{}, resp *string) error {
	*resp = s.Impl.ID()
	return nil
}

func (s *agentRPCServer) Invoke(args invokeArgs, resp *invokeReply) error {
	actx := Context{
		ParticipantID:         args.ParticipantID,
		Message:               args.Message,
		Intent:                args.Intent,
		Entities:              args.Entities,
		Module:                args.Module,
		ZoneID:                args.ZoneID,
		Authenticated:         args.Authenticated,
		AuthToken:             args.AuthToken,
		UserPreferenceContext: args.UserPreferenceContext,
		Metadata:              args.Metadata,
	}
	if args.HasUserID {
		id := args.UserID
		actx.UserID = &id
	}

	result, err := s.Impl.Invoke(context.Background(), actx)
	if err != nil {
		resp.ErrMsg = err.Error()
		return nil
	}
	resp.Response = result.Response
	resp.Buttons = result.Buttons
	resp.Metadata = result.Metadata
	resp.Handoff = result.Handoff
	return nil
}

// agentRPCClient runs in this process (the orchestrator host) and
// satisfies Agent by calling across the net/rpc connection go-plugin
// set up.
type agentRPCClient struct {
	client *rpc.Client
	id     string
}

func (c *agentRPCClient) ID() string {
	if c.id != "" {
		return c.id
	}
	var resp string
	if err := c.client.Call("Plugin.ID", struct{}{}, &resp); err == nil {
		c.id = resp
	}
	return c.id
}

func (c *agentRPCClient) Invoke(ctx context.Context, actx Context) (Result, error) {
	args := invokeArgs{
		ParticipantID:         actx.ParticipantID,
		Message:               actx.Message,
		Intent:                actx.Intent,
		Entities:              actx.Entities,
		Module:                actx.Module,
		ZoneID:                actx.ZoneID,
		Authenticated:         actx.Authenticated,
		AuthToken:             actx.AuthToken,
		UserPreferenceContext: actx.UserPreferenceContext,
		Metadata:              actx.Metadata,
	}
	if actx.UserID != nil {
		args.UserID = *actx.UserID
		args.HasUserID = true
	}

	var resp invokeReply
	if err := c.client.Call("Plugin.Invoke", args, &resp); err != nil {
		return Result{}, fmt.Errorf("agent: plugin rpc: %w", err)
	}
	if resp.ErrMsg != "" {
		return Result{}, fmt.Errorf("agent: plugin invoke: %s", resp.ErrMsg)
	}
	return Result{Response: resp.Response, Buttons: resp.Buttons, Metadata: resp.Metadata, Handoff: resp.Handoff}, nil
}

// AgentPlugin is the goplugin.Plugin implementation dispensed on both
// sides of the handshake.
type AgentPlugin struct {
	Impl RPCAgent
}

func (p *AgentPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &agentRPCServer{Impl: p.Impl}, nil
}

func (p *AgentPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &agentRPCClient{client: c}, nil
}

// Serve is called from a plugin binary's main to expose impl to the
// orchestrator host. It blocks for the life of the process.
func Serve(impl RPCAgent) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: handshakeConfig,
		Plugins:         map[string]goplugin.Plugin{"agent": &AgentPlugin{Impl: impl}},
	})
}

// PluginAgent is a local Agent stub backed by an out-of-process
// binary, launched and supervised by go-plugin. Callers never know
// whether an Agent is local or a PluginAgent; both satisfy the same
// interface.
type PluginAgent struct {
	id     string
	client *goplugin.Client
	remote Agent
}

// LaunchPluginAgent starts binaryPath as a child process and performs
// the go-plugin handshake, dispensing the Agent implementation it
// registers.
func LaunchPluginAgent(id, binaryPath string, args ...string) (*PluginAgent, error) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  fmt.Sprintf("agent-plugin.%s", id),
		Level: hclog.Info,
	})

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: handshakeConfig,
		Plugins:         map[string]goplugin.Plugin{"agent": &AgentPlugin{}},
		Cmd:             exec.Command(binaryPath, args...),
		Logger:          logger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("agent: start plugin %s: %w", id, err)
	}

	raw, err := rpcClient.Dispense("agent")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("agent: dispense plugin %s: %w", id, err)
	}

	remote, ok := raw.(Agent)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("agent: plugin %s did not dispense an Agent", id)
	}

	return &PluginAgent{id: id, client: client, remote: remote}, nil
}

func (p *PluginAgent) ID() string { return p.id }

func (p *PluginAgent) Invoke(ctx context.Context, actx Context) (Result, error) {
	return p.remote.Invoke(ctx, actx)
}

// Close terminates the plugin subprocess.
func (p *PluginAgent) Close() {
	p.client.Kill()
}

var _ Agent = (*PluginAgent)(nil)
var _ goplugin.Plugin = (*AgentPlugin)(nil)
