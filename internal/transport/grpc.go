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
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// jsonCodec lets the gRPC server frame messages as JSON instead of
// protobuf wire bytes: ProcessMessageRequest/Response are plain
// JSON-tagged structs and the server registers a codec under gRPC's
// standard extension point (encoding.RegisterCodec) instead of the
// default "proto" codec. The server still speaks real RPCs over
// HTTP/2 with real framing; only the payload encoding differs from
// the generated-stub default, and clients in other languages can
// frame the same JSON without a shared .proto.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// assistantServer is the interface grpc.ServiceDesc's HandlerType
// checks Server against at RegisterService time.
type assistantServer interface {
	ProcessMessage(ctx context.Context, req *ProcessMessageRequest) (*ProcessMessageResponse, error)
}

// ProcessMessage satisfies assistantServer by delegating to Handle;
// grpc.ServiceDesc requires an exported method matching the handler
// signature below.
func (s *Server) ProcessMessage(ctx context.Context, req *ProcessMessageRequest) (*ProcessMessageResponse, error) {
	return s.Handle(ctx, req)
}

func processMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ProcessMessageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(assistantServer).ProcessMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/assistant.v1.Assistant/ProcessMessage"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(assistantServer).ProcessMessage(ctx, req.(*ProcessMessageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-authored equivalent of what
// protoc-gen-go-grpc would emit for a single-RPC AssistantService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "assistant.v1.Assistant",
	HandlerType: (*assistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessMessage", Handler: processMessageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "assistant_core/transport/assistant.proto",
}

// NewGRPCServer builds a *grpc.Server with Server registered as the
// Assistant service.
func NewGRPCServer(s *Server) *grpc.Server {
	gs := grpc.NewServer()
	gs.RegisterService(&ServiceDesc, s)
	return gs
}
