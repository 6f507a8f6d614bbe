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

package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolName is the function-calling name the LLM's tool loop invokes.
const ToolName = "search_products"

// schemaReflector: tags on Args drive the generated parameter
// schema, inlined rather than $ref'd so the LLM sees one flat
// object.
var schemaReflector = &jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	DoNotReference:             true,
}

// ToolDefinition builds the search_products MCP tool definition by
// reflecting Args' `jsonschema` struct tags.
func ToolDefinition() (mcp.Tool, error) {
	schema := schemaReflector.Reflect(new(Args))

	data, err := json.Marshal(schema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("search: marshal tool schema: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return mcp.Tool{}, fmt.Errorf("search: decode tool schema: %w", err)
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	properties, _ := raw["properties"].(map[string]any)
	var required []string
	if reqAny, ok := raw["required"].([]any); ok {
		for _, r := range reqAny {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}

	return mcp.Tool{
		Name:        ToolName,
		Description: "Search products/items across food, ecom, pharmacy and parcel modules with veg/price/category filters.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
	}, nil
}

// HandleToolCall decodes the LLM's tool-call arguments, runs the
// search_products composition against exec, and wraps the uniform
// Response shape as MCP text content.
func HandleToolCall(ctx context.Context, exec *Executor, rctx RequestContext, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args Args
	if req.Params.Arguments != nil {
		data, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if err := json.Unmarshal(data, &args); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
	}

	resp, err := exec.Execute(ctx, rctx, args)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return errorResult(fmt.Sprintf("marshal response: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(body)}},
	}, nil
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: message}},
	}
}
