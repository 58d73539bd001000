package server

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/invoke"
	"github.com/wippyai/component-host/registry"
	"github.com/wippyai/component-host/schema"
)

// Server serves the functions of exposed components as MCP tools.
type Server struct {
	mcp     *mcpserver.MCPServer
	invoker *invoke.Invoker
	regs    *registry.Registries
}

// New maps every exposed function to a tool and registers the handlers.
func New(name, version string, inv *invoke.Invoker, regs *registry.Registries) (*Server, error) {
	bindings, err := MapTools(regs)
	if err != nil {
		return nil, err
	}

	s := &Server{
		mcp:     mcpserver.NewMCPServer(name, version),
		invoker: inv,
		regs:    regs,
	}
	for _, b := range bindings {
		spec, ok := regs.Component(b.Component)
		if !ok {
			return nil, errors.NotFound(errors.PhaseLoad, "component", b.Component)
		}
		s.mcp.AddTool(b.Tool, s.handler(spec, b.Function))

		Logger().Debug("tool registered",
			zap.String("tool", b.Tool.Name),
			zap.String("component", b.Component),
			zap.String("function", b.Function.Key()))
	}
	return s, nil
}

// ServeStdio blocks serving the MCP protocol on stdin and stdout.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

// handler adapts one component function to the tool calling convention.
// Invocation failures become tool error results, never handler errors,
// so one misbehaving guest cannot take the transport down.
func (s *Server) handler(spec *registry.ComponentSpec, fn schema.Function) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)

		raw := make([]json.RawMessage, len(fn.Params))
		for i, p := range fn.Params {
			v, ok := args[p.Name]
			if !ok {
				if !p.Optional {
					return mcp.NewToolResultError("missing argument " + p.Name), nil
				}
				raw[i] = json.RawMessage("null")
				continue
			}
			enc, err := json.Marshal(v)
			if err != nil {
				return mcp.NewToolResultError("argument " + p.Name + ": " + err.Error()), nil
			}
			raw[i] = enc
		}

		out, err := s.invoker.Invoke(ctx, spec, s.regs, fn, raw)
		if err != nil {
			Logger().Warn("tool call failed",
				zap.String("component", spec.Name),
				zap.String("function", fn.Key()),
				zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}

		text, err := wrapResult(fn, out)
		if err != nil {
			return mcp.NewToolResultError("encode result: " + err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}
