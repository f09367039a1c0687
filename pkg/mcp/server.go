// Package mcp implements a Model Context Protocol server exposing module
// resolution and outcome evaluation as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/modtest/pkg/logstore"
	"github.com/Sumatoshi-tech/modtest/pkg/modules"
	"github.com/Sumatoshi-tech/modtest/pkg/observability"
	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
	"github.com/Sumatoshi-tech/modtest/pkg/version"
)

const (
	serverName = "modtest"
	toolCount  = 3
)

// ResolverFactory builds a resolver for a repository.
type ResolverFactory func(ctx context.Context, gitDir, workTree string) (*modules.Resolver, error)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// NewResolver backs modtest_changed_modules. Nil makes the tool fail.
	NewResolver ResolverFactory

	// Store backs modtest_session_verdict. Nil makes the tool fail.
	Store logstore.Store

	// Policy is the default evaluation policy. Nil uses [outcome.DefaultPolicy].
	Policy *outcome.Policy

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with modtest tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
	handler *toolHandler
	mu      sync.RWMutex
}

// NewServer creates a new MCP server with all modtest tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	policy := outcome.DefaultPolicy()
	if deps.Policy != nil {
		policy = *deps.Policy
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	srv := &Server{
		inner:   inner,
		tools:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		handler: &toolHandler{
			newResolver: deps.NewResolver,
			store:       deps.Store,
			policy:      policy,
		},
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(slices.Values(s.tools))
}

// Run serves on stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is canceled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameChangedModules,
		Description: changedModulesDescription,
	}, withMetrics(s.metrics, ToolNameChangedModules,
		withTracing(s.tracer, ToolNameChangedModules, s.handler.changedModules)))
	s.trackTool(ToolNameChangedModules)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameEvaluateRecords,
		Description: evaluateRecordsDescription,
	}, withMetrics(s.metrics, ToolNameEvaluateRecords,
		withTracing(s.tracer, ToolNameEvaluateRecords, s.handler.evaluateRecords)))
	s.trackTool(ToolNameEvaluateRecords)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameSessionVerdict,
		Description: sessionVerdictDescription,
	}, withMetrics(s.metrics, ToolNameSessionVerdict,
		withTracing(s.tracer, ToolNameSessionVerdict, s.handler.sessionVerdict)))
	s.trackTool(ToolNameSessionVerdict)
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

const (
	mcpSpanPrefix  = "mcp."
	traceIDMetaKey = "trace_id"
)

// withTracing wraps a tool handler in a span and appends the trace_id to the
// response when the span is sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			result.Content = append(result.Content,
				&mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())})
		}

		return result, output, err
	}
}

// withMetrics records one phase sample per tool call.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordPhase(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}
