package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/modtest/pkg/logstore"
	"github.com/Sumatoshi-tech/modtest/pkg/modules"
	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
)

// Tool name constants.
const (
	ToolNameChangedModules  = "modtest_changed_modules"
	ToolNameEvaluateRecords = "modtest_evaluate_records"
	ToolNameSessionVerdict  = "modtest_session_verdict"
)

// Sentinel errors for tool input validation.
var (
	ErrEmptyGitDir       = errors.New("git_dir parameter is required and must not be empty")
	ErrGitDirNotAbsolute = errors.New("git_dir must be an absolute path")
	ErrEmptyDatabase     = errors.New("database parameter is required and must not be empty")
	ErrNoResolver        = errors.New("change detection is not configured")
	ErrNoStore           = errors.New("log store is not configured")
)

// ChangedModulesInput is the input schema for modtest_changed_modules.
type ChangedModulesInput struct {
	GitDir   string   `json:"git_dir"             jsonschema:"absolute path of the repository metadata directory"`
	WorkTree string   `json:"work_tree,omitempty" jsonschema:"work tree the changed paths are relative to"`
	BaseRef  string   `json:"base_ref,omitempty"  jsonschema:"branch, remote/branch, or commit to compare (default: origin/master)"`
	Include  []string `json:"include,omitempty"   jsonschema:"modules always tested"`
	Exclude  []string `json:"exclude,omitempty"   jsonschema:"modules never tested, even when changed"`
}

// RecordInput is one log record passed to modtest_evaluate_records.
type RecordInput struct {
	Time    string `json:"time,omitempty"   jsonschema:"record timestamp (RFC 3339)"`
	Level   string `json:"level"            jsonschema:"severity (DEBUG, INFO, WARNING, ERROR, CRITICAL)"`
	Name    string `json:"name,omitempty"   jsonschema:"logger name"`
	Message string `json:"message"          jsonschema:"log message"`
	DBName  string `json:"dbname,omitempty" jsonschema:"database the record was written for"`
}

// EvaluateRecordsInput is the input schema for modtest_evaluate_records.
type EvaluateRecordsInput struct {
	FailLevel string        `json:"fail_level,omitempty" jsonschema:"lowest failing severity (default: ERROR)"`
	Allow     []string      `json:"allow,omitempty"      jsonschema:"regular expressions of messages that never fail"`
	Records   []RecordInput `json:"records"              jsonschema:"all log records of one session in order"`
}

// SessionVerdictInput is the input schema for modtest_session_verdict.
type SessionVerdictInput struct {
	Database string `json:"database" jsonschema:"database the session logged to"`
}

// ChangedModules is the structured result of modtest_changed_modules.
type ChangedModules struct {
	BaseRef   string   `json:"base_ref"`
	Changed   []string `json:"changed"`
	Effective []string `json:"effective"`
}

// VerdictResult is the structured result of the evaluation tools.
type VerdictResult struct {
	Reason   string           `json:"reason,omitempty"`
	Failures []outcome.Record `json:"failures,omitempty"`
	Records  int              `json:"records"`
	Passed   bool             `json:"passed"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

type toolHandler struct {
	newResolver ResolverFactory
	store       logstore.Store
	policy      outcome.Policy
}

func (h *toolHandler) changedModules(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ChangedModulesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.GitDir == "" {
		return errorResult(ErrEmptyGitDir)
	}

	if !filepath.IsAbs(input.GitDir) {
		return errorResult(ErrGitDirNotAbsolute)
	}

	if h.newResolver == nil {
		return errorResult(ErrNoResolver)
	}

	baseRef := input.BaseRef
	if baseRef == "" {
		baseRef = modules.DefaultBaseRef
	}

	resolver, err := h.newResolver(ctx, input.GitDir, input.WorkTree)
	if err != nil {
		return errorResult(err)
	}

	changed, err := resolver.ChangedModules(ctx, baseRef)
	if err != nil {
		return errorResult(err)
	}

	effective := modules.Effective(changed, modules.NewSet(input.Include...), modules.NewSet(input.Exclude...))

	return jsonResult(ChangedModules{
		BaseRef:   baseRef,
		Changed:   changed.Sorted(),
		Effective: effective.Sorted(),
	})
}

func (h *toolHandler) evaluateRecords(
	_ context.Context, _ *mcpsdk.CallToolRequest, input EvaluateRecordsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	policy := h.policy

	if input.FailLevel != "" || len(input.Allow) > 0 {
		custom, err := outcome.NewPolicy(input.FailLevel, input.Allow...)
		if err != nil {
			return errorResult(err)
		}

		policy = custom
	}

	records := make([]outcome.Record, 0, len(input.Records))

	for i, in := range input.Records {
		rec, err := in.record()
		if err != nil {
			return errorResult(fmt.Errorf("record %d: %w", i, err))
		}

		records = append(records, rec)
	}

	return jsonResult(newVerdictResult(outcome.NewEvaluator(policy).Assess(records)))
}

func (h *toolHandler) sessionVerdict(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input SessionVerdictInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Database == "" {
		return errorResult(ErrEmptyDatabase)
	}

	if h.store == nil {
		return errorResult(ErrNoStore)
	}

	records, err := h.store.Records(ctx, input.Database)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(newVerdictResult(outcome.NewEvaluator(h.policy).Assess(records)))
}

func (in RecordInput) record() (outcome.Record, error) {
	rec := outcome.Record{
		Level:   in.Level,
		Name:    in.Name,
		Message: in.Message,
		DBName:  in.DBName,
	}

	if in.Time != "" {
		parsed, err := time.Parse(time.RFC3339Nano, in.Time)
		if err != nil {
			return outcome.Record{}, fmt.Errorf("parse time: %w", err)
		}

		rec.Time = parsed
	}

	return rec, nil
}

func newVerdictResult(v outcome.Verdict) VerdictResult {
	return VerdictResult{
		Reason:   v.Reason,
		Failures: v.Failures,
		Records:  v.Records,
		Passed:   v.Passed,
	}
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

const (
	changedModulesDescription = "List the modules changed in a repository relative to a base reference, " +
		"then apply include and exclude lists: (changed ∪ include) − exclude."

	evaluateRecordsDescription = "Judge a test session from its log records. " +
		"A session fails when any record reaches the fail level, or when there are no records."

	sessionVerdictDescription = "Read the log records a test session wrote for a database " +
		"from the configured log store and judge the session."
)
