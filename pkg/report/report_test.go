package report_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
	"github.com/Sumatoshi-tech/modtest/pkg/report"
	"github.com/Sumatoshi-tech/modtest/pkg/session"
)

func failedResult() (session.Request, session.Result) {
	req := session.Request{BaseRef: "origin/16.0", Database: "ci"}

	result := session.Result{
		Started: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Phases: map[string]time.Duration{
			session.PhaseResolve:  500 * time.Millisecond,
			session.PhaseExecute:  90 * time.Second,
			session.PhaseEvaluate: 250 * time.Millisecond,
		},
		Modules: []string{"sale", "stock"},
		Verdict: outcome.Verdict{
			Reason:   "1 of 3 records failed at level ERROR",
			Failures: []outcome.Record{{Level: "ERROR", Name: "odoo.addons.sale", Message: "FAIL: test_confirm", Line: 12}},
			Records:  3,
		},
		Elapsed: 91 * time.Second,
		State:   session.Failed,
	}

	return req, result
}

func TestNew(t *testing.T) {
	t.Parallel()

	req, result := failedResult()
	rep := report.New("1.2.0", req, result)

	assert.Equal(t, "1.2.0", rep.Version)
	assert.Equal(t, "failed", rep.State)
	assert.False(t, rep.Passed)
	assert.Equal(t, "origin/16.0", rep.BaseRef)
	assert.Equal(t, "ci", rep.Database)
	assert.Equal(t, []string{"sale", "stock"}, rep.Modules)
	assert.InDelta(t, 90.0, rep.Phases[session.PhaseExecute], 1e-9)
	assert.InDelta(t, 91.0, rep.Elapsed, 1e-9)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, 12, rep.Failures[0].Line)
}

func TestNew_SkippedHasEmptyLists(t *testing.T) {
	t.Parallel()

	rep := report.New("dev", session.Request{}, session.Result{State: session.Skipped})

	assert.NotNil(t, rep.Modules)
	assert.NotNil(t, rep.Failures)
	assert.False(t, rep.Passed)
}

func TestSave_JSON(t *testing.T) {
	t.Parallel()

	req, result := failedResult()
	path := filepath.Join(t.TempDir(), "modtest-report.json")

	require.NoError(t, report.Save(path, report.New("dev", req, result)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "failed", doc["state"])
	assert.Equal(t, 91.0, doc["elapsed_seconds"])
	assert.Contains(t, string(data), "\n  \"")
}

func TestSave_YAML(t *testing.T) {
	t.Parallel()

	req, result := failedResult()
	path := filepath.Join(t.TempDir(), "modtest-report.yml")

	require.NoError(t, report.Save(path, report.New("dev", req, result)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "failed", doc["state"])
	assert.Equal(t, []any{"sale", "stock"}, doc["modules"])
}

func TestSave_UnknownFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.xml")

	err := report.Save(path, report.Report{})
	require.ErrorIs(t, err, report.ErrUnknownFormat)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCodecFor(t *testing.T) {
	t.Parallel()

	codec, err := report.CodecFor("out/REPORT.JSON")
	require.NoError(t, err)
	assert.Equal(t, ".json", codec.Extension())

	codec, err = report.CodecFor("report.yaml")
	require.NoError(t, err)
	assert.Equal(t, ".yaml", codec.Extension())

	_, err = report.CodecFor("report")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}
