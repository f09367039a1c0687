// Package report writes the outcome of a test session to a file for CI
// artifacts.
package report

import (
	"fmt"
	"os"
	"time"

	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
	"github.com/Sumatoshi-tech/modtest/pkg/session"
)

const reportFileMode = 0o644

// Report is the serialized form of a session.
type Report struct {
	Started  time.Time          `json:"started"            yaml:"started"`
	Phases   map[string]float64 `json:"phases"             yaml:"phases"`
	Version  string             `json:"version"            yaml:"version"`
	State    string             `json:"state"              yaml:"state"`
	BaseRef  string             `json:"base_ref,omitempty" yaml:"base_ref,omitempty"`
	Database string             `json:"database,omitempty" yaml:"database,omitempty"`
	Reason   string             `json:"reason,omitempty"   yaml:"reason,omitempty"`
	Modules  []string           `json:"modules"            yaml:"modules"`
	Failures []Failure          `json:"failures"           yaml:"failures"`
	Elapsed  float64            `json:"elapsed_seconds"    yaml:"elapsed_seconds"`
	Records  int                `json:"records"            yaml:"records"`
	Passed   bool               `json:"passed"             yaml:"passed"`
}

// Failure is one failing log record.
type Failure struct {
	Time    time.Time `json:"time,omitzero"   yaml:"time,omitempty"`
	Level   string    `json:"level"           yaml:"level"`
	Name    string    `json:"name,omitempty"  yaml:"name,omitempty"`
	Message string    `json:"message"         yaml:"message"`
	Path    string    `json:"path,omitempty"  yaml:"path,omitempty"`
	Line    int       `json:"line,omitempty"  yaml:"line,omitempty"`
}

// New builds the report of a finished session.
func New(version string, req session.Request, result session.Result) Report {
	phases := make(map[string]float64, len(result.Phases))
	for name, dur := range result.Phases {
		phases[name] = dur.Seconds()
	}

	modules := result.Modules
	if modules == nil {
		modules = []string{}
	}

	return Report{
		Started:  result.Started.UTC(),
		Phases:   phases,
		Version:  version,
		State:    result.State.String(),
		BaseRef:  req.BaseRef,
		Database: req.Database,
		Reason:   result.Verdict.Reason,
		Modules:  modules,
		Failures: failures(result.Verdict.Failures),
		Elapsed:  result.Elapsed.Seconds(),
		Records:  result.Verdict.Records,
		Passed:   result.State == session.Passed,
	}
}

func failures(records []outcome.Record) []Failure {
	out := make([]Failure, 0, len(records))

	for _, rec := range records {
		out = append(out, Failure{
			Time:    rec.Time,
			Level:   rec.Level,
			Name:    rec.Name,
			Message: rec.Message,
			Path:    rec.Path,
			Line:    rec.Line,
		})
	}

	return out
}

// Save writes rep to path in the format its extension selects.
func Save(path string, rep Report) (err error) {
	codec, err := CodecFor(path)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, reportFileMode)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}

	defer func() {
		closeErr := file.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close report file: %w", closeErr)
		}
	}()

	err = codec.Encode(file, rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}
