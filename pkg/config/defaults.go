package config

import (
	"time"

	"github.com/Sumatoshi-tech/modtest/pkg/execution"
	"github.com/Sumatoshi-tech/modtest/pkg/gitlib"
	"github.com/Sumatoshi-tech/modtest/pkg/logstore"
	"github.com/Sumatoshi-tech/modtest/pkg/modules"
)

// Logging formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Git defaults.
const (
	DefaultGitBaseRef     = modules.DefaultBaseRef
	DefaultGitFetchMode   = string(gitlib.FetchScoped)
	DefaultGitLockTimeout = 2 * time.Minute
)

// Server defaults.
const (
	DefaultServerBinary     = execution.DefaultBinary
	DefaultServerLogDBLevel = execution.DefaultLogDBLevel
)

// Log store defaults.
const (
	DefaultLogStoreBackend = logstore.BackendPostgres
)

// Evaluation defaults.
const (
	DefaultEvaluationFailLevel = "ERROR"
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = LogFormatText
)

// Telemetry defaults.
const (
	DefaultTelemetryEnvironment    = "ci"
	DefaultTelemetryPushgatewayJob = "modtest"
)

// DefaultManifests returns the manifest file names that mark a module root.
func DefaultManifests() []string {
	return append([]string(nil), modules.DefaultManifests...)
}
