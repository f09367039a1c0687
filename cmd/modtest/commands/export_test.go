package commands

// Test hooks for the external commands_test package.
var (
	NewRunCommandWithDeps      = newRunCommandWithDeps
	NewChangedCommandWithDeps  = newChangedCommandWithDeps
	NewEvaluateCommandWithDeps = newEvaluateCommandWithDeps
	FormatDuration             = formatDuration
)
