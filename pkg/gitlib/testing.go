package gitlib

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// exitNotScripted is the exit status FakeRunner reports for unscripted commands,
// matching git's "fatal" status.
const exitNotScripted = 128

type fakeResult struct {
	err    error
	output string
}

// FakeRunner is a scripted [Runner] for tests. It emulates "git config
// [--local] --get-all/--add/--unset-all" against an in-memory repository table
// layered over a read-only global table, and answers other commands from
// scripted responses matched by longest argument prefix.
type FakeRunner struct {
	config  map[string][]string
	global  map[string][]string
	scripts map[string]fakeResult
	calls   [][]string
	mu      sync.Mutex
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		config:  make(map[string][]string),
		global:  make(map[string][]string),
		scripts: make(map[string]fakeResult),
	}
}

// SetConfig seeds a multi-valued config key.
func (f *FakeRunner) SetConfig(key string, values ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.config[key] = slices.Clone(values)
}

// SetGlobalConfig seeds a key outside the repository. It is visible to
// "config --get-all" but not to "config --local --get-all", and writes never
// change it.
func (f *FakeRunner) SetGlobalConfig(key string, values ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.global[key] = slices.Clone(values)
}

// Config returns the current repository values of key.
func (f *FakeRunner) Config(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.config[key])
}

// Respond scripts output for commands starting with args.
func (f *FakeRunner) Respond(output string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scripts[strings.Join(args, " ")] = fakeResult{output: output}
}

// Fail scripts an error for commands starting with args. Scripted failures
// take precedence over config emulation.
func (f *FakeRunner) Fail(err error, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scripts[strings.Join(args, " ")] = fakeResult{err: err}
}

// Calls returns every argument list received, in order.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	calls := make([][]string, len(f.calls))
	for i, call := range f.calls {
		calls[i] = slices.Clone(call)
	}

	return calls
}

// Called reports whether a command starting with args was received.
func (f *FakeRunner) Called(args ...string) bool {
	prefix := strings.Join(args, " ")

	for _, call := range f.Calls() {
		if hasArgPrefix(strings.Join(call, " "), prefix) {
			return true
		}
	}

	return false
}

// Run implements [Runner].
func (f *FakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, slices.Clone(args))
	joined := strings.Join(args, " ")

	best, found := "", false

	for prefix := range f.scripts {
		if hasArgPrefix(joined, prefix) && (!found || len(prefix) > len(best)) {
			best, found = prefix, true
		}
	}

	if found {
		res := f.scripts[best]

		return res.output, res.err
	}

	if len(args) >= 3 && args[0] == "config" {
		return f.runConfig(args)
	}

	return "", &CommandError{Args: slices.Clone(args), ExitCode: exitNotScripted, Stderr: "fatal: not scripted"}
}

func (f *FakeRunner) runConfig(args []string) (string, error) {
	local := args[1] == "--local"
	if local {
		args = append([]string{args[0]}, args[2:]...)
		if len(args) < 3 {
			return "", &CommandError{Args: slices.Clone(args), ExitCode: exitNotScripted}
		}
	}

	key := args[2]

	switch args[1] {
	case "--get-all":
		values := f.config[key]
		if !local {
			values = append(slices.Clone(f.global[key]), values...)
		}

		if len(values) == 0 {
			return "", &CommandError{Args: slices.Clone(args), ExitCode: configExitKeyMissing}
		}

		return strings.Join(values, "\n"), nil
	case "--add":
		if len(args) < 4 {
			return "", &CommandError{Args: slices.Clone(args), ExitCode: exitNotScripted}
		}

		f.config[key] = append(f.config[key], args[3])

		return "", nil
	case "--unset-all":
		if _, ok := f.config[key]; !ok {
			return "", &CommandError{Args: slices.Clone(args), ExitCode: configExitNoSection}
		}

		delete(f.config, key)

		return "", nil
	default:
		return "", &CommandError{Args: slices.Clone(args), ExitCode: exitNotScripted}
	}
}

func hasArgPrefix(joined, prefix string) bool {
	return joined == prefix || strings.HasPrefix(joined, prefix+" ")
}
