package modules

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// IgnoreFileName is read from the work tree root when present.
const IgnoreFileName = ".modtestignore"

// IgnoreRules drops changed paths that should never select a module, using
// gitignore pattern syntax.
type IgnoreRules struct {
	gi *ignore.GitIgnore
}

// NewIgnoreRules compiles patterns. With no patterns nothing is ignored.
func NewIgnoreRules(patterns ...string) *IgnoreRules {
	if len(patterns) == 0 {
		return &IgnoreRules{}
	}

	return &IgnoreRules{gi: ignore.CompileIgnoreLines(patterns...)}
}

// LoadIgnoreRules compiles the ignore file at path on fsys together with
// extra patterns. A missing file is not an error.
func LoadIgnoreRules(fsys afero.Fs, path string, patterns ...string) (*IgnoreRules, error) {
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewIgnoreRules(patterns...), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", path, err)
	}

	lines := append(strings.Split(string(data), "\n"), patterns...)

	return &IgnoreRules{gi: ignore.CompileIgnoreLines(lines...)}, nil
}

// Ignored reports whether path matches any rule.
func (r *IgnoreRules) Ignored(path string) bool {
	if r == nil || r.gi == nil {
		return false
	}

	return r.gi.MatchesPath(path)
}
