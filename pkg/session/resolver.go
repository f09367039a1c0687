package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/modtest/pkg/gitlib"
	"github.com/Sumatoshi-tech/modtest/pkg/modules"
)

// ResolverConfig describes how changed modules are detected.
type ResolverConfig struct {
	// Runner replaces the git subprocess runner. Nil runs the git binary.
	Runner gitlib.Runner
	// Fs is the filesystem module roots and the ignore file are read from.
	// Nil means the OS filesystem.
	Fs     afero.Fs
	Logger *slog.Logger

	// GitDir is the repository metadata directory. Empty disables change
	// detection so only includes select modules.
	GitDir    string
	WorkTree  string
	FetchMode gitlib.FetchMode

	Manifests []string
	Ignore    []string

	LockTimeout time.Duration
}

// NewResolver wires a git-backed [modules.Resolver] from cfg.
func NewResolver(ctx context.Context, cfg ResolverConfig) (*modules.Resolver, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.GitDir == "" {
		return modules.NewResolver(nil, nil, modules.WithLogger(logger)), nil
	}

	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	opts := []gitlib.Option{
		gitlib.WithLogger(logger),
		gitlib.WithLockTimeout(cfg.LockTimeout),
	}

	if cfg.Runner != nil {
		opts = append(opts, gitlib.WithRunner(cfg.Runner))
	}

	if cfg.WorkTree != "" {
		opts = append(opts, gitlib.WithWorkTree(cfg.WorkTree))
	}

	if cfg.FetchMode != "" {
		opts = append(opts, gitlib.WithFetchMode(cfg.FetchMode))
	}

	repo := gitlib.NewRepository(cfg.GitDir, opts...)
	workTree := repo.WorkTree(ctx)

	rules, err := modules.LoadIgnoreRules(fsys, filepath.Join(workTree, modules.IgnoreFileName), cfg.Ignore...)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}

	finder := modules.NewRootFinder(fsys, workTree, cfg.Manifests...)

	logger.DebugContext(ctx, "change detection enabled",
		"git_dir", cfg.GitDir, "work_tree", workTree, "fetch_mode", string(cfg.FetchMode))

	return modules.NewResolver(repo, finder,
		modules.WithIgnoreRules(rules),
		modules.WithLogger(logger),
	), nil
}
