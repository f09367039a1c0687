package modules

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultBaseRef is the reference changes are detected against when none is given.
const DefaultBaseRef = "origin/master"

// ChangeSource lists paths changed relative to a base reference.
type ChangeSource interface {
	ChangedPaths(ctx context.Context, baseRef string) ([]string, error)
}

// Mapper maps a path to the name of its enclosing module.
type Mapper interface {
	Module(path string) (string, bool)
}

// Request selects modules for one invocation.
type Request struct {
	BaseRef string
	Include []string
	Exclude []string
}

// Resolver computes the effective module set of an invocation.
type Resolver struct {
	source ChangeSource
	mapper Mapper
	ignore *IgnoreRules
	logger *slog.Logger
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithIgnoreRules drops matching paths before they are mapped.
func WithIgnoreRules(rules *IgnoreRules) ResolverOption {
	return func(r *Resolver) { r.ignore = rules }
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a resolver. A nil source disables change detection so
// only the include list contributes modules.
func NewResolver(source ChangeSource, mapper Mapper, opts ...ResolverOption) *Resolver {
	res := &Resolver{
		source: source,
		mapper: mapper,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(res)
	}

	return res
}

// ChangedModules returns the names of modules with changes relative to baseRef.
// Paths outside any module root are dropped. The error is non-nil only when the
// change source reports one, in which case the modules detected so far are
// still returned.
func (r *Resolver) ChangedModules(ctx context.Context, baseRef string) (Set, error) {
	changed := NewSet()

	if r.source == nil || baseRef == "" {
		return changed, nil
	}

	paths, err := r.source.ChangedPaths(ctx, baseRef)

	for _, path := range paths {
		if r.ignore.Ignored(path) {
			r.logger.DebugContext(ctx, "changed path ignored", "path", path)

			continue
		}

		name, ok := r.mapper.Module(path)
		if !ok {
			r.logger.DebugContext(ctx, "changed path outside any module", "path", path)

			continue
		}

		changed.Add(name)
	}

	if err != nil {
		return changed, fmt.Errorf("detect changes against %s: %w", baseRef, err)
	}

	return changed, nil
}

// Resolve returns (changed ∪ include) − exclude for req. An empty result is
// valid and means there is nothing to test.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Set, error) {
	changed, err := r.ChangedModules(ctx, req.BaseRef)
	if err != nil {
		return nil, err
	}

	effective := Effective(changed, NewSet(req.Include...), NewSet(req.Exclude...))

	r.logger.InfoContext(ctx, "modules resolved",
		"base_ref", req.BaseRef,
		"changed", changed.Sorted(),
		"include", req.Include,
		"exclude", req.Exclude,
		"effective", effective.Sorted(),
	)

	return effective, nil
}
