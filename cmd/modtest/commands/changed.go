package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/modtest/pkg/modules"
	"github.com/Sumatoshi-tech/modtest/pkg/observability"
	"github.com/Sumatoshi-tech/modtest/pkg/session"
)

// Output formats of the changed and evaluate commands.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrInvalidFormat is returned for an unsupported --format value.
var ErrInvalidFormat = errors.New("invalid output format")

// changedReport is the JSON shape of "modtest changed --format json".
type changedReport struct {
	BaseRef   string   `json:"base_ref"`
	Changed   []string `json:"changed"`
	Effective []string `json:"effective"`
}

// ChangedCommand holds the flags of "modtest changed".
type ChangedCommand struct {
	global      *GlobalOptions
	newResolver resolverFactory
	selection   selectionFlags
	format      string
}

// NewChangedCommand creates the changed subcommand.
func NewChangedCommand(global *GlobalOptions) *cobra.Command {
	return newChangedCommandWithDeps(global, defaultResolver)
}

func newChangedCommandWithDeps(global *GlobalOptions, newResolver resolverFactory) *cobra.Command {
	cc := &ChangedCommand{global: global, newResolver: newResolver}

	cmd := &cobra.Command{
		Use:   "changed",
		Short: "Print the modules a run would test",
		Long: `Resolve the effective module set, (changed ∪ include) − exclude, without
starting the server.`,
		Args: cobra.NoArgs,
		RunE: cc.run,
	}

	cc.selection.register(cmd)
	cmd.Flags().StringVar(&cc.format, "format", FormatText, "Output format: text, json")

	return cmd
}

func (cc *ChangedCommand) run(cmd *cobra.Command, _ []string) error {
	if cc.format != FormatText && cc.format != FormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, cc.format)
	}

	cfg, err := cc.global.LoadConfig()
	if err != nil {
		return err
	}

	err = cc.selection.apply(cmd, cfg)
	if err != nil {
		return err
	}

	providers, stop, err := cc.global.startObservability(cfg, observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer stop()

	ctx, span := providers.Tracer.Start(cmd.Context(), "modtest.changed")
	defer span.End()

	resolver, err := cc.newResolver(ctx, resolverConfig(cfg, providers.Logger))
	if err != nil {
		return err
	}

	changed, effective, err := resolveSets(ctx, resolver, cfg.Git.BaseRef, cfg.Modules.Include, cfg.Modules.Exclude)
	if err != nil {
		return err
	}

	if cc.format == FormatJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(changedReport{
			BaseRef:   cfg.Git.BaseRef,
			Changed:   nonNil(changed.Sorted()),
			Effective: nonNil(effective.Sorted()),
		})
	}

	newReporter(cmd.OutOrStdout(), cc.global.NoColor).moduleTable(cfg.Git.BaseRef, changed, effective)

	return nil
}

// changeLister is implemented by resolvers that can report the changed set
// before includes and excludes are applied.
type changeLister interface {
	session.Resolver
	ChangedModules(ctx context.Context, baseRef string) (modules.Set, error)
}

// resolveSets returns the changed set and the effective set. Resolvers that
// cannot list changes report every effective module outside include as changed.
func resolveSets(
	ctx context.Context, resolver session.Resolver, baseRef string, include, exclude []string,
) (changed, effective modules.Set, err error) {
	lister, ok := resolver.(changeLister)
	if !ok {
		effective, err = resolver.Resolve(ctx, modules.Request{BaseRef: baseRef, Include: include, Exclude: exclude})
		if err != nil {
			return nil, nil, err
		}

		return effective.Difference(modules.NewSet(include...)), effective, nil
	}

	changed, err = lister.ChangedModules(ctx, baseRef)
	if err != nil {
		return nil, nil, err
	}

	return changed, modules.Effective(changed, modules.NewSet(include...), modules.NewSet(exclude...)), nil
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}

	return names
}
