package commands

import "github.com/spf13/cobra"

// NewRootCommand builds the modtest command tree.
func NewRootCommand() *cobra.Command {
	global := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "modtest",
		Short: "Test the Odoo modules changed in a repository",
		Long: `modtest runs the tests of the Odoo modules a change touches and decides the
outcome from the log records the server wrote.

Commands:
  run       Detect changed modules, run their tests, evaluate the session
  changed   Print the modules a run would test
  evaluate  Evaluate the log records of a finished session
  mcp       Serve the resolver and evaluator over MCP stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	global.Register(rootCmd)

	rootCmd.AddCommand(NewRunCommand(global))
	rootCmd.AddCommand(NewChangedCommand(global))
	rootCmd.AddCommand(NewEvaluateCommand(global))
	rootCmd.AddCommand(NewMCPCommand(global))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
