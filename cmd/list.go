package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagFilter string

var listPanesCmd = &cobra.Command{
	Use:   "list-panes",
	Short: "List all pane targets",
	Long: `List all tmux panes as targets, with the pane's shell PID and current command.

Each target can be passed to other commands (capture-pane, execute, ...).
Optionally filter by session name using a regex pattern.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		panes, err := e.mux.ListPanes(e.ctx, flagFilter)
		if err != nil {
			return fmt.Errorf("failed to list panes: %w", err)
		}
		return e.out.Panes(panes)
	},
}

func init() {
	listPanesCmd.Flags().StringVar(&flagFilter, "filter", "", "regex pattern to filter by session name")
	rootCmd.AddCommand(listPanesCmd)
}
