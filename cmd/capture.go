package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timvw/tmx/internal/mux"
)

var captureCmd = &cobra.Command{
	Use:   "capture-pane <target>",
	Short: "Capture the contents of a pane",
	Long: `Capture the visible content of a tmux pane and print it to stdout.

Target format: session[:window[.pane]] (e.g., "mysession:0.0").
--lines adds that many scrollback lines above the visible region;
"all" captures the whole history. Wrapped lines are joined.

This is pure transport: no interpretation of the content.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		lines, err := linesFlag(cmd, 0)
		if err != nil {
			return err
		}

		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		content, err := e.mux.CapturePane(e.ctx, target, mux.CaptureOptions{Lines: lines})
		if err != nil {
			return fmt.Errorf("failed to capture pane %q: %w", target, err)
		}
		return e.out.Capture(content)
	},
}

func init() {
	captureCmd.Flags().StringP("lines", "S", "", "scrollback lines to capture, or \"all\"")
	rootCmd.AddCommand(captureCmd)
}
