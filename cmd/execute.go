package cmd

import (
	"github.com/spf13/cobra"

	"github.com/timvw/tmx/internal/runner"
)

var executeCmd = &cobra.Command{
	Use:   "execute <target> <command>",
	Short: "Run a command in a pane and capture its output and exit code",
	Long: `Run a shell command in a tmux pane and wait for it to finish.

The command is wrapped in unique start/end markers and typed into the pane;
tmx then polls the pane until the end marker with the exit code appears.
Output is the command's combined stdout and stderr.

Exits 0 when the command exited 0, and 1 when it failed or did not finish
within --timeout (reported as TIMEOUT, exit code -1 in JSON).

The pane must run a POSIX-compatible shell (sh, bash, zsh, ...).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, command := args[0], args[1]

		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		opts := runner.Options{SendDelay: e.cfg.SendDelayDuration}
		if opts.Timeout, err = positiveDurationFlag(cmd, "timeout", e.cfg.TimeoutDuration); err != nil {
			return err
		}
		if opts.Interval, err = positiveDurationFlag(cmd, "interval", e.cfg.IntervalDuration); err != nil {
			return err
		}

		res, err := e.engine().Execute(e.ctx, target, command, opts)
		if err != nil {
			return err
		}
		if err := e.out.Execute(res); err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return &exitCodeError{code: 1}
		}
		return nil
	},
}

func init() {
	executeCmd.Flags().StringP("timeout", "t", "", "deadline, e.g. 30s or 30 (default 30s)")
	executeCmd.Flags().StringP("interval", "i", "", "poll interval (default 500ms)")
	rootCmd.AddCommand(executeCmd)
}
