package cmd

import (
	"github.com/spf13/cobra"

	"github.com/timvw/tmx/internal/watch"
)

var waitForTextCmd = &cobra.Command{
	Use:   "wait-for-text <target> <pattern>",
	Short: "Wait until a line in the pane matches a regex",
	Long: `Poll a tmux pane until any single line matches the regular expression.

Exits 0 with the matching line, or 1 when --timeout passes first.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, pattern := args[0], args[1]

		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		var opts watch.TextOptions
		if opts.Timeout, err = positiveDurationFlag(cmd, "timeout", e.cfg.WaitTimeoutDuration); err != nil {
			return err
		}
		if opts.Interval, err = positiveDurationFlag(cmd, "interval", e.cfg.IntervalDuration); err != nil {
			return err
		}
		if opts.Lines, err = scrollbackFlag(cmd, e.cfg.Lines); err != nil {
			return err
		}

		res, err := e.watcher().WaitForText(e.ctx, target, pattern, opts)
		if err != nil {
			return err
		}
		if err := e.out.Wait(res); err != nil {
			return err
		}
		if !res.Matched {
			return &exitCodeError{code: 1}
		}
		return nil
	},
}

var waitIdleCmd = &cobra.Command{
	Use:   "wait-idle <target>",
	Short: "Wait until the pane content stops changing",
	Long: `Poll a tmux pane until its content has been unchanged for --idle-time.

Exits 0 once idle, or 1 when --timeout passes first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		var opts watch.IdleOptions
		if opts.IdleTime, err = positiveDurationFlag(cmd, "idle-time", e.cfg.IdleTimeDuration); err != nil {
			return err
		}
		if opts.Timeout, err = positiveDurationFlag(cmd, "timeout", e.cfg.IdleTimeoutDuration); err != nil {
			return err
		}
		if opts.Interval, err = positiveDurationFlag(cmd, "interval", e.cfg.IntervalDuration); err != nil {
			return err
		}
		if opts.Lines, err = scrollbackFlag(cmd, e.cfg.Lines); err != nil {
			return err
		}

		res, err := e.watcher().WaitIdle(e.ctx, target, opts)
		if err != nil {
			return err
		}
		if err := e.out.Idle(res); err != nil {
			return err
		}
		if !res.Idle {
			return &exitCodeError{code: 1}
		}
		return nil
	},
}

func init() {
	waitForTextCmd.Flags().StringP("timeout", "t", "", "deadline (default 15s)")
	waitForTextCmd.Flags().StringP("interval", "i", "", "poll interval (default 500ms)")
	waitForTextCmd.Flags().StringP("lines", "S", "", "scrollback lines to search, or \"all\" (default 1000)")

	waitIdleCmd.Flags().String("idle-time", "", "how long content must stay unchanged (default 2s)")
	waitIdleCmd.Flags().StringP("timeout", "t", "", "deadline (default 30s)")
	waitIdleCmd.Flags().StringP("interval", "i", "", "poll interval (default 500ms)")
	waitIdleCmd.Flags().StringP("lines", "S", "", "scrollback lines to hash, or \"all\" (default 1000)")

	rootCmd.AddCommand(waitForTextCmd, waitIdleCmd)
}
