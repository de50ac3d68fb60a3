package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timvw/tmx/internal/mux"
)

var (
	flagSessionDir    string
	flagSessionWindow string
)

var listSessionsCmd = &cobra.Command{
	Use:     "list-sessions",
	Aliases: []string{"ls"},
	Short:   "List tmux sessions",
	Long: `List tmux sessions with their attach state, window count and creation time.

No running server is not an error: it simply means there are no sessions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		sessions, err := e.mux.ListSessions(e.ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		return e.out.Sessions(sessions)
	},
}

var newSessionCmd = &cobra.Command{
	Use:   "new-session <name>",
	Short: "Create a detached tmux session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		name, err := e.mux.NewSession(e.ctx, mux.NewSessionOptions{
			Name:       args[0],
			Dir:        flagSessionDir,
			WindowName: flagSessionWindow,
		})
		if err != nil {
			return err
		}
		e.log.Debug("session created", "session", name)
		return e.out.SessionCreated(name)
	},
}

var killSessionCmd = &cobra.Command{
	Use:   "kill-session <name>",
	Short: "Kill a tmux session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.mux.KillSession(e.ctx, args[0]); err != nil {
			return err
		}
		return e.out.SessionKilled(args[0])
	},
}

func init() {
	newSessionCmd.Flags().StringVarP(&flagSessionDir, "dir", "c", "", "start directory for the session")
	newSessionCmd.Flags().StringVarP(&flagSessionWindow, "window-name", "n", "", "name of the first window")

	rootCmd.AddCommand(listSessionsCmd, newSessionCmd, killSessionCmd)
}
