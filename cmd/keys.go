package cmd

import (
	"github.com/spf13/cobra"

	"github.com/timvw/tmx/internal/mux"
)

var (
	flagNoEnter   bool
	flagNoLiteral bool
)

var sendKeysCmd = &cobra.Command{
	Use:   "send-keys <target> <text>",
	Short: "Send keys to a pane, then Enter",
	Long: `Type text into a tmux pane and press Enter.

Text is sent literally, so shell metacharacters and words like "Enter" are
typed as-is. Enter is sent separately after --delay, since a shell that has
not consumed the typed buffer yet can drop an Enter sent together with it.
Use --no-literal to send tmux key names (e.g. C-c).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, text := args[0], args[1]

		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		delay, err := durationFlag(cmd, "delay", e.cfg.SendDelayDuration)
		if err != nil {
			return err
		}

		err = e.mux.SendKeys(e.ctx, mux.SendKeysOptions{
			Target:  target,
			Text:    text,
			Enter:   !flagNoEnter,
			Delay:   delay,
			Literal: !flagNoLiteral,
		})
		if err != nil {
			return err
		}
		return e.out.SentKeys(target)
	},
}

func init() {
	sendKeysCmd.Flags().BoolVar(&flagNoEnter, "no-enter", false, "don't send Enter after text")
	sendKeysCmd.Flags().String("delay", "", "delay between text and Enter (default 100ms)")
	sendKeysCmd.Flags().BoolVar(&flagNoLiteral, "no-literal", false, "send text as tmux key names instead of literally")
	rootCmd.AddCommand(sendKeysCmd)
}
