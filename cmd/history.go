package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/souchan25/virtualHealthAssistant/internal/dialogue"
)

var historyCmd = &cobra.Command{
	Use:   "history <session>",
	Short: "Print the dialogue engine's tracker for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		events, err := dialogue.New(cfg.Dialogue.URL).History(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, e := range events {
			if e.Text == "" {
				continue
			}
			ts := time.Unix(int64(e.Timestamp), 0).Local().Format("2006-01-02 15:04:05")
			fmt.Fprintf(out, "%s  %-5s  %s\n", ts, e.Event, e.Text)
		}
		return nil
	},
}
