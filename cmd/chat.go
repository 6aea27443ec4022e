package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/souchan25/virtualHealthAssistant/internal/router"
	"github.com/souchan25/virtualHealthAssistant/internal/ui/components"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one chat turn through the router",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		language, _ := cmd.Flags().GetString("language")
		asJSON, _ := cmd.Flags().GetBool("json")
		if session == "" {
			session = uuid.NewString()
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Router.Handle(cmd.Context(), router.Turn{
			SessionID: session,
			Message:   strings.Join(args, " "),
			Language:  language,
		})
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(d.Response(session))
		}
		fmt.Fprintln(out, components.ChatCard(d))
		if len(d.Attempts) > 0 {
			fmt.Fprintln(out, components.AttemptLine(d.Attempts))
		}
		fmt.Fprintf(out, "session %s\n", session)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringP("session", "s", "", "Session ID (a new one is generated when empty)")
	chatCmd.Flags().StringP("language", "l", "english", "Preferred reply language")
	chatCmd.Flags().Bool("json", false, "Print the chat response as JSON")
}
