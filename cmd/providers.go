package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/llm"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the provider chain per role and the dialogue engine status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		for _, role := range []chain.Role{chain.RoleChat, chain.RoleValidate} {
			fmt.Fprintf(out, "%s chain\n", role)
			fmt.Fprintln(out, strings.Repeat("─", 72))
			fmt.Fprintf(out, "%-3s  %-20s  %-10s  %-28s  %s\n", "#", "Name", "Kind", "Model", "Timeout")
			descs := a.Registry.Providers(role)
			if len(descs) == 0 {
				fmt.Fprintln(out, "     (no enabled providers)")
			}
			for i, d := range descs {
				model := d.Client.Model
				if model == "" {
					model = llm.DefaultModel(d.Client.Kind)
				}
				fmt.Fprintf(out, "%-3d  %-20s  %-10s  %-28s  %s\n",
					i+1, truncate(d.Name, 20), d.Client.Kind, truncate(model, 28), d.Timeout)
			}
			fmt.Fprintln(out)
		}

		var disabled []string
		for _, p := range a.Config.Providers {
			if !p.IsEnabled() {
				disabled = append(disabled, p.Name)
			}
		}
		if len(disabled) > 0 {
			fmt.Fprintf(out, "Disabled (no API key or enabled = false): %s\n\n", strings.Join(disabled, ", "))
		}

		fmt.Fprintf(out, "strategy: %s\n", a.Executor.Strategy())
		switch {
		case !a.Config.Dialogue.Enabled:
			fmt.Fprintf(out, "dialogue: disabled\n")
		default:
			status := "ok"
			if err := a.Dialogue.Status(cmd.Context()); err != nil {
				status = "unavailable (" + err.Error() + ")"
			}
			fmt.Fprintf(out, "dialogue: %s %s\n", a.Dialogue.BaseURL(), status)
		}
		return nil
	},
}
