package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/souchan25/virtualHealthAssistant/internal/diagnosis"
	"github.com/souchan25/virtualHealthAssistant/internal/ui/components"
)

var predictCmd = &cobra.Command{
	Use:   "predict <symptom>...",
	Short: "Predict a disease from symptoms",
	Example: `  vha predict itching skin_rash nodal_skin_eruptions
  vha predict --validate high_fever joint_pain`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		validate, _ := cmd.Flags().GetBool("validate")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Diagnosis.Predict(cmd.Context(), diagnosis.Request{Symptoms: args, WantValidation: validate})
		if err != nil {
			return fmt.Errorf("predict: %w", err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report.Response())
		}
		fmt.Fprintln(out, components.PredictionCard(report.Response()))
		if len(report.Attempts) > 0 {
			fmt.Fprintln(out, components.AttemptLine(report.Attempts))
		}
		return nil
	},
}

func init() {
	predictCmd.Flags().Bool("validate", false, "Ask the validate provider chain for a second opinion")
	predictCmd.Flags().Bool("json", false, "Print the prediction response as JSON")
}
