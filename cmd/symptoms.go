package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/souchan25/virtualHealthAssistant/internal/symptoms"
)

var symptomsCmd = &cobra.Command{
	Use:   "symptoms",
	Short: "List the symptoms the model recognizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Classifier == nil {
			return symptoms.ErrModelNotReady
		}
		meta := a.Classifier.Metadata()
		out := cmd.OutOrStdout()
		for _, name := range a.Classifier.Vocabulary().Names() {
			if w, ok := meta.Severity(name); ok {
				fmt.Fprintf(out, "%-40s  %d\n", name, w)
				continue
			}
			fmt.Fprintln(out, name)
		}
		return nil
	},
}
