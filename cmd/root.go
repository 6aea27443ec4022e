package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/souchan25/virtualHealthAssistant/internal/app"
	"github.com/souchan25/virtualHealthAssistant/internal/config"
	"github.com/souchan25/virtualHealthAssistant/internal/logger"
	"github.com/souchan25/virtualHealthAssistant/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "vha",
	Short: "Virtual health assistant for campus clinics",
	Long: "vha predicts likely diseases from reported symptoms, has the prediction checked by " +
		"an LLM validator, and answers chat messages through a dialogue engine with a generative fallback.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			logger.SetVerbose(true)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to TOML config file (overrides VHA_CONFIG env var)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides VHA_DB env var)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(symptomsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file named by --config, then VHA_CONFIG,
// then ./vha.toml if present. --db overrides the configured database.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("VHA_CONFIG")
	}
	if path == "" {
		path = "vha.toml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	return cfg, nil
}

// openApp loads configuration and wires the services.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cmd.Context(), cfg, app.Options{})
}

// openStore opens only the database, for commands that inspect it.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
