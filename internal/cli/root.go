package cli

import (
	"github.com/spf13/cobra"

	"github.com/eleven-am/todoapi/internal/logger"
	"github.com/eleven-am/todoapi/pkg/todoapi"
)

// Global configuration variables
var (
	configFile  string
	appConfig   *Config
	databaseURL string
	debug       bool
	verbose     bool
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "todoapi",
		Short: "todoapi - multi-user todo service",
		Long: `todoapi serves a multi-user todo list over HTTP.

Users sign up and sign in for a bearer token, keep up to five todos on the
COMMON plan and unlimited todos once promoted to PREMIUM.`,
		Version:       todoapi.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case verbose:
				logger.SetVerbosity(logger.VerbosityVerbose)
			case debug:
				logger.SetVerbosity(logger.VerbosityDebug)
			default:
				logger.SetVerbosity(logger.VerbosityNormal)
			}

			var err error
			appConfig, err = LoadConfig(configFile)
			if err != nil {
				return err
			}

			if databaseURL != "" {
				appConfig.Database.URL = databaseURL
			}
			logger.SetFormat(appConfig.Log.Format)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: todoapi.yaml)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "url", "", "database connection URL")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSecretCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
