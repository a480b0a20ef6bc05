// Package cmd implements the wavscribe command line.
package cmd

import (
	"os"

	"wavscribe/config"
	"wavscribe/handlers"
	"wavscribe/logging"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"

	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "wavscribe",
	Short: "Upload WAV recordings for transcription",
	Long: `wavscribe uploads WAV audio files to a speech-to-text endpoint with
live progress and time-remaining estimates, and lets you copy the resulting
transcript.

Run "wavscribe upload <file.wav>" from a terminal, or "wavscribe serve" for
the browser page.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(cfgFile); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			config.Set("log.level", logLevel)
		}
		if cmd.Flags().Changed("log-format") {
			config.Set("log.format", logFormat)
		}
		logging.Init(os.Stderr, config.GetLogLevel(), config.GetLogFormat())
		handlers.Version = Version
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("wavscribe %s (%s)\n", Version, Commit)
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(uploadCmd)
}
