package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the leadflow application
var rootCmd = &cobra.Command{
	Use:   "leadflow",
	Short: "Sends welcome and follow-up emails to leads tracked in a Google Sheet",
	Long: `leadflow reads leads from a Google Sheet, emails new leads a welcome
message and stale leads a follow-up, writes the new status back to the sheet
and mails the agent a daily summary.

It can run as:
  - A one-shot CLI run (default)
  - An HTTP trigger with an optional built-in schedule`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

var (
	configPath string
	debugMode  bool
	logFormat  string
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "leadflow version %s\n" .Version}}`)

	// If no subcommand is provided, run the automation once
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file (default: leadflow.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
