package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the inboxtriage application
var rootCmd = &cobra.Command{
	Use:   "inboxtriage",
	Short: "Sorts unread Gmail messages into Important and Low Priority with a local LLM",
	Long: `inboxtriage classifies the messages matching a Gmail query with a local
Ollama model and applies an "AI/Important" or "AI/Low Priority" label to each.

Runs are resumable: progress is checkpointed after every batch, and an
interrupted run continues where it left off with --resume.

It can run as:
  - A standalone CLI tool (default, optionally with a terminal UI)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// rootFlags are the persistent flags shared by every command.
var rootFlags struct {
	configFile     string
	credentialsDir string
	outputDir      string
	logLevel       string
	logFormat      string
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxtriage version %s\n" .Version}}`)

	// If no subcommand is provided, run the triage command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configFile, "config", "", "Config file (default: <user config dir>/inboxtriage/config.yaml)")
	pf.StringVar(&rootFlags.credentialsDir, "credentials-dir", "", "Directory holding credentials.json and the OAuth token")
	pf.StringVar(&rootFlags.outputDir, "output-dir", "", "Directory for the checkpoint and the report")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newCheckpointCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
