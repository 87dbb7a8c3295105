package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const appName = "m8cli"

const version = "0.3.0"

var revision = "HEAD"

var rootCtx = context.Background()

var flags struct {
	model   string
	apiKey  string
	quiet   bool
	verbose bool
	yes     bool
}

func main() {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Agentic AI assistant for the command line",
		Long:          appName + " talks to OpenAI-compatible providers and lets the model call local tools: files, shell, git, web, and more.",
		Version:       fmt.Sprintf("%s (rev: %s)", version, revision),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.model, "model", "m", "", "Provider name or provider/model (default from config)")
	pf.StringVar(&flags.apiKey, "key", "", "API key (overrides keyring and environment)")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress streaming and informational output")
	pf.BoolVar(&flags.verbose, "verbose", false, "Show tool loading and other diagnostics")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "Skip tool approval prompts (use with caution)")

	root.AddCommand(
		newAskCmd(),
		newChatCmd(),
		newAgentCmd(),
		newModelsCmd(),
		newToolsCmd(),
		newConfigCmd(),
		newHistoryCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
