package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helmcode/cropdoc/cmd"
)

var (
	version = "v0.1.0" // Overwritten at build time
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cropdoc",
		Short: "AI-powered crop disease diagnosis",
		Long: `cropdoc sends crop photos to a disease diagnosis service and shows the
diagnosis, or the most likely diseases to choose from when the service is
not confident.`,
		SilenceUsage:      true,
		PersistentPreRunE: cmd.Setup,
	}

	// Disable automatic 'completion' command added by cobra
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(
		cmd.NewAnalyzeCmd(),
		cmd.NewSelectCmd(),
		cmd.NewHealthCmd(),
		cmd.NewCropsCmd(),
		cmd.NewAdvisorsCmd(),
		cmd.NewServeCmd(),
		cmd.NewStubBackendCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// Skip config loading so version works without a valid config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cropdoc version %s\n", version)
		},
	}
}
