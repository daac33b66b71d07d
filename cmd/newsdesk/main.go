package main

import (
	"fmt"
	"os"

	"github.com/capekei/safra-sub003/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "newsdesk",
	Short:         "Editorial review workflow for news articles",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
