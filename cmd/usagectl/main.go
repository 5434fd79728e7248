package main

import (
	"fmt"
	"os"

	"github.com/kotoba-voice/kotoba/cmd/usagectl/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "usagectl",
		Short: "Admin tool for the Kotoba intent API",
		Long:  "CLI tool for inspecting and resetting per-user usage counters and the question log",
	}

	rootCmd.AddCommand(commands.NewUsageCmd())
	rootCmd.AddCommand(commands.NewQuestionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
