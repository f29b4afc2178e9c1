package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vk",
		Short: "Launch and manage interchangeable AI coding agents",
		Long:  "vk runs coding agents (Claude Code, Amp, Gemini, Codex, OpenCode) through shared profiles, with MCP config management and run history",
	}

	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8440", "daemon server address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(profilesCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
