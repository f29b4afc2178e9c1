package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	var (
		executorName string
		configPath   string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage MCP server configuration for an agent",
		Long: `Manage MCP server configuration for an agent.

Each agent stores MCP servers in its own config file and format
(claude-code: ~/.claude.json, codex: ~/.codex/config.toml, ...).
These commands edit the right spot in the right file.

Examples:
  vk mcp list
  vk mcp list --executor codex
  vk mcp set servers.json
  cat servers.json | vk mcp set -`,
	}

	cmd.PersistentFlags().StringVar(&executorName, "executor", "", "agent kind (default: selected profile's kind)")
	cmd.PersistentFlags().StringVar(&configPath, "config-path", "", "override the agent's config file location")

	cmd.AddCommand(mcpListCmd(&executorName, &configPath))
	cmd.AddCommand(mcpSetCmd(&executorName, &configPath))
	cmd.AddCommand(mcpEditCmd(&executorName, &configPath))
	return cmd
}

func mcpListCmd(executorName, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}

			servers, path, err := client.GetMCPServers(*executorName, *configPath)
			if err != nil {
				return err
			}

			fmt.Println(dimStyle().Render(path))
			if len(servers) == 0 {
				fmt.Println("No MCP servers configured")
				return nil
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(servers)
		},
	}
}

func mcpSetCmd(executorName, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set FILE",
		Short: "Replace the MCP server set from a JSON file ('-' for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			var servers map[string]any
			if err := json.Unmarshal(data, &servers); err != nil {
				return fmt.Errorf("parse servers: %w", err)
			}

			client, err := daemonClient()
			if err != nil {
				return err
			}
			msg, err := client.UpdateMCPServers(*executorName, *configPath, servers)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

func mcpEditCmd(executorName, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the agent's MCP config file in the configured editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}
			path, err := client.OpenMCPEditor(*executorName, *configPath)
			if err != nil {
				return err
			}
			fmt.Printf("Editing %s\n", path)
			return nil
		},
	}
}
