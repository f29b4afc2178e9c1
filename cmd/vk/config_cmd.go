package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mlicam/vibe-kanban/internal/profile"
	"github.com/mlicam/vibe-kanban/internal/settings"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change settings",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configUseCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}
			cfg, err := client.GetConfig()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

func configUseCmd() *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "use PROFILE",
		Short: "Select the profile used by default for runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}

			cfg, err := client.GetConfig()
			if err != nil {
				return err
			}
			if variant != "" {
				cfg.Profile = profile.NewSelectorWithVariant(args[0], variant)
			} else {
				cfg.Profile = profile.NewSelector(args[0])
			}

			updated, err := client.UpdateConfig(*cfg)
			if err != nil {
				return err
			}
			sel := updated.Profile.Profile
			if updated.Profile.Variant != nil {
				sel += ":" + *updated.Profile.Variant
			}
			fmt.Printf("Selected profile %s\n", sel)
			return nil
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "", "profile variant")
	return cmd
}

func configSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change a settings field",
		Long: `Change a settings field.

Supported keys:
  theme          system, light, or dark
  editor         vscode, cursor, windsurf, intellij, zed, or custom
  workspace-dir  default working directory for runs`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}

			cfg, err := client.GetConfig()
			if err != nil {
				return err
			}

			key, value := args[0], args[1]
			switch key {
			case "theme":
				cfg.Theme = value
			case "editor":
				cfg.Editor.EditorType = settings.EditorType(value)
			case "workspace-dir":
				cfg.WorkspaceDir = &value
			default:
				return fmt.Errorf("unknown settings key: %s", key)
			}

			if _, err := client.UpdateConfig(*cfg); err != nil {
				return err
			}
			fmt.Printf("Set %s = %s\n", key, value)
			return nil
		},
	}
	return cmd
}
