package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect and edit agent profiles",
	}
	cmd.AddCommand(profilesListCmd())
	cmd.AddCommand(profilesShowCmd())
	cmd.AddCommand(profilesEditCmd())
	return cmd
}

func profilesListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}

			coll, err := client.GetProfiles()
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(coll)
			}

			for _, p := range coll.Profiles {
				fmt.Printf("%s %s\n", labelStyle().Render(p.Label), dimStyle().Render("("+string(p.Agent.Kind)+")"))
				for _, v := range p.Variants {
					fmt.Printf("  %s:%s\n", p.Label, v.Label)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func profilesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show LABEL",
		Short: "Show a profile's full configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}

			coll, err := client.GetProfiles()
			if err != nil {
				return err
			}
			p := coll.Get(args[0])
			if p == nil {
				return fmt.Errorf("unknown profile: %s", args[0])
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

func profilesEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the profiles file in the configured editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}
			path, err := client.OpenProfilesEditor()
			if err != nil {
				return err
			}
			fmt.Printf("Editing %s\n", path)
			return nil
		},
	}
}
