package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func logsCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs RUN_ID",
		Short: "Show the normalized logs of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}

			if follow {
				return followRun(client, args[0])
			}

			run, entries, err := client.GetRunLogs(args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				printEntry(e)
			}
			fmt.Println(dimStyle().Render(fmt.Sprintf("[run %s: %s]", run.ID, run.Status)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming until the run finishes")
	return cmd
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop RUN_ID",
		Short: "Stop a running agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}
			if err := client.StopRun(args[0]); err != nil {
				return err
			}
			fmt.Printf("Stop requested for run %s\n", args[0])
			return nil
		},
	}
}
