package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mlicam/vibe-kanban/internal/daemon"
	"github.com/mlicam/vibe-kanban/internal/executor"
	"github.com/mlicam/vibe-kanban/internal/storage"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		profileLabel string
		variant      string
		workdir      string
		sessionID    string
		follow       bool
	)

	cmd := &cobra.Command{
		Use:   "run [flags] PROMPT...",
		Short: "Launch a coding agent with a prompt",
		Long: `Launch a coding agent with a prompt.

The agent is picked from the selected profile (see 'vk config'), or
overridden with --profile/--variant for a single run.

Examples:
  vk run "fix the failing tests"
  vk run --profile codex "add a retry to the uploader"
  vk run --profile claude-code --variant plan "sketch the migration"
  vk run --session abc123 "now also update the docs"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}

			if workdir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				workdir = wd
			}

			run, err := client.StartRun(daemon.StartRunRequest{
				Profile:   profileLabel,
				Variant:   variant,
				Prompt:    strings.Join(args, " "),
				Workdir:   workdir,
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Started run %s (%s in %s)\n", run.ID, run.Kind, run.WorkDir)
			if !follow {
				fmt.Printf("Follow with: vk logs --follow %s\n", run.ID)
				return nil
			}
			return followRun(client, run.ID)
		},
	}

	cmd.Flags().StringVar(&profileLabel, "profile", "", "profile to run (default: selected profile)")
	cmd.Flags().StringVar(&variant, "variant", "", "profile variant (requires --profile)")
	cmd.Flags().StringVarP(&workdir, "dir", "d", "", "working directory for the agent (default: cwd)")
	cmd.Flags().StringVar(&sessionID, "session", "", "resume this agent session (follow-up)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream normalized logs until the run finishes")
	return cmd
}

// followRun polls the logs endpoint and prints new entries until the run
// leaves the running state.
func followRun(client daemon.Client, id string) error {
	printed := 0
	for {
		run, entries, err := client.GetRunLogs(id)
		if err != nil {
			return err
		}
		for ; printed < len(entries); printed++ {
			printEntry(entries[printed])
		}
		if run.Status != storage.StatusRunning {
			return printOutcome(run)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func printEntry(e executor.LogEntry) {
	switch e.Type {
	case "tool":
		fmt.Println(toolStyle().Render(e.Text))
	case "error":
		fmt.Println(errorStyle().Render(e.Text))
	default:
		fmt.Println(e.Text)
	}
}

func printOutcome(run *storage.Run) error {
	if run.Status == storage.StatusFailed {
		msg := "run failed"
		if run.Error != nil {
			msg = *run.Error
		}
		return fmt.Errorf("%s", msg)
	}
	elapsed := ""
	if run.FinishedAt != nil {
		elapsed = " in " + run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
	}
	fmt.Printf("Run %s finished%s\n", run.ID, elapsed)
	return nil
}
