package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent agent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonClient()
			if err != nil {
				return err
			}

			runs, err := client.ListRuns(limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tProfile\tKind\tStatus\tTime\tPrompt\n")
			for _, r := range runs {
				elapsed := ""
				if r.FinishedAt != nil {
					elapsed = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
				} else {
					elapsed = time.Since(r.StartedAt).Round(time.Second).String() + "..."
				}
				label := r.Profile
				if r.Variant != nil {
					label += ":" + *r.Variant
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, label, r.Kind, r.Status, elapsed, truncate(r.Prompt, 40))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

// truncate shortens s to at most max runes. Counting runes rather than
// bytes keeps multi-byte characters intact.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
