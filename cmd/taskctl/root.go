package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackmichael/creator-tasks/internal/apiclient"
)

type rootOptions struct {
	apiURL  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "taskctl",
		Short: "Administer the creator task engine",
		Long: `taskctl drives the creator task engine over its HTTP API: assigning
daily tasks, claiming and completing them, and sweeping expired claims.
The seed and migrate commands talk to the database directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	apiURL := os.Getenv("CREATOR_TASKS_API")
	if apiURL == "" {
		apiURL = "http://localhost:3000"
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", apiURL, "base URL of the task engine API (env CREATOR_TASKS_API)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")

	root.AddCommand(
		newAssignCmd(opts),
		newAssignAllCmd(opts),
		newClaimCmd(opts),
		newCompleteCmd(opts),
		newExpiredCmd(opts),
		newSweepCmd(opts),
		newSeedCmd(),
		newMigrateCmd(),
	)

	return root
}

func (o *rootOptions) client() *apiclient.Client {
	return apiclient.NewClient(o.apiURL, o.timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
