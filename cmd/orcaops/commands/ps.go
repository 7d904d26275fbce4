package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/orcaops/orcaops/internal/runstore"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

var (
	psStatus string
	psLimit  int
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List recent job runs",
	Long:  `Queries the Run Store for the most recent job records, newest first (§4.8).`,
	RunE:  runPs,
}

func init() {
	psCmd.Flags().StringVar(&psStatus, "status", "", "filter by status (queued|running|success|failed|timed_out|cancelled)")
	psCmd.Flags().IntVar(&psLimit, "limit", 20, "maximum number of runs to show")
	rootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := wire(ctx)
	if err != nil {
		return err
	}

	filter := &runstore.Filter{}
	if psStatus != "" {
		filter.Status = orcaops.JobStatus(psStatus)
	}

	records, err := c.Store.Query(filter, psLimit, 0)
	if err != nil {
		return fmt.Errorf("query run store: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Job ID", "Status", "Image", "Created"})
	for _, r := range records {
		table.Append([]string{r.JobID, statusColor(string(r.Status)), r.ImageRef, r.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	return table.Render()
}
