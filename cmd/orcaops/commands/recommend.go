package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var recommendLimit int

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print fleet-level optimization recommendations",
	Long:  `Runs the Recommendation Engine (§4.10) over the Run Store and Baseline Tracker and prints its findings.`,
	RunE:  runRecommend,
}

func init() {
	recommendCmd.Flags().IntVar(&recommendLimit, "limit", 200, "number of recent runs to analyze")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := wire(ctx)
	if err != nil {
		return err
	}

	recs, err := c.Recommend.Generate(recommendLimit)
	if err != nil {
		return fmt.Errorf("generate recommendations: %w", err)
	}
	if len(recs) == 0 {
		fmt.Println("no recommendations")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Kind", "Title", "Detail"})
	for _, r := range recs {
		table.Append([]string{string(r.Kind), r.Title, r.Detail})
	}
	return table.Render()
}
