package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/orcaops/orcaops/internal/workflow"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Inspect and run multi-job workflows",
}

var workflowRunCmd = &cobra.Command{
	Use:   "run <file.yaml>",
	Short: "Submit a workflow spec and wait for it to finish",
	Long: `Parses a workflow YAML document (§4.4), submits it to the Workflow
Manager, blocks until every job reaches a terminal state, and prints a
per-job status table.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflowRun,
}

func init() {
	workflowCmd.AddCommand(workflowRunCmd)
	rootCmd.AddCommand(workflowCmd)
}

func runWorkflowRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := wire(ctx)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read workflow file: %w", err)
	}
	spec, err := workflow.Parse(data)
	if err != nil {
		return fmt.Errorf("parse workflow: %w", err)
	}

	workflowID := "cli-" + uuid.New().String()
	record, err := c.Workflows.Submit(spec, workflowID, "cli")
	if err != nil {
		return fmt.Errorf("submit workflow: %w", err)
	}

	for !isWorkflowTerminal(record.Status) {
		time.Sleep(200 * time.Millisecond)
		record, err = c.Workflows.Get(workflowID)
		if err != nil {
			return fmt.Errorf("poll workflow: %w", err)
		}
	}

	printWorkflowResult(record)
	if record.Status != orcaops.WorkflowStatusSuccess {
		return fmt.Errorf("workflow %s finished with status %s", record.WorkflowID, record.Status)
	}
	return nil
}

func isWorkflowTerminal(s orcaops.WorkflowStatus) bool {
	switch s {
	case orcaops.WorkflowStatusSuccess, orcaops.WorkflowStatusFailed, orcaops.WorkflowStatusCancelled, orcaops.WorkflowStatusPartial:
		return true
	default:
		return false
	}
}

func printWorkflowResult(record *orcaops.WorkflowRecord) {
	fmt.Printf("workflow %s: %s\n", record.WorkflowID, statusColor(string(record.Status)))
	if record.Error != "" {
		fmt.Println("error:", record.Error)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Job", "Status", "Job ID", "Error"})
	for name, st := range record.JobStatuses {
		table.Append([]string{name, statusColor(string(st.Status)), st.JobID, st.Error})
	}
	_ = table.Render()
}
