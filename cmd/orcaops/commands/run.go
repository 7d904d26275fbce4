package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

var (
	runImage   string
	runCmds    []string
	runEnv     []string
	runTimeout int
	runTTL     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a one-off job and wait for it to finish",
	Long: `Builds a JobSpec from flags, submits it to the Job Manager, blocks
until the job reaches a terminal state, and prints a step-by-step
summary. Intended for ad-hoc compute and local testing, not pipeline use
(use "orcaops workflow run" for anything with more than one job).`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runImage, "image", "", "container image to run (required)")
	runCmd.Flags().StringArrayVar(&runCmds, "cmd", nil, "a command to run, in order (repeatable)")
	runCmd.Flags().StringArrayVar(&runEnv, "env", nil, "KEY=VALUE environment variable (repeatable)")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 300, "per-command timeout in seconds")
	runCmd.Flags().IntVar(&runTTL, "ttl", 3600, "sandbox TTL in seconds")
	_ = runCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := wire(ctx)
	if err != nil {
		return err
	}

	spec := &orcaops.JobSpec{
		JobID:      "cli-" + uuid.New().String(),
		TTLSeconds: runTTL,
		TriggeredBy: "cli",
		Sandbox: orcaops.SandboxSpec{
			Image: runImage,
			Env:   parseEnv(runEnv),
		},
	}
	for _, line := range runCmds {
		spec.Commands = append(spec.Commands, orcaops.Command{
			Command:        line,
			TimeoutSeconds: runTimeout,
		})
	}

	record, err := c.Jobs.Submit(spec)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	for !record.Status.Terminal() {
		time.Sleep(200 * time.Millisecond)
		record, err = c.Jobs.Get(spec.JobID)
		if err != nil {
			return fmt.Errorf("poll job: %w", err)
		}
	}

	printJobResult(record)
	if record.Status != orcaops.JobStatusSuccess {
		return fmt.Errorf("job %s finished with status %s", record.JobID, record.Status)
	}
	return nil
}

func parseEnv(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		for i := 0; i < len(p); i++ {
			if p[i] == '=' {
				out[p[:i]] = p[i+1:]
				break
			}
		}
	}
	return out
}

func statusColor(s string) string {
	switch s {
	case string(orcaops.JobStatusSuccess), string(orcaops.WorkflowStatusSuccess):
		return color.GreenString(s)
	case string(orcaops.JobStatusFailed), string(orcaops.JobStatusTimedOut), string(orcaops.WorkflowStatusFailed):
		return color.RedString(s)
	case string(orcaops.JobStatusCancelled), string(orcaops.WorkflowStatusCancelled), string(orcaops.WorkflowStatusPartial):
		return color.YellowString(s)
	default:
		return s
	}
}

func printJobResult(record *orcaops.RunRecord) {
	fmt.Printf("job %s: %s\n", record.JobID, statusColor(string(record.Status)))
	if record.Error != "" {
		fmt.Println(color.RedString("error: " + record.Error))
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Command", "Exit", "Duration (s)"})
	for _, step := range record.Steps {
		table.Append([]string{step.Command, fmt.Sprintf("%d", step.ExitCode), fmt.Sprintf("%.2f", step.DurationSeconds)})
	}
	_ = table.Render()

	for _, a := range record.Artifacts {
		fmt.Printf("artifact: %s (%d bytes, sha256=%s)\n", a.Name, a.SizeBytes, a.SHA256)
	}
}
