package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drewrad8/strategos/pkg/client"
	"github.com/drewrad8/strategos/pkg/types"
)

var correctionCmd = &cobra.Command{
	Use:   "correction",
	Short: "Drive correction loop sessions against a running worker",
}

var correctionRunCmd = &cobra.Command{
	Use:   "run WORKER_ID",
	Short: "Run a correction loop session against a worker's live output",
	Long: `Run drives spec.md's verify -> critique -> revise loop against
worker WORKER_ID: an external verification command judges each
revision, and every critique the tool raises is relayed to the
worker's terminal as the next input.`,
	Args: cobra.ExactArgs(1),
	RunE: runCorrectionRun,
}

func init() {
	addServerFlags(correctionRunCmd)
	correctionRunCmd.Flags().String("initial-output", "", "The output to verify first, before any revision")
	correctionRunCmd.Flags().String("task-type", string(types.TaskTypeCode), "Task type selecting the iteration cap: code, reasoning, factual, format")
	correctionRunCmd.Flags().String("project-id", "", "Project id scoping reflection memory lookups")
	correctionRunCmd.Flags().String("verify-cmd", "", "Verification command; output is piped to its stdin, a JSON verdict is read from its stdout (required)")
	correctionRunCmd.Flags().StringSlice("verify-args", nil, "Arguments passed to --verify-cmd")
	correctionRunCmd.MarkFlagRequired("verify-cmd")

	correctionCmd.AddCommand(correctionRunCmd)
}

func runCorrectionRun(cmd *cobra.Command, args []string) error {
	initialOutput, _ := cmd.Flags().GetString("initial-output")
	taskType, _ := cmd.Flags().GetString("task-type")
	projectID, _ := cmd.Flags().GetString("project-id")
	verifyCmd, _ := cmd.Flags().GetString("verify-cmd")
	verifyArgs, _ := cmd.Flags().GetStringSlice("verify-args")

	c, ctx, cancel := workerClient(cmd)
	defer cancel()

	result, err := c.RunCorrection(ctx, args[0], client.CorrectionRequest{
		InitialOutput: initialOutput,
		TaskType:      types.TaskType(taskType),
		ProjectID:     projectID,
		VerifyCommand: verifyCmd,
		VerifyArgs:    verifyArgs,
	})
	if err != nil {
		return err
	}

	status := "FAILED"
	if result.Success {
		status = "OK"
	}
	fmt.Printf("%s after %d iteration(s) (%s), confidence %.2f\n",
		status, result.Iterations, result.StopReason, result.Confidence)
	if !result.Success {
		fmt.Println(strings.TrimSpace(result.FinalOutput))
	}
	return nil
}
