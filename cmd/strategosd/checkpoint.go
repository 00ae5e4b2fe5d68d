package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect worker checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints left behind by terminated workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := workerClient(cmd)
		defer cancel()

		cps, err := c.Checkpoints(ctx)
		if err != nil {
			return err
		}
		if len(cps) == 0 {
			fmt.Println("No checkpoints found")
			return nil
		}
		fmt.Printf("%-10s %-24s %-10s %-12s %s\n", "ID", "LABEL", "WORKER", "HEALTH", "DIED AT")
		for _, cp := range cps {
			fmt.Printf("%-10s %-24s %-10s %-12s %s\n",
				cp.ID, truncate(cp.Label, 24), cp.WorkerID, cp.FinalHealth, cp.DiedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	addServerFlags(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointListCmd)
}
