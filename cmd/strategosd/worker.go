package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/drewrad8/strategos/pkg/client"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Inspect and control workers on a running strategosd",
}

func workerClient(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc) {
	addr, _ := cmd.Flags().GetString("server")
	apiKey, _ := cmd.Flags().GetString("api-key")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	return client.NewClient(addr, apiKey), ctx, cancel
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "http://127.0.0.1:8080", "strategosd API address")
	cmd.Flags().String("api-key", "", "Bearer token, if the server requires one")
}

var workerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := workerClient(cmd)
		defer cancel()

		workers, err := c.ListWorkers(ctx)
		if err != nil {
			return err
		}
		if len(workers) == 0 {
			fmt.Println("No workers found")
			return nil
		}
		fmt.Printf("%-10s %-24s %-10s %-10s %s\n", "ID", "LABEL", "STATUS", "HEALTH", "PROJECT")
		for _, w := range workers {
			fmt.Printf("%-10s %-24s %-10s %-10s %s\n",
				w.ID, truncate(w.Label, 24), w.Status, w.Health, w.Project)
		}
		return nil
	},
}

var workerSpawnCmd = &cobra.Command{
	Use:   "spawn PROJECT_PATH",
	Short: "Spawn a new worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		ralphMode, _ := cmd.Flags().GetBool("ralph")

		c, ctx, cancel := workerClient(cmd)
		defer cancel()

		w, err := c.SpawnWorker(ctx, client.SpawnRequest{
			ProjectPath: args[0],
			Label:       label,
			RalphMode:   ralphMode,
		})
		if err != nil {
			return err
		}
		fmt.Printf("worker spawned: %s\n", w.ID)
		return nil
	},
}

var workerKillCmd = &cobra.Command{
	Use:   "kill ID",
	Short: "Kill a worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		c, ctx, cancel := workerClient(cmd)
		defer cancel()

		if err := c.KillWorker(ctx, args[0], force); err != nil {
			return err
		}
		fmt.Printf("worker killed: %s\n", args[0])
		return nil
	},
}

var workerInputCmd = &cobra.Command{
	Use:   "input ID TEXT",
	Short: "Send input to a worker's terminal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := workerClient(cmd)
		defer cancel()
		return c.SendInput(ctx, args[0], args[1])
	},
}

var workerOutputCmd = &cobra.Command{
	Use:   "output ID",
	Short: "Print a worker's buffered output tail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := workerClient(cmd)
		defer cancel()

		out, err := c.Output(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{workerListCmd, workerSpawnCmd, workerKillCmd, workerInputCmd, workerOutputCmd} {
		addServerFlags(cmd)
	}

	workerSpawnCmd.Flags().String("label", "", "Human-readable worker label")
	workerSpawnCmd.Flags().Bool("ralph", false, "Enable Ralph mode (autonomous continue-until-done loop)")

	workerKillCmd.Flags().Bool("force", false, "Force-kill (SIGKILL) instead of a graceful stop")

	workerCmd.AddCommand(workerListCmd)
	workerCmd.AddCommand(workerSpawnCmd)
	workerCmd.AddCommand(workerKillCmd)
	workerCmd.AddCommand(workerInputCmd)
	workerCmd.AddCommand(workerOutputCmd)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
