package main

import (
	"bufio"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var breakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Inspect circuit breaker state on a running strategosd",
}

var breakerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print each breaker's current state",
	Long: `Scrapes the strategos_breaker_state gauge off the metrics
endpoint rather than pkg/api, since breaker state is process-local
Prometheus instrumentation, not part of the worker REST surface.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-server")

		resp, err := http.Get(metricsAddr + "/metrics")
		if err != nil {
			return fmt.Errorf("fetching metrics: %w", err)
		}
		defer resp.Body.Close()

		states := map[string]float64{}
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "strategos_breaker_state{") {
				continue
			}
			name, value, ok := parseGaugeLine(line)
			if !ok {
				continue
			}
			states[name] = value
		}

		if len(states) == 0 {
			fmt.Println("No breakers tripped or registered yet")
			return nil
		}
		fmt.Printf("%-30s %s\n", "BREAKER", "STATE")
		for name, v := range states {
			fmt.Printf("%-30s %s\n", name, breakerStateLabel(v))
		}
		return nil
	},
}

// parseGaugeLine extracts the name="..." label value and the trailing
// sample value from a single Prometheus text-exposition line.
func parseGaugeLine(line string) (name string, value float64, ok bool) {
	start := strings.Index(line, `name="`)
	if start == -1 {
		return "", 0, false
	}
	start += len(`name="`)
	end := strings.Index(line[start:], `"`)
	if end == -1 {
		return "", 0, false
	}
	name = line[start : start+end]

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", 0, false
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return "", 0, false
	}
	return name, v, true
}

func breakerStateLabel(v float64) string {
	switch v {
	case 0:
		return "closed"
	case 1:
		return "half-open"
	case 2:
		return "open"
	default:
		return "unknown"
	}
}

func init() {
	breakerStatusCmd.Flags().String("metrics-server", "http://127.0.0.1:9090", "strategosd metrics address")
	breakerCmd.AddCommand(breakerStatusCmd)
}
