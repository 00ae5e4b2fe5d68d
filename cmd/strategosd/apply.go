package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/drewrad8/strategos/pkg/client"
	"github.com/drewrad8/strategos/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply -f FILE",
	Short: "Spawn a worker from a declarative YAML manifest",
	Long: `Apply a worker manifest, e.g.:

  kind: Worker
  metadata:
    label: "impl: auth middleware"
  spec:
    projectPath: backend
    ralphMode: true
    task:
      type: code
      description: "implement JWT auth middleware"`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	applyCmd.MarkFlagRequired("file")
	addServerFlags(applyCmd)
}

// workerManifest is the YAML shape runApply reads. Grounded on the
// teacher's cmd/warren/apply.go WarrenResource (kind/metadata/spec
// envelope around a YAML file), narrowed to the one resource kind this
// orchestrator has.
type workerManifest struct {
	Kind     string `yaml:"kind"`
	Metadata struct {
		Label string `yaml:"label"`
	} `yaml:"metadata"`
	Spec struct {
		ProjectPath    string      `yaml:"projectPath"`
		RalphMode      bool        `yaml:"ralphMode"`
		AutoAccept     *bool       `yaml:"autoAccept"`
		AllowDuplicate bool        `yaml:"allowDuplicate"`
		DependsOn      []string    `yaml:"dependsOn"`
		Task           *types.Task `yaml:"task"`
	} `yaml:"spec"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	var manifest workerManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}
	if manifest.Kind != "" && manifest.Kind != "Worker" {
		return fmt.Errorf("unsupported manifest kind: %s", manifest.Kind)
	}
	if manifest.Spec.ProjectPath == "" {
		return fmt.Errorf("spec.projectPath is required")
	}

	c, ctx, cancel := workerClient(cmd)
	defer cancel()

	w, err := c.SpawnWorker(ctx, client.SpawnRequest{
		ProjectPath:    manifest.Spec.ProjectPath,
		Label:          manifest.Metadata.Label,
		AutoAccept:     manifest.Spec.AutoAccept,
		RalphMode:      manifest.Spec.RalphMode,
		AllowDuplicate: manifest.Spec.AllowDuplicate,
		DependsOn:      manifest.Spec.DependsOn,
		Task:           manifest.Spec.Task,
	})
	if err != nil {
		return fmt.Errorf("applying manifest: %w", err)
	}

	fmt.Printf("worker spawned: %s\n", w.ID)
	return nil
}
