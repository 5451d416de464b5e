package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flotilla-dev/flotilla/pkg/config"
	"github.com/flotilla-dev/flotilla/pkg/model"
	"github.com/flotilla-dev/flotilla/pkg/state"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a deployment configuration",
	Long: `Apply a deployment configuration from a YAML file.

The configuration is validated, assembled into a deployment, and stored as
the desired state for agents reading from this store.

Examples:
  # Apply a deployment
  flotilla apply -f deployment.yml`,
	RunE: runApply,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a deployment configuration",
	Long: `Parse and validate a deployment configuration without storing it.

Exits non-zero when the configuration is invalid.`,
	RunE: runValidate,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show desired versus observed state",
	Long: `Show the stored desired deployment next to the most recent state
reported by each node's agent.`,
	RunE: runStatus,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "Deployment YAML file (required)")
	applyCmd.Flags().String("data-dir", "/var/lib/flotilla", "Data directory for local state")
	_ = applyCmd.MarkFlagRequired("file")

	validateCmd.Flags().StringP("file", "f", "", "Deployment YAML file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	statusCmd.Flags().String("data-dir", "/var/lib/flotilla", "Data directory for local state")
	statusCmd.Flags().String("hostname", "", "Limit output to a single node")
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	deployment, err := config.NewParser().Load(filename)
	if err != nil {
		return err
	}

	store, err := state.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer store.Close()

	if err := store.SaveDeployment(deployment); err != nil {
		return fmt.Errorf("failed to store deployment: %w", err)
	}

	for _, node := range deployment.Nodes() {
		fmt.Printf("✓ %s: %d applications\n", node.Hostname(), len(node.Applications()))
	}
	fmt.Println("Deployment applied")
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	deployment, err := config.NewParser().Load(filename)
	if err != nil {
		return err
	}

	fmt.Printf("✓ %s is valid (%d nodes)\n", filename, len(deployment.Nodes()))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	only, _ := cmd.Flags().GetString("hostname")

	store, err := state.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer store.Close()

	desired, err := store.Desired(cmd.Context())
	if err != nil {
		return err
	}
	observed, err := store.Observed(cmd.Context())
	if err != nil {
		return err
	}

	hostnames := make(map[string]bool)
	for _, node := range desired.Nodes() {
		hostnames[node.Hostname()] = true
	}
	for _, nodeState := range observed.NodeStates() {
		hostnames[nodeState.Hostname] = true
	}
	if len(hostnames) == 0 {
		fmt.Println("No deployment applied and no nodes have reported.")
		return nil
	}

	for _, node := range desired.Nodes() {
		if only != "" && node.Hostname() != only {
			continue
		}
		delete(hostnames, node.Hostname())
		printNodeStatus(node, observed)
	}

	// Nodes that reported state but have no desired configuration.
	for hostname := range hostnames {
		if only != "" && hostname != only {
			continue
		}
		nodeState, _ := observed.NodeState(hostname)
		fmt.Printf("%s (not in deployment)\n", hostname)
		for _, app := range nodeState.Running {
			fmt.Printf("  %-20s running (undesired)\n", app.Name)
		}
	}
	return nil
}

func printNodeStatus(node model.Node, observed model.ClusterState) {
	fmt.Printf("%s\n", node.Hostname())

	nodeState, reported := observed.NodeState(node.Hostname())
	if !reported {
		fmt.Println("  (no state reported)")
		return
	}

	running := make(map[string]bool, len(nodeState.Running))
	for _, app := range nodeState.Running {
		running[app.Name] = true
	}

	for _, app := range node.Applications() {
		status := "pending"
		if running[app.Name] {
			status = "running"
			delete(running, app.Name)
		}
		fmt.Printf("  %-20s %s\n", app.Name, status)
	}
	for name := range running {
		fmt.Printf("  %-20s running (undesired)\n", name)
	}

	for _, manifestation := range nodeState.Manifestations {
		role := "replica"
		if manifestation.Primary {
			role = "primary"
		}
		fmt.Printf("  dataset %s (%s)\n", manifestation.DatasetID(), role)
	}
}
