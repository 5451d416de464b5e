package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flotilla-dev/flotilla/pkg/agent"
	"github.com/flotilla-dev/flotilla/pkg/convergence"
	"github.com/flotilla-dev/flotilla/pkg/dataset"
	"github.com/flotilla-dev/flotilla/pkg/events"
	"github.com/flotilla-dev/flotilla/pkg/log"
	"github.com/flotilla-dev/flotilla/pkg/metrics"
	"github.com/flotilla-dev/flotilla/pkg/runtime"
	"github.com/flotilla-dev/flotilla/pkg/state"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the convergence agent on this node",
	Long: `Run the per-node convergence agent.

The agent discovers local containers and dataset manifestations, compares
them against the desired cluster configuration, and applies the changes
needed to converge. When --config points at a deployment file, changes to
that file trigger an immediate pass; the desired configuration otherwise
comes from the local store populated by 'flotilla apply'.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().String("hostname", "", "This node's hostname in the deployment (defaults to os.Hostname)")
	agentCmd.Flags().String("data-dir", "/var/lib/flotilla", "Data directory for local state")
	agentCmd.Flags().String("config", "", "Deployment configuration file to watch (optional)")
	agentCmd.Flags().String("containerd-socket", "/run/containerd/containerd.sock", "Path to the containerd socket")
	agentCmd.Flags().Duration("interval", agent.DefaultInterval, "Time between convergence passes")
	agentCmd.Flags().Int("concurrency", 4, "Maximum changes executed in parallel within a phase")
	agentCmd.Flags().String("metrics-addr", ":9650", "Address for the Prometheus metrics endpoint (empty to disable)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	hostname, _ := cmd.Flags().GetString("hostname")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	configPath, _ := cmd.Flags().GetString("config")
	socketPath, _ := cmd.Flags().GetString("containerd-socket")
	interval, _ := cmd.Flags().GetDuration("interval")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	if hostname == "" {
		var err error
		hostname, err = os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to determine hostname: %w", err)
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logger := log.WithHostname(hostname)

	datasets, err := dataset.NewLocalDriver(filepath.Join(dataDir, "datasets"))
	if err != nil {
		return fmt.Errorf("failed to initialize dataset driver: %w", err)
	}

	containers, err := runtime.NewContainerdDriver(socketPath, datasets)
	if err != nil {
		return fmt.Errorf("failed to connect to containerd: %w", err)
	}
	defer containers.Close()

	store, err := state.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var source state.Source = store
	var fileEvents <-chan struct{}
	if configPath != "" {
		fileSource, err := state.NewFileSource(configPath)
		if err != nil {
			return fmt.Errorf("failed to load deployment configuration: %w", err)
		}
		if err := fileSource.Watch(ctx); err != nil {
			return fmt.Errorf("failed to watch deployment configuration: %w", err)
		}
		source = state.Combined{DesiredSource: fileSource, ObservedSource: store}
		fileEvents = fileSource.Events()
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	// Mirror agent lifecycle events into the log.
	eventLog := broker.Subscribe()
	defer broker.Unsubscribe(eventLog)
	go func() {
		for event := range eventLog {
			entry := logger.Debug().Str("event", string(event.Type))
			for key, value := range event.Metadata {
				entry = entry.Str(key, value)
			}
			entry.Msg(event.Message)
		}
	}()

	deployer := convergence.NewDeployer(hostname, containers, datasets)
	runner := convergence.NewRunner(deployer, concurrency)

	nodeAgent, err := agent.New(agent.Config{
		Hostname: hostname,
		Deployer: deployer,
		Runner:   runner,
		Source:   source,
		Reporter: store,
		Broker:   broker,
		Interval: interval,
	})
	if err != nil {
		return err
	}

	if fileEvents != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-fileEvents:
					nodeAgent.Trigger()
				}
			}
		}()
	}

	var metricsServer *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server error")
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
	}

	// Run until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- nodeAgent.Run(ctx) }()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	return nil
}
