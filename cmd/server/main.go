// Command server runs one quorumkv node: a raft.Instance backed by a
// bbolt log store, a gob/TCP transport, an in-memory key/value state
// machine, and an HTTP client API — wired the way the teacher's
// cmd/server/main.go wires its own equivalents, but through
// github.com/spf13/cobra, github.com/rs/zerolog, and gopkg.in/yaml.v3
// instead of the bare flag package and log.Logger.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quorumkv/raft/pkg/api"
	"github.com/quorumkv/raft/pkg/logstore"
	"github.com/quorumkv/raft/pkg/membership"
	"github.com/quorumkv/raft/pkg/raft"
	"github.com/quorumkv/raft/pkg/statemachine"
	"github.com/quorumkv/raft/pkg/transport"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "server",
		Short: "Run a quorumkv raft node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to the cluster YAML config file")
	root.MarkFlagRequired("config")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("node", cfg.NodeID).Logger()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := logstore.Open(filepath.Join(cfg.DataDir, "raft.db"))
	if err != nil {
		return fmt.Errorf("open log store: %w", err)
	}
	defer store.Close()

	sm := statemachine.NewStore()
	pending := api.NewPendingResults()

	dir := membership.NewDirectory()
	for _, p := range cfg.Peers {
		dir.Add(membership.Member{ID: raft.NodeID(p.ID), Address: p.Address, Voting: p.Voting})
	}

	registry := prometheus.NewRegistry()
	metrics := newServerMetrics(registry)

	host := newServerHost(log, store, nil, sm, pending, dir, metrics)

	inst := raft.NewInstance(raft.NodeID(cfg.NodeID), host, log)
	inst.SetElectionTimeout(raft.Time(cfg.ElectionTimeoutMs))

	bootstrapCfg := raft.Configuration{Nodes: cfg.votingNodes()}
	if err := store.Replay(inst.Recover); err != nil {
		return fmt.Errorf("replay log store: %w", err)
	}
	if inst.Config().Nodes == nil {
		inst.Recover(raft.LogEntry{Config: &bootstrapCfg})
	}

	guarded := newGuardedInstance(inst)
	host.bind(guarded)

	xport := transport.New(transport.NodeSelf(cfg.NodeID), dir, host, log)
	host.xport = xport
	if err := xport.Listen(cfg.ListenAddress); err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	defer xport.Close()

	guarded.inst.Start(raft.Time(nowMillis()), deriveSeed(cfg.NodeID))

	stopTick := startTickLoop(guarded, cfg.tickInterval())
	defer stopTick()

	handler := api.NewHandler(guarded, sm, dir, pending)
	httpServer := &http.Server{Addr: cfg.HTTPAddress, Handler: handler}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddress).Msg("http api listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
		go func() {
			log.Info().Str("addr", cfg.MetricsAddress).Msg("metrics listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
	if metricsServer != nil {
		metricsServer.Shutdown(ctx)
	}
	guarded.Stop()
	log.Info().Msg("shutdown complete")
	return nil
}

func startTickLoop(inst *guardedInstance, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				inst.Tick(raft.Time(nowMillis()))
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

// deriveSeed turns a node id into a stable, distinct RNG seed so each
// process's election jitter differs without needing external randomness
// at startup.
func deriveSeed(nodeID string) int64 {
	var h int64 = 1469598103934665603
	for _, b := range []byte(nodeID) {
		h ^= int64(b)
		h *= 1099511628211
	}
	if h < 0 {
		h = -h
	}
	return h + 1
}
