package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/homesentry/frigate-bridge/internal/actions"
	"github.com/homesentry/frigate-bridge/internal/alert"
	"github.com/homesentry/frigate-bridge/internal/api"
	"github.com/homesentry/frigate-bridge/internal/audit"
	"github.com/homesentry/frigate-bridge/internal/bus"
	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/events"
	"github.com/homesentry/frigate-bridge/internal/frigate"
	"github.com/homesentry/frigate-bridge/internal/health"
	"github.com/homesentry/frigate-bridge/internal/history"
	"github.com/homesentry/frigate-bridge/internal/homeassistant"
	"github.com/homesentry/frigate-bridge/internal/pipeline"
	"github.com/homesentry/frigate-bridge/internal/platform/paths"
	"github.com/homesentry/frigate-bridge/internal/policy"
	"github.com/homesentry/frigate-bridge/internal/publish"
	"github.com/homesentry/frigate-bridge/internal/tokens"
	"github.com/homesentry/frigate-bridge/internal/vision"
)

const shutdownGrace = 30 * time.Second

func main() {
	configPath := flag.String("config", "/etc/frigate-bridge/config.json", "path to the config file")
	secretsPath := flag.String("secrets", "", "path to the secrets env file (default: .secrets.env next to the config)")
	workers := flag.Int("workers", 2, "pipeline worker count")
	flag.Parse()

	if *secretsPath == "" {
		*secretsPath = filepath.Join(filepath.Dir(*configPath), ".secrets.env")
	}

	store, err := config.NewStore(*configPath, *secretsPath)
	if err != nil {
		log.Fatalf("[FATAL] Main: %v", err)
	}
	cfg := store.Snapshot()
	snap := store.Snapshot // captured by every component needing live config

	storageRoot := paths.ResolveStorageRoot(cfg.StorageRoot)
	workspaceRoot := paths.ResolveWorkspaceRoot(cfg.WorkspaceRoot)
	if err := paths.EnsureDirs(storageRoot, workspaceRoot); err != nil {
		log.Fatalf("[FATAL] Main: %v", err)
	}
	dirs := pipeline.Dirs{
		Snapshots: paths.SnapshotDir(storageRoot),
		Clips:     paths.ClipDir(storageRoot),
		Staging:   paths.StagingDir(workspaceRoot),
	}

	historyPath := cfg.HistoryFile
	if historyPath == "" {
		historyPath = filepath.Join(storageRoot, "event-history.jsonl")
	}
	hist := history.NewStore(historyPath, cfg.HistoryMaxLines)
	auditLog := audit.NewLog(filepath.Join(storageRoot, "ops-audit.jsonl"), cfg.AuditSigningKey)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store.StartWatcher(rootCtx)

	busClient, err := bus.NewClient(bus.Config{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		Username: cfg.MQTTUser,
		Password: cfg.MQTTPass,
		ClientID: "frigate-bridge",
	})
	if err != nil {
		log.Fatalf("[FATAL] Main: %v", err)
	}

	nvr := frigate.NewClient(cfg.FrigateAPI)
	hub := homeassistant.NewClient(cfg.HubURL, cfg.HubToken)
	visionClient := vision.NewClient(
		vision.Endpoint{BaseURL: cfg.VisionAPI, Model: cfg.VisionModel},
		vision.Endpoint{BaseURL: cfg.VisionAPIFallback, Model: cfg.VisionModelFallback},
		time.Duration(cfg.VisionTimeoutSeconds)*time.Second,
	)

	states := events.NewStateMap()
	queue := events.NewQueue(cfg.QueueLimit)
	intake := events.NewIntake(snap, states, queue)

	publisher := publish.NewPublisher(snap, busClient)
	builder := policy.NewContextBuilder(snap, hub, hist)
	executor := actions.NewExecutor(snap, nvr, hub, dirs.Clips)
	deliverer := alert.NewDeliverer(snap)

	runner := pipeline.NewRunner(snap, states, queue, publisher, nvr, visionClient, builder, executor, deliverer, hist, dirs)

	checker := health.NewChecker()
	checker.Register("frigate", health.HTTPProbe(cfg.FrigateAPI+"/api/version"))
	checker.Register("vision", visionClient.Ping)
	if hub.Configured() {
		checker.Register("hub", health.HTTPProbe(cfg.HubURL+"/api/"))
	}
	go checker.Run(rootCtx, time.Minute)

	go pipeline.RunSweeper(rootCtx, snap, dirs.Staging, filepath.Join(workspaceRoot, "ai-clips"))

	opsServer := &http.Server{
		Addr: cfg.OpsListen,
		Handler: api.NewServer(
			store, tokens.NewManager(cfg.AuditSigningKey), checker, hist, queue, auditLog,
		).Router(),
	}
	go func() {
		log.Printf("[INFO] Main: ops API listening on %s", cfg.OpsListen)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] Main: ops API: %v", err)
		}
	}()

	if err := busClient.Subscribe(cfg.TopicSubscribe, 1, intake.HandleMessage); err != nil {
		log.Fatalf("[FATAL] Main: subscribe %s: %v", cfg.TopicSubscribe, err)
	}
	log.Printf("[INFO] Main: bridge running, watching %s", cfg.TopicSubscribe)

	// The pipeline gets its own context so in-flight events can finish during
	// the shutdown grace period after the signal cancels rootCtx.
	pipeCtx, pipeCancel := context.WithCancel(context.Background())
	defer pipeCancel()

	runnerDone := make(chan struct{})
	go func() {
		runner.Run(pipeCtx, *workers)
		close(runnerDone)
	}()

	<-rootCtx.Done()
	log.Printf("[INFO] Main: shutdown requested")

	// Stop intake first, then let in-flight events finish within the grace
	// period so final payloads and history appends land.
	queue.Close()
	select {
	case <-runnerDone:
	case <-time.After(shutdownGrace):
		log.Printf("[WARN] Main: grace period expired with events in flight")
		pipeCancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opsServer.Shutdown(shutdownCtx)
	busClient.Close()

	if err := auditLog.Write("bridge.shutdown", "system", ""); err != nil {
		log.Printf("[WARN] Main: audit write failed: %v", err)
	}
	log.Printf("[INFO] Main: bye")
	os.Exit(0)
}
