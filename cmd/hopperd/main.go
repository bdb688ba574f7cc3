// Command hopperd runs the orchestrator daemon: it loads configuration,
// wires the Permission Engine, Confirmation Broker, Audit Log, Context
// Store, Service Coordinator, Tool Registry, and Agent Loop together, and
// serves the ingress HTTP API described in spec.md §6.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hopper-project/core/pkg/agent"
	"github.com/hopper-project/core/pkg/approval"
	"github.com/hopper-project/core/pkg/audit"
	"github.com/hopper-project/core/pkg/config"
	"github.com/hopper-project/core/pkg/contextstore"
	"github.com/hopper-project/core/pkg/dispatcher"
	"github.com/hopper-project/core/pkg/hlog"
	"github.com/hopper-project/core/pkg/paths"
	"github.com/hopper-project/core/pkg/policy"
	"github.com/hopper-project/core/pkg/tool"
	"github.com/hopper-project/core/pkg/worker"
)

const (
	plannerWorkerName   = "planner"
	executorWorkerName  = "executor"
	connectorWorkerName = "connectors"
	learningWorkerName  = "learning"
)

func main() {
	configPath := os.Getenv("HOPPER_CONFIG_FILE")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("hopperd: load config: %v", err)
	}

	srv, closers, err := build(cfg)
	if err != nil {
		log.Fatalf("hopperd: build: %v", err)
	}
	defer closeAll(closers)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Printf("hopperd: listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("hopperd: serve: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("hopperd: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("hopperd: shutdown: %v", err)
	}
}

// closer is anything build assembles that needs a clean teardown.
type closer func() error

func closeAll(closers []closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			log.Printf("hopperd: close: %v", err)
		}
	}
}

func build(cfg *config.Config) (*dispatcher.Server, []closer, error) {
	var closers []closer

	logsDir := paths.HopperLogsBaseDirForWorkdir(cfg.WorkDir)
	eventLogger, err := hlog.NewLogger(logsDir, "daemon")
	if err != nil {
		return nil, nil, fmt.Errorf("event logger: %w", err)
	}
	closers = append(closers, eventLogger.Close)

	reasoningLogger, err := hlog.NewReasoningLogger(filepath.Join(logsDir, "reasoning"))
	if err != nil {
		return nil, nil, fmt.Errorf("reasoning logger: %w", err)
	}
	closers = append(closers, reasoningLogger.Close)

	auditLog, err := audit.NewLog(cfg.Audit.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("audit log: %w", err)
	}
	closers = append(closers, auditLog.Close)

	var auditIndex *audit.Index
	if cfg.Audit.EnableIndex {
		auditIndex, err = audit.OpenIndex(cfg.Audit.SQLiteIndex)
		if err != nil {
			return nil, nil, fmt.Errorf("audit index: %w", err)
		}
	}

	policyCfg, err := policy.LoadConfigFile(cfg.Policy.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("policy: %w", err)
	}
	engine := policy.NewEngine(policyCfg)

	if cfg.Policy.ReloadOnWrite && cfg.Policy.FilePath != "" {
		watcher, err := watchPolicyFile(cfg.Policy.FilePath, engine)
		if err != nil {
			log.Printf("hopperd: policy hot-reload disabled: %v", err)
		} else {
			closers = append(closers, watcher.Close)
		}
	}

	brokerMode := approval.BrokerInteractive
	switch cfg.Confirm.Mode {
	case config.ConfirmationAsync:
		brokerMode = approval.BrokerAsync
	case config.ConfirmationAutoApprove:
		brokerMode = approval.BrokerAutoApprove
		log.Printf("hopperd: WARNING: confirmation mode is auto-approve; every confirmable action is approved without a human")
	}
	broker := approval.NewBroker(brokerMode, cfg.Confirm.DefaultTimeout)
	if cfg.Confirm.PushVAPIDKey != "" {
		broker.ConfigurePush(nil, cfg.Confirm.PushVAPIDKey, "")
	}

	gate := &dispatcher.Gate{
		Engine:  engine,
		Broker:  broker,
		Audit:   auditLog,
		Resolve: approval.AutoApproveResolver(),
	}
	if brokerMode == approval.BrokerInteractive {
		gate.Resolve = approval.CLIResolver(os.Stdin, os.Stdout)
	}

	store := contextstore.New(cfg.Context.MaxExchangesPerPrincipal, cfg.Context.TokenBudget)

	coord := worker.New(
		worker.WithConcurrency(int64(cfg.Worker.MaxConcurrency)),
		worker.WithQueueDepth(cfg.Worker.QueueDepth),
	)
	registerWorkers(coord)
	closers = append(closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return coord.CloseAll(ctx)
	})

	if cfg.Worker.NATSURL != "" {
		bridge, err := worker.ConnectNATSBridge(cfg.Worker.NATSURL, coord)
		if err != nil {
			log.Printf("hopperd: nats heartbeat bridge disabled: %v", err)
		} else {
			bridge.Start(cfg.Worker.HeartbeatInterval)
			closers = append(closers, func() error { bridge.Close(); return nil })
		}
	}

	registry := tool.NewRegistry()
	registry.SetPermissionChecker(gate.PermissionChecker())

	planner := &workerPlanner{coord: coord, name: plannerWorkerName}
	loop := agent.New(planner, registry,
		agent.WithMaxSteps(agent.DefaultMaxSteps),
		agent.WithDeadline(agent.DefaultDeadline),
		agent.WithLogger(eventLogger),
		agent.WithReasoningLogger(reasoningLogger),
	)

	var tokens *dispatcher.TokenManager
	if !cfg.Auth.Disabled {
		tokens = dispatcher.NewTokenManager(cfg.Auth.JWTSecret)
	}

	srv := dispatcher.New(&dispatcher.Server{
		Loop:           loop,
		Context:        store,
		Workers:        coord,
		Gate:           gate,
		Audit:          auditLog,
		Index:          auditIndex,
		Tokens:         tokens,
		Logger:         eventLogger,
		ExecutorWorker: executorWorkerName,
	})

	return srv, closers, nil
}

// registerWorkers wires the well-known worker roles the Agent Loop and the
// /exec route depend on. Addresses are read from the environment so a
// single daemon binary can be pointed at differently-deployed services
// without a rebuild.
func registerWorkers(coord *worker.Coordinator) {
	type roleAddr struct {
		name, envVar, fallback string
	}
	roles := []roleAddr{
		{plannerWorkerName, "HOPPER_PLANNER_ADDR", "http://127.0.0.1:8801"},
		{executorWorkerName, "HOPPER_EXECUTOR_ADDR", "http://127.0.0.1:8802"},
		{connectorWorkerName, "HOPPER_CONNECTORS_ADDR", "http://127.0.0.1:8803"},
		{learningWorkerName, "HOPPER_LEARNING_ADDR", "http://127.0.0.1:8804"},
	}
	for _, role := range roles {
		addr := os.Getenv(role.envVar)
		if addr == "" {
			addr = role.fallback
		}
		coord.RegisterWorker(role.name, addr)
	}
}
