package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"gridcourier/internal/beliefs"
	"gridcourier/internal/comms"
	"gridcourier/internal/config"
	"gridcourier/internal/driver"
	"gridcourier/internal/policy"
	"gridcourier/internal/trace"
	"gridcourier/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: ~/.gridcourier/config.toml)")
	hostFlag := flag.String("host", "", "simulator websocket url override")
	tokenFlag := flag.String("token", "", "client token override")
	nameFlag := flag.String("name", "", "agent name override")
	modeFlag := flag.String("mode", "", "single|coop override")
	dbFlag := flag.String("db", "", "trace db path override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.APIHost = firstNonEmpty(*hostFlag, cfg.APIHost)
	cfg.ClientToken = firstNonEmpty(*tokenFlag, cfg.ClientToken)
	cfg.AgentName = firstNonEmpty(*nameFlag, cfg.AgentName)
	cfg.Mode = firstNonEmpty(*modeFlag, cfg.Mode)
	cfg.Trace.DBPath = firstNonEmpty(*dbFlag, cfg.Trace.DBPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := log.New(os.Stdout, "["+cfg.AgentName+"] ", log.LstdFlags|log.Lmicroseconds)

	dbPath := filepath.Clean(cfg.Trace.DBPath)
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("create trace directory: %v", err)
		}
	}
	store, err := trace.Open(dbPath)
	if err != nil {
		logger.Fatalf("open trace store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatalf("migrate trace store: %v", err)
	}
	runID := uuid.NewString()
	if err := store.StartSession(ctx, trace.Session{ID: runID, AgentID: cfg.AgentName}); err != nil {
		logger.Fatalf("start trace session: %v", err)
	}
	recorder := trace.NewRecorder(store, runID, logger)

	client, err := ws.Dial(ctx, cfg.APIHost, cfg.AgentName, cfg.ClientToken, ws.Handlers{}, logger)
	if err != nil {
		logger.Fatalf("connect simulator: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	bel := beliefs.New(logger)

	var drv *driver.Driver
	var node *comms.Node
	if cfg.Mode == config.ModeCoOp {
		node = comms.NewNode(comms.Options{
			SelfID:            cfg.AgentName,
			TeamKey:           cfg.Team.TeamKey,
			HelloInterval:     time.Duration(cfg.Team.HelloIntervalMS) * time.Millisecond,
			AskTimeout:        time.Duration(cfg.Team.AskTimeoutMS) * time.Millisecond,
			PartitionInterval: time.Duration(cfg.Team.PartitionEveryMS) * time.Millisecond,
			Logger:            logger,
			Tracer:            recorder,
			OnRevision: func() {
				if drv != nil {
					drv.Generate()
				}
			},
		}, client, client.Inbox(), bel)
	}

	drv = driver.New(driver.Options{
		Beliefs:      bel,
		Actuator:     client,
		Comms:        node,
		Policy:       policy.New(cfg.Runtime.PreemptMargin),
		LoopInterval: time.Duration(cfg.Runtime.LoopIntervalMS) * time.Millisecond,
		Logger:       logger,
		Tracer:       recorder,
	})
	client.SetHandlers(drv.Handlers(ctx))

	if cfg.Runtime.UsePDDL {
		logger.Printf("use_pddl is set but no solver backend is available, using search-based plans")
	}
	logger.Printf("starting mode=%s host=%s session=%s", cfg.Mode, cfg.APIHost, runID)

	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(ctx) }()
	if node != nil {
		go node.Run(ctx)
	}
	go drv.Run(ctx)

	select {
	case <-ctx.Done():
		logger.Printf("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("simulator link lost: %v", err)
			os.Exit(1)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
