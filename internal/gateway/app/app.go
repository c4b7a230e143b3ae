package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"timemachine/internal/engine"
	"timemachine/internal/gateway/config"
	"timemachine/internal/gateway/handler"
	"timemachine/internal/gateway/server"
	"timemachine/internal/gateway/service/analysis"
	"timemachine/internal/gateway/service/taskevent"
	"timemachine/internal/upload"
)

// orphanAge is how old a staged upload must be before the startup sweep
// treats it as leaked by a previous process that died mid-request.
const orphanAge = time.Hour

type App struct {
	server *server.Server
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	staging, err := upload.NewStaging(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload staging: %w", err)
	}
	staging.SweepOrphans(orphanAge)

	stores, err := initStores(cfg)
	if err != nil {
		return nil, err
	}

	invoker := engine.NewInvoker(engine.Limits{
		Timeout:        cfg.Engine.TaskTimeout,
		MaxOutputBytes: cfg.Engine.MaxOutputBytes,
	})
	scripts := engine.ScriptSet{
		Python:     cfg.Engine.Python,
		Dir:        cfg.Engine.ScriptDir,
		MaxCommits: cfg.Engine.MaxCommits,
	}
	hub := taskevent.NewHub()
	analysisSvc := analysis.New(invoker, scripts, stores.registry, stores.archive, hub)

	api := handler.NewAPI(analysisSvc, staging, cfg.IsDevelopment())
	eventsHandler := handler.NewEventsHandler(hub)
	traceHandler := handler.NewTraceHandler(hub)

	// Routing & Server
	mux := server.NewMux(api, eventsHandler, traceHandler, newStatic(cfg.StaticDir))
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
	}, nil
}

// newStatic builds the front-end handler, or nil when no usable static
// directory is configured. The API works fine without one.
func newStatic(dir string) *handler.Static {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.Printf("static dir %s not found, front end disabled", dir)
		return nil
	}
	s, err := handler.NewStatic(dir)
	if err != nil {
		log.Printf("static dir %s unusable: %v", dir, err)
		return nil
	}
	return s
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
