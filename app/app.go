package app

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/searchktools/reactor-httpd/config"
	"github.com/searchktools/reactor-httpd/core/pools"
	"github.com/searchktools/reactor-httpd/core/server"
)

// App wires a parsed Config to a running reactor Server and handles signal-
// driven shutdown.
type App struct {
	cfg *config.Config
	mgr *config.Manager
	srv *server.Server
}

// New creates an application instance bound to cfg. mgr may be nil.
//
// A reactor server holds most of its memory in long-lived mmap'd file
// views and pooled buffers rather than short-lived garbage, so it tunes
// toward fewer, larger GC cycles instead of the runtime's default.
func New(cfg *config.Config, mgr *config.Manager) *App {
	pools.OptimizeForLowLatency()
	return &App{
		cfg: cfg,
		mgr: mgr,
		srv: server.New(cfg, mgr),
	}
}

// Run starts the reactor loop and blocks until a shutdown signal arrives and
// the loop has drained.
func (a *App) Run() {
	go a.awaitSignal()

	log.Printf("reactor-httpd starting on port %d [%s], doc-root=%s cgi-dir=%s", a.cfg.Port, a.cfg.Env, a.cfg.DocRoot, a.cfg.CGIDir)

	if err := a.srv.Run(); err != nil {
		log.Fatalf("server startup failed: %v", err)
	}
}

func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("signal received: %v, shutting down", sig)
	a.srv.Stop()
}
