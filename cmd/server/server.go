// Command server wires every collaborator into a running exchange and
// serves spec §6's HTTP/WebSocket surface, grounded on the teacher's
// cmd/server/server.go signal.NotifyContext shutdown pattern.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"freightex/internal/api"
	"freightex/internal/book"
	"freightex/internal/contract"
	"freightex/internal/engine"
	"freightex/internal/ledger"
	"freightex/internal/scenario"
	"freightex/internal/scheduler"
	"freightex/internal/settlement"
	"freightex/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// config is assembled from environment variables, per SPEC_FULL.md's
// ambient configuration note; every field has a default so the server
// runs unconfigured for local development.
type config struct {
	addr string
}

func loadConfig() config {
	addr := os.Getenv("FREIGHTEX_ADDR")
	if addr == "" {
		addr = "0.0.0.0:9001"
	}
	return config{addr: addr}
}

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("FREIGHTEX_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	l := ledger.New()
	st := store.New()
	books := book.NewManager()
	registry := contract.NewRegistry(l)
	settle := settlement.New(l, registry, scenario.Platform)
	eng := engine.New(books, st, l, settle, registry)

	builder := &scenario.Builder{Engine: eng, Books: books, Registry: registry, Ledger: l, Settle: settle}
	sched := scheduler.New(builder.Default(), l, st, books, registry, eng, settle)

	srv, err := api.New(eng, books, l, registry, sched)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct api server")
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.addr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.addr).Msg("freightex server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
