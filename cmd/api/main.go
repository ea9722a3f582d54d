package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/kpeconomy/internal/api"
	"github.com/fastprodman/kpeconomy/internal/catalog"
	"github.com/fastprodman/kpeconomy/internal/infra/logging"
	"github.com/fastprodman/kpeconomy/internal/infra/pgutils"
	"github.com/fastprodman/kpeconomy/internal/services/economy"
	"github.com/fastprodman/kpeconomy/pkg/envconf"
	"github.com/fastprodman/kpeconomy/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel, "api")

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	cat, err := loadCatalog(cfg.Economy.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	// --- Infra ---
	dbConns, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Close database")

		return dbConns.Close()
	})

	economySrv := economy.New(dbConns, cat, economy.Config{
		RestoreFloor:    cfg.Economy.RestoreFloor,
		LockoutDuration: cfg.Economy.LockoutDuration,
	})

	// --- State push hub ---
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := api.NewHub(slog.Default())

	go hub.Run(hubCtx)

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Stop websocket hub")
		stopHub()

		return nil
	})

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, economySrv, hub)

	// Registered last so it runs first: drain HTTP before closing the hub and DB.
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "catalog_items", len(cat.Items()))

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}

	return catalog.Load(path)
}
