// Command mcp-contracts serves the contract lookup tool over MCP
// (streamable HTTP on /mcp), so other agents can share the assistant's
// contract data.
//
// Configuration:
//
//	PORT                 - Listen port (default: 3000)
//	CONTRACTS_SEED_FILE  - YAML list of contracts for the in-memory lookup
//	CONTRACTS_DSN        - PostgreSQL DSN; replaces the in-memory lookup
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
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/kontrakt/pkg/app"
	"github.com/rhuss/kontrakt/pkg/config"
	"github.com/rhuss/kontrakt/pkg/debug"
	"github.com/rhuss/kontrakt/pkg/tools/builtins/contracts"
)

func main() {
	debug.Init("", "", os.Getenv("KONTRAKT_LOG_FORMAT"))
	if err := run(); err != nil {
		slog.Error("mcp-contracts failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lookup, closeLookup, err := openLookup(ctx)
	if err != nil {
		return err
	}
	defer closeLookup()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newMux(lookup, slog.Default()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mcp-contracts starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openLookup(ctx context.Context) (contracts.Lookup, func(), error) {
	if dsn := os.Getenv("CONTRACTS_DSN"); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting contracts database: %w", err)
		}
		lookup := contracts.NewPostgresLookup(pool)
		return lookup, lookup.Close, nil
	}

	lookup := contracts.NewMemoryLookup()
	if path := os.Getenv("CONTRACTS_SEED_FILE"); path != "" {
		seed, err := config.LoadSeedFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading %s: %w", path, err)
		}
		for _, s := range seed {
			lookup.Put(app.ContractFromSeed(s))
		}
		slog.Info("contracts loaded", "file", path, "count", len(seed))
	}
	return lookup, func() {}, nil
}
