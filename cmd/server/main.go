/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the PaySecure escrow engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the YAML config
  2. Open the SQLite snapshot store
  3. Restore the latest snapshot, or seed demo accounts on first run
  4. Configure the HTTP router
  5. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config; ":memory:" works)
  -config  YAML config path (default: config.yaml)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Save a final snapshot and close the database
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Snapshot persistence
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paysecure/escrow-engine/api"
	"github.com/paysecure/escrow-engine/config"
	"github.com/paysecure/escrow-engine/escrow"
	memstore "github.com/paysecure/escrow-engine/escrow/store"
	"github.com/paysecure/escrow-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	configPath := flag.String("config", "config.yaml", "YAML config path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Snapshot persistence
	snapshots, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer snapshots.Close()

	// Engine over in-memory stores
	engine := escrow.NewEngine(memstore.NewMemoryAccounts(), memstore.NewMemoryOrders(), memstore.NewMemoryLog())
	engine.StartingCoins = decimal.NewFromFloat(cfg.Accounts.StartingCoins)
	engine.StartingCash = decimal.NewFromFloat(cfg.Accounts.StartingCash)

	ctx := context.Background()
	snapshot, err := snapshots.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}
	if snapshot != nil {
		if err := engine.Restore(ctx, *snapshot); err != nil {
			log.Fatalf("Failed to restore snapshot: %v", err)
		}
		log.Printf("Restored %d accounts, %d orders, %d transactions",
			len(snapshot.Users), len(snapshot.Orders), len(snapshot.Transactions))
	} else {
		for _, seed := range cfg.Accounts.Seed {
			if _, err := engine.Register(ctx, seed.Name, seed.Email, seed.Password); err != nil {
				log.Fatalf("Failed to seed account %s: %v", seed.Email, err)
			}
		}
		log.Printf("Seeded %d demo accounts", len(cfg.Accounts.Seed))
	}

	// HTTP surface
	handler := api.NewHandler(engine, snapshots)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Final snapshot so nothing since the last intent is lost.
	final, err := engine.Snapshot(shutdownCtx)
	if err == nil {
		err = snapshots.Save(shutdownCtx, final)
	}
	if err != nil {
		log.Printf("Warning: final snapshot failed: %v", err)
	}

	log.Println("Server stopped")
}
