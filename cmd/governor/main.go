// Command governor runs the governance control plane: it wires the ledger,
// identity registry, policy evaluator, tiered-autonomy gate, sandbox
// executor, and evidence pipeline behind an HTTP API (spec §4.7, §6).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/latticeguard/governor/pkg/api"
	"github.com/latticeguard/governor/pkg/autonomy"
	"github.com/latticeguard/governor/pkg/config"
	"github.com/latticeguard/governor/pkg/database"
	"github.com/latticeguard/governor/pkg/gateway"
	"github.com/latticeguard/governor/pkg/identity"
	"github.com/latticeguard/governor/pkg/ledger"
	"github.com/latticeguard/governor/pkg/sandbox"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	gwCfg, err := config.LoadGatewayConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load gateway config: %v", err)
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL database, migrations applied")

	store := ledger.NewStore(dbClient.DB())

	identities, err := identity.NewRegistry(gwCfg.IdentityDocumentPath)
	if err != nil {
		log.Fatalf("Failed to load identity document: %v", err)
	}
	log.Printf("Loaded identity document from %s", gwCfg.IdentityDocumentPath)

	sandboxExec := sandbox.NewExecutor(sandbox.Config{
		Image:          gwCfg.Sandbox.Image,
		MemoryLimit:    gwCfg.Sandbox.MemoryLimit,
		CPULimit:       gwCfg.Sandbox.CPULimit,
		TimeoutSeconds: gwCfg.Sandbox.TimeoutSeconds,
		NetworkMode:    gwCfg.Sandbox.NetworkMode,
	})
	if !sandboxExec.IsAvailable() {
		log.Println("Warning: container runtime not reachable — execute will return 503 until it is")
	}

	timeouts := autonomy.Timeouts{
		InitialTimeout: gwCfg.EscalationInitialTimeout,
		HardDeadline:   gwCfg.EscalationMaxTimeout,
	}

	sweeper := autonomy.NewSweeper(store, timeouts, gwCfg.SweepInterval, gwCfg.PolicyVersion)
	sweeper.Start(ctx)
	log.Printf("Escalation sweeper started (interval=%s)", gwCfg.SweepInterval)

	gw := gateway.New(store, identities, sandboxExec, gwCfg.PolicyVersion, gwCfg.ApprovalTTL, timeouts, sandbox.Config{
		Image:          gwCfg.Sandbox.Image,
		MemoryLimit:    gwCfg.Sandbox.MemoryLimit,
		CPULimit:       gwCfg.Sandbox.CPULimit,
		TimeoutSeconds: gwCfg.Sandbox.TimeoutSeconds,
		NetworkMode:    gwCfg.Sandbox.NetworkMode,
	})

	server := api.NewServer(gw, identities, dbClient, sandboxExec)

	addr := ":" + gwCfg.HTTPPort
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.Start(addr); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, draining in-flight requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during HTTP shutdown: %v", err)
	}

	sweeper.Stop()
	log.Println("Shutdown complete")
}
