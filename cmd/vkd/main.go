package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mlicam/vibe-kanban/internal/daemon"
	"github.com/mlicam/vibe-kanban/internal/paths"
	"github.com/mlicam/vibe-kanban/internal/settings"
	"github.com/mlicam/vibe-kanban/internal/storage"
	"github.com/mlicam/vibe-kanban/internal/version"
)

func main() {
	// Handle version command before anything else (for CI testing)
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("vkd %s\n", version.Version)
		return
	}

	var (
		dbPath     = flag.String("db", storage.DefaultDBPath(), "path to sqlite database")
		configPath = flag.String("config", paths.ConfigPath(), "path to settings file")
		addr       = flag.String("addr", "127.0.0.1:0", "server address (port 0 picks a free port)")
	)
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting vkd...")

	db, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	log.Printf("Database: %s", *dbPath)

	store := settings.NewStore(*configPath)
	server := daemon.NewServer(db, store, *addr, version.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals and client shutdown requests
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal %v, shutting down...", sig)
		case <-server.ShutdownRequested():
			log.Println("Shutdown requested via API, shutting down...")
		}
		if err := server.Stop(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		os.Exit(0)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
