package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/biblink/biblink/pkg/protocol"
	"github.com/biblink/biblink/pkg/server"
	"github.com/biblink/biblink/pkg/store"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	// Configure logger with microsecond precision
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	// Command line flags
	configPath := flag.String("config", "~/.biblink/config.toml", "Path to config file")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("BibLink Server %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found)
	tomlConfig, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config := tomlConfig.ToConfig()

	// Command-line flags override config file
	if *port != 0 {
		config.Port = *port
	}
	if *dbPath != "" {
		config.DatabasePath = *dbPath
	}

	finalDBPath, err := config.GetDatabasePath()
	if err != nil {
		log.Fatalf("Failed to resolve database path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(finalDBPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	citations, err := store.Open(finalDBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer citations.Close()

	srv := server.NewServer(config)
	srv.SetMetrics(server.NewMetrics())
	srv.SetCitationStore(citations)

	if *debug {
		server.EnableDebugLogging()
		log.Printf("Debug logging enabled")
	}

	log.Printf("Config: %s", *configPath)
	log.Printf("Database: %s", finalDBPath)

	if !srv.Start() {
		log.Fatalf("Failed to start server on port %d", config.Port)
	}

	log.Printf("BibLink server %s started successfully", Version)
	log.Printf("Port: %d (ws://localhost:%d/)", config.Port, config.Port)
	log.Printf("Metrics: http://localhost:%d/metrics", config.Port)

	// Read stdin until "quit"; every other line is broadcast to all
	// connected clients as an informational message.
	stdinDone := make(chan struct{})
	go func() {
		defer close(stdinDone)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "quit" {
				return
			}
			if line == "" {
				continue
			}
			srv.Broadcast(protocol.ActionInfoMessage, protocol.InfoMessagePayload{
				MessageType: "info",
				Message:     line,
			})
		}
	}()

	// Wait for "quit" or an interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stdinDone:
		log.Println("Quit requested")
	case sig := <-sigChan:
		log.Printf("Received signal %v", sig)
	}

	log.Println("Shutting down server...")
	if !srv.Stop() {
		log.Println("Server was not running")
	}
	log.Println("Server stopped")
}
