package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/taskops/assignbot/config"
	"github.com/taskops/assignbot/internal/api"
	"github.com/taskops/assignbot/internal/db"
	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/server"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", "config.json", "Path to configuration file")
	createConfig := flag.Bool("init", false, "Create a default configuration file if it doesn't exist")
	addr := flag.String("addr", ":8080", "Address for the HTTP server to listen on")
	flag.Parse()

	// Create default configuration if requested
	if *createConfig {
		if err := config.CreateDefaultConfig(*configPath); err != nil {
			log.Fatalf("Failed to create default configuration: %v", err)
		}
		log.Printf("Created default configuration at %s", *configPath)
		fmt.Printf("GitHub token can be provided via the %s environment variable\n", config.EnvGithubToken)
		return
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Env)

	// Initialize wallet database
	wallets, err := db.New(cfg.WalletDBPath)
	if err != nil {
		log.Fatalf("Failed to connect to wallet database: %v", err)
	}
	defer wallets.Close()

	if err := wallets.Initialize(); err != nil {
		log.Fatalf("Failed to initialize wallet database: %v", err)
	}

	// Initialize GitHub clients and the XP service client
	gh := api.NewGitHubClient(cfg.GitHubToken)
	pulls := api.NewGraphQLClient(cfg.GitHubToken)
	xp := api.NewXPClient(cfg.XPServiceURL, logger)

	engine, err := server.NewEngine(cfg, gh, pulls, xp, wallets, logger)
	if err != nil {
		log.Fatalf("Failed to build the engine: %v", err)
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      server.New(engine, cfg, logger).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting server", "addr", *addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
