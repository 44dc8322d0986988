package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/swapflow-hq/swapflow/api/clients/bridgeapi"
	"github.com/swapflow-hq/swapflow/api/clients/evm"
	"github.com/swapflow-hq/swapflow/api/cmd/swapflow/httpjson"
	"github.com/swapflow-hq/swapflow/api/config"
	"github.com/swapflow-hq/swapflow/api/db"
	"github.com/swapflow-hq/swapflow/api/fanout"
	"github.com/swapflow-hq/swapflow/api/http"
	"github.com/swapflow-hq/swapflow/api/logging"
	"github.com/swapflow-hq/swapflow/api/models"
	"github.com/swapflow-hq/swapflow/api/services"
)

func main() {
	flags := parseFlags()
	log := logging.New(os.Stdout, flags.LogLevel, flags.LogJSON)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	log.Info().Msg("Initializing database connection")
	database, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Msg("Database connection established successfully")

	// Initialize Ethereum clients
	clients, err := evm.ResolveClientsFromConfig(ctx, *cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Ethereum clients")
	}

	decoder, err := models.NewEventDecoder(config.WatcherEventsABI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build event decoder")
	}

	metricsService := services.NewMetricsService()

	hub := fanout.NewHub(database, cfg.MaxSubscribersPerIntent, cfg.MaxSubscribersPerProcess, metricsService, log)

	// Cross-chain message tracker with the external status API plus a
	// destination-chain receipt fallback.
	chainClients := make(map[uint64]services.EthClient, len(clients))
	for chainID, client := range clients {
		chainClients[chainID] = client
	}
	resolver := services.NewSimpleClientResolver(chainClients)

	bridge := bridgeapi.New(cfg.BridgeAPIURL, cfg.BridgeAPITimeout)

	tracker := services.NewMessageTracker(
		database,
		bridge,
		resolver,
		decoder,
		cfg.ChainConfigs,
		hub,
		metricsService,
		cfg.TrackerInterval,
		cfg.TrackerTTL,
		log,
	)
	go tracker.Start(ctx)

	// One watcher per configured chain
	watchers := make([]*services.ChainWatcher, 0, len(cfg.ChainConfigs))
	for chainID, chain := range cfg.ChainConfigs {
		watcher := services.NewChainWatcher(
			chain,
			clients[chainID],
			database,
			decoder,
			hub,
			tracker,
			metricsService,
			log,
		)
		watchers = append(watchers, watcher)
		go watcher.Start(ctx)
	}

	stalePoller, err := services.NewStalePoller(
		database,
		hub,
		hub,
		metricsService,
		cfg.StaleSweepSpec,
		cfg.StaleThreshold,
		cfg.StaleBatchSize,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stale intent poller")
	}
	stalePoller.Start()

	// Create and start the server
	server := httpjson.New(httpjson.Config{
		Addr:           fmt.Sprintf(":%s", cfg.Port),
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
		LogRequests:    true,
		Dependencies: httpjson.Dependencies{
			Database:     database,
			Hub:          hub,
			Tracker:      tracker,
			Metrics:      metricsService,
			ChainConfigs: cfg.ChainConfigs,
		},
	})

	serverShutdown := http.StartAsync(server, cfg.ShutdownTimeout, log)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("Shutdown signal received, cleaning up services...")

	// Stop accepting new connections first, then the periodic tasks, then
	// drop live subscriber connections.
	serverShutdown(context.Background())
	for _, watcher := range watchers {
		watcher.Stop()
	}
	cancel()
	stalePoller.Stop()
	hub.Close()

	log.Info().Msg("All services shut down successfully")
}

type flagSet struct {
	LogJSON  bool
	LogLevel zerolog.Level
}

func parseFlags() flagSet {
	var (
		logJSON        bool
		logLevel       string
		logLevelParsed zerolog.Level
	)

	flag.BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")
	flag.StringVar(&logLevel, "log-level", "info", "Set log level (debug, info, warn, error)")

	flag.Parse()

	switch logLevel {
	case "debug":
		logLevelParsed = zerolog.DebugLevel
	case "warn":
		logLevelParsed = zerolog.WarnLevel
	case "error":
		logLevelParsed = zerolog.ErrorLevel
	default:
		logLevelParsed = zerolog.InfoLevel
	}

	return flagSet{
		LogJSON:  logJSON,
		LogLevel: logLevelParsed,
	}
}
