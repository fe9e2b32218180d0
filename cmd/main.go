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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"souschef/internal/api"
	"souschef/internal/database"
	"souschef/internal/extract"
	"souschef/internal/monitoring"
)

var (
	port        = flag.Int("port", 8080, "API server port")
	metricsPort = flag.Int("metrics-port", 9090, "Metrics server port")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize recipe store
	store, err := database.Open(config.Database.Dialect, config.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize metrics
	registry := prometheus.NewRegistry()
	monitor := monitoring.NewMonitor(registry)

	// Initialize recipe extraction, if configured
	var extractor *extract.Extractor
	if config.Extraction.Model != "" {
		models := extract.NewModelRegistry()
		model, err := models.GetModel(config.Extraction.Model)
		if err != nil {
			log.Fatalf("Failed to initialize extraction model: %v", err)
		}
		extractor = extract.NewExtractor(model)
	}

	// Initialize API server
	assistant := api.NewAssistantAPI(api.Config{
		Store:     store,
		Monitor:   monitor,
		Extractor: extractor,
		JWTSecret: config.JWTSecret,
	})

	// Start metrics server
	go startMetricsServer(*metricsPort, registry)

	// Start API server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: assistant.Router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}

		// Cancel outstanding timers before the process exits.
		for _, id := range assistant.Sessions.Sessions() {
			assistant.Sessions.Cleanup(id)
		}
	}()

	log.Printf("Starting API server on port %d", *port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("API server error: %v", err)
	}
}

// Config represents the application configuration
type Config struct {
	Database struct {
		Dialect string `yaml:"dialect"`
		DSN     string `yaml:"dsn"`
	} `yaml:"database"`
	JWTSecret  string `yaml:"jwt_secret"`
	Extraction struct {
		Model string `yaml:"model"`
	} `yaml:"extraction"`
}

func loadConfig(path string) (*Config, error) {
	config := &Config{}
	config.Database.Dialect = "sqlite3"
	config.Database.DSN = "souschef.db"

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file %s not found, using defaults", path)
			return config, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}

func startMetricsServer(port int, registry *prometheus.Registry) {
	metricsRouter := gin.Default()
	metricsRouter.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	log.Printf("Starting metrics server on port %d", port)
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Printf("Metrics server error: %v", err)
	}
}
