package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"quillvault/internal/auth"
	"quillvault/internal/chain"
	"quillvault/internal/config"
	"quillvault/internal/content"
	"quillvault/internal/handler"
	"quillvault/internal/kvstore"
	"quillvault/internal/middleware"
	"quillvault/internal/payments"
	"quillvault/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logOut := io.Writer(os.Stdout)
	if cfg.LogDir != "" {
		logFile, ferr := config.SetupLogFile(cfg.LogDir, cfg.MaxLogFiles)
		if ferr != nil {
			log.Fatalf("Failed to set up log file: %v", ferr)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"table_prefix", cfg.TablePrefix,
	)

	// Token verifier for the wallet identity provider
	verifier, err := auth.NewJWKSVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create token verifier: %v", err)
	}
	defer verifier.Close()

	ctx := context.Background()

	// Select the key-value transport
	var store kvstore.Store
	switch {
	case cfg.UseCall:
		store = kvstore.NewCallStore(cfg.OverlayURL, cfg.OverlayProtocolID)
		logger.Info("using overlay call transport", "overlay_url", cfg.OverlayURL, "protocol_id", cfg.OverlayProtocolID)
	case cfg.StoreBackend == "redis":
		redisStore, rerr := kvstore.NewRedisStore(ctx, cfg.RedisAddress)
		if rerr != nil {
			log.Fatalf("Failed to connect to redis: %v", rerr)
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info("redis connected", "address", cfg.RedisAddress)
	case cfg.StoreBackend == "postgres":
		pgStore, perr := kvstore.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.TablePrefix, logger)
		if perr != nil {
			log.Fatalf("Failed to connect to postgres: %v", perr)
		}
		defer pgStore.Close()
		store = pgStore
		logger.Info("database connected", "table_prefix", cfg.TablePrefix)
	default:
		store = kvstore.NewMemoryStore()
		logger.Warn("using in-memory store; persisted documents do not survive restarts")
	}

	// Encryption at rest is available only when a root secret is
	// configured; without it the Encrypt option has nothing to key from.
	encrypt := cfg.ContentSecret != ""
	if encrypt {
		cipher, cerr := kvstore.NewCipher([]byte(cfg.ContentSecret))
		if cerr != nil {
			log.Fatalf("Failed to derive content cipher: %v", cerr)
		}
		store = kvstore.NewEncryptedStore(store, cipher)
		logger.Info("content encryption enabled")
	}

	clock := service.NewClock()
	renderer := content.NewRenderer()
	exporter := content.NewExporter()
	receipts := payments.NewReceiptStore(cfg.ReceiptTTL)

	var broadcaster chain.Broadcaster
	if cfg.ChainBroadcastURL != "" {
		broadcaster = chain.NewHTTPBroadcaster(cfg.ChainBroadcastURL, logger)
	} else {
		broadcaster = chain.NewLoggingBroadcaster(logger)
		logger.Warn("no chain broadcast URL configured; mint requests are logged, not broadcast")
	}

	engineDefaults := service.EngineConfig{
		Topic:               cfg.DefaultTopic,
		AutoSave:            true,
		AutoSaveInterval:    cfg.AutoSaveInterval,
		EncryptContent:      encrypt,
		MaxAutoSaveVersions: cfg.MaxAutoSaveVersions,
	}

	sessions := service.NewSessionManager(store, renderer, clock, logger, cfg.SessionTTL, engineDefaults)
	docService := service.NewDocumentService(store, cfg.DefaultTopic, encrypt, sessions, receipts, broadcaster, exporter, clock, logger)

	sessionHandler := handler.NewSessionHandler(sessions, docService, logger)
	docHandler := handler.NewDocumentHandler(docService, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", docHandler.HealthCheck)

	// Editor session routes
	mux.HandleFunc("POST /api/sessions", sessionHandler.CreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", sessionHandler.GetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", sessionHandler.CloseSession)
	mux.HandleFunc("PUT /api/sessions/{id}/content", sessionHandler.UpdateContent)
	mux.HandleFunc("POST /api/sessions/{id}/save", sessionHandler.Save)
	mux.HandleFunc("POST /api/sessions/{id}/load", sessionHandler.Load)
	mux.HandleFunc("PATCH /api/sessions/{id}/config", sessionHandler.UpdateEngineConfig)

	// Save estimation
	mux.HandleFunc("POST /api/estimates", docHandler.Estimate)

	// Persisted document routes
	mux.HandleFunc("GET /api/documents", docHandler.ListDocuments)
	mux.HandleFunc("GET /api/documents/{key}", docHandler.GetDocument)
	mux.HandleFunc("DELETE /api/documents/{key}", docHandler.DeleteDocument)
	mux.HandleFunc("GET /api/documents/{key}/export", docHandler.ExportMarkdown)
	mux.HandleFunc("POST /api/documents/{key}/mint", docHandler.Mint)
	mux.HandleFunc("POST /api/documents/{key}/receipts", docHandler.RecordPayment)

	// Build middleware chain
	var root http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	root = middleware.Auth(verifier)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
