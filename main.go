package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Areen-09/legal-doc-demystifier/config"
	"github.com/Areen-09/legal-doc-demystifier/handler"
	"github.com/Areen-09/legal-doc-demystifier/ingest"
	"github.com/Areen-09/legal-doc-demystifier/middleware"
	"github.com/Areen-09/legal-doc-demystifier/pkg/logger"
	"github.com/Areen-09/legal-doc-demystifier/service"
	"github.com/Areen-09/legal-doc-demystifier/viewer"
	"github.com/gin-gonic/gin"
)

// documentStore is the metadata-record capability
type documentStore interface {
	ingest.RecordWriter
	handler.RecordReader
	viewer.RecordSubscriber
}

// blobStore is the binary-transfer capability
type blobStore interface {
	ingest.Transferer
	viewer.URLResolver
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.Info("configuration loaded successfully", "store", cfg.Store.Backend, "storage", cfg.Storage.Backend)

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, &cfg.Store)
	if err != nil {
		slog.Error("failed to initialize document store", "error", err)
		os.Exit(1)
	}
	defer closeStore.Close()

	blobs, closeBlobs, err := openStorage(ctx, &cfg.Storage)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer closeBlobs.Close()

	analysis := service.NewAnalysisService(&cfg.Analysis)
	identity := middleware.ContextIdentity{}

	orchestrator := ingest.NewOrchestrator(store, blobs, analysis, identity, ingest.Options{
		TransferTimeout: cfg.Upload.TransferTimeout(),
		MaxBytes:        cfg.Upload.MaxBytes(),
	})
	controller := viewer.NewController(store, blobs, identity)

	authHandler := handler.NewAuthHandler()
	documentHandler := handler.NewDocumentHandler(store, orchestrator, controller, analysis, cfg.Upload.MaxBytes())
	callbackHandler := handler.NewCallbackHandler(analysis, store)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSOrigin))
	router.Use(noCacheMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/analysis/callback", middleware.RateLimit(cfg.Server.RequestsPerMinute, time.Minute), callbackHandler.HandleCallback)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	protected.Use(middleware.RateLimit(cfg.Server.RequestsPerMinute, time.Minute))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/documents", documentHandler.Upload)
		protected.GET("/documents", documentHandler.List)
		protected.GET("/documents/:id", documentHandler.Get)
		protected.GET("/documents/:id/view", documentHandler.View)
		protected.GET("/documents/:id/highlights", documentHandler.Highlights)
		protected.GET("/documents/:id/content", documentHandler.Content)
		protected.POST("/documents/:id/chat", documentHandler.Chat)
		protected.DELETE("/documents/:id/chat", documentHandler.EndChat)
	}

	// view streams end when the server shuts down
	baseCtx, stopStreams := context.WithCancel(context.Background())

	// no WriteTimeout: uploads and view streams are long-lived
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(stopStreams)

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited gracefully")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, cfg *config.StoreConfig) (documentStore, io.Closer, error) {
	switch cfg.Backend {
	case "redis":
		store, err := service.NewRedisStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return store, store, nil
	case "memory":
		return service.NewMemoryStore(cfg), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func openStorage(ctx context.Context, cfg *config.StorageConfig) (blobStore, io.Closer, error) {
	switch cfg.Backend {
	case "gcs":
		gcs, err := service.NewGCSService(ctx, &cfg.GCS)
		if err != nil {
			return nil, nil, err
		}
		return gcs, gcs, nil
	case "minio":
		minioSvc, err := service.NewMinioService(&cfg.Minio)
		if err != nil {
			return nil, nil, err
		}
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure bucket: %w", err)
		}
		return minioSvc, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// noCacheMiddleware keeps intermediaries from caching per-user API responses
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
