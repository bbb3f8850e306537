package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"EchoFM/cache"
	"EchoFM/catalog"
	"EchoFM/config"
	"EchoFM/core/audio"
	"EchoFM/core/ingest"
	"EchoFM/db"
	"EchoFM/logger"
	"EchoFM/repository"
	"EchoFM/storage"
)

// Start initializes all services and runs the HTTP server until SIGINT or
// SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	rootCtx, stopWatcher := context.WithCancel(context.Background())
	defer stopWatcher()

	// Blob store: object storage when configured, local disk otherwise.
	var blobs storage.Store
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg)
		if err != nil {
			logger.Fatal("failed to initialize object storage", logger.ErrorField(err))
		}
		blobs = minioStore
		logger.Info("using object storage",
			logger.String("endpoint", cfg.MinioEndpoint),
			logger.String("bucket", cfg.MinioBucket))
	} else {
		fsStore, err := storage.NewFSStore(cfg.MediaDir)
		if err != nil {
			logger.Fatal("failed to initialize media directory", logger.ErrorField(err))
		}
		blobs = fsStore
		logger.Info("using filesystem storage", logger.String("dir", fsStore.Dir()))
	}

	// Durable catalog rows keep moderation state across restarts.
	var stateStore catalog.StateStore
	if cfg.DBName != "" {
		if err := db.ConnectDB(cfg); err != nil {
			logger.Fatal("failed to connect to database", logger.ErrorField(err))
		}
		defer db.CloseDB()
		if err := db.InitDB(); err != nil {
			logger.Fatal("failed to initialize database", logger.ErrorField(err))
		}
		stateStore = repository.NewMySQLCatalogStore(db.DB)
	} else {
		logger.Warn("catalog persistence disabled, moderation state will not survive restarts")
	}

	registry := catalog.NewRegistry(stateStore)
	loaded, dropped, err := registry.Load(rootCtx, blobs)
	if err != nil {
		logger.Fatal("failed to load catalog", logger.ErrorField(err))
	}
	if loaded > 0 || dropped > 0 {
		logger.Info("catalog restored",
			logger.Int("loaded", loaded),
			logger.Int("droppedOrphans", dropped))
	}

	moderator := catalog.NewModerator(registry, blobs)
	converter := audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.ConvertTimeout)
	ingestSvc := ingest.NewService(blobs, registry, converter, cfg.MaxUploadBytes)

	// Like/play counters are optional product telemetry.
	var stats *cache.Stats
	if cfg.RedisHost != "" {
		if err := db.ConnectRedis(cfg); err != nil {
			logger.Warn("stats disabled, Redis unreachable", logger.ErrorField(err))
		} else {
			defer db.CloseRedis()
			stats = cache.NewStats(db.RedisClient)
			logger.Info("stats enabled", logger.String("redis", cfg.RedisHost))
		}
	}

	if fsStore, ok := blobs.(*storage.FSStore); ok {
		if err := StartBlobWatcher(rootCtx, fsStore.Dir(), registry); err != nil {
			logger.Warn("blob watcher unavailable", logger.ErrorField(err))
		}
	}

	apiHandler := NewAPIHandler(ingestSvc, registry, moderator, blobs, stats, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	apiHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
		// Generous read/write deadlines: uploads and full-track streams can
		// legitimately take minutes on slow links.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")
	stopWatcher()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range, X-Admin-Token")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
