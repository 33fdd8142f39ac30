package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/DesignCorporation/beauty-platform/libs/config"
	"github.com/DesignCorporation/beauty-platform/libs/db"
	"github.com/DesignCorporation/beauty-platform/libs/httpx"
	"github.com/DesignCorporation/beauty-platform/libs/otelx"
	"github.com/DesignCorporation/beauty-platform/libs/runtime"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/cache"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/handlers"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/outbox"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/slots"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "schedule-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
	}

	repo := storage.NewRepository(pool)
	tzCache := cache.NewTimezoneCache(rdb, repo, logger)
	gen := slots.NewGenerator(repo, tzCache)
	outboxRepo := outbox.NewRepository(pool)
	httpHandler := handlers.New(repo, gen, outboxRepo, logger)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers: config.String("KAFKA_BROKERS", ""),
	})
	go publisher.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/api/v1/schedule/available-slots", httpHandler.AvailableSlots)
	mux.HandleFunc("/api/v1/schedule/working-hours", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListWorkingHours(w, r)
		case http.MethodPut:
			httpHandler.UpsertWorkingHours(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/schedule/exceptions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			httpHandler.CreateException(w, r)
		case http.MethodGet:
			httpHandler.ListExceptions(w, r)
		case http.MethodDelete:
			httpHandler.DeleteException(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "schedule")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	if err := startGrpcServer(ctx, logger, gen); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
