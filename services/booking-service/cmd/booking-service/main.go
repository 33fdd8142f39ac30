package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/DesignCorporation/beauty-platform/libs/config"
	"github.com/DesignCorporation/beauty-platform/libs/db"
	"github.com/DesignCorporation/beauty-platform/libs/httpx"
	"github.com/DesignCorporation/beauty-platform/libs/otelx"
	"github.com/DesignCorporation/beauty-platform/libs/runtime"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/consumer"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/handlers"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/inbox"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/outbox"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/schedule"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8084")
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

	repo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	scheduleProvider, err := schedule.NewProvider(config.String("SCHEDULE_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("schedule provider setup failed", "err", err)
	}
	if scheduleProvider == nil {
		logger.Warn("schedule precondition checks disabled (no SCHEDULE_GRPC_ADDR)")
	}

	httpHandler := handlers.NewBookingHandler(repo, outboxRepo, logger, scheduleProvider)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{Brokers: brokers})
	go publisher.Run(ctx)

	if brokers != "" {
		cons := consumer.New(logger, inboxRepo, repo, outboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   "schedule.exception.created.v1",
		})
		go cons.Run(ctx)
	}

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/api/v1/booking/appointments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			httpHandler.Create(w, r)
		case http.MethodGet:
			httpHandler.List(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/booking/appointments/cancel", httpHandler.Cancel)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "booking")
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

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
