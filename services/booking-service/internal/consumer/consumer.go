// Package consumer reacts to schedule changes: when a closure exception is
// created, appointments that fall inside it are flagged for rescheduling so
// the salon can reach out to affected clients.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DesignCorporation/beauty-platform/libs/kafkax"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/inbox"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/outbox"
	"github.com/DesignCorporation/beauty-platform/services/booking-service/internal/storage"
)

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	inbox  *inbox.Repository
	repo   *storage.BookingRepository
	outbox *outbox.Repository
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, repo *storage.BookingRepository, outboxRepo *outbox.Repository, cfg Config) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader: reader,
		logger: logger,
		inbox:  inboxRepo,
		repo:   repo,
		outbox: outboxRepo,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.handleExceptionCreated(ctxSpan, msg); err != nil {
			c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}
		span.End()
	}
}

type exceptionCreatedPayload struct {
	ExceptionID string `json:"exceptionId"`
	TenantID    string `json:"tenantId"`
	Scope       string `json:"scope"`
	StaffID     string `json:"staffId"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Type        string `json:"type"`
}

func (c *Consumer) handleExceptionCreated(ctx context.Context, msg kafka.Message) error {
	var payload exceptionCreatedPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return err
	}

	// CUSTOM_HOURS may still leave appointments valid; only hard closures
	// flag affected bookings.
	if payload.Type != "DAY_OFF" && payload.Type != "SICK_LEAVE" {
		return nil
	}

	// Exception ranges live at UTC-day granularity.
	start, err := time.Parse("2006-01-02", payload.StartDate)
	if err != nil {
		return err
	}
	end, err := time.Parse("2006-01-02", payload.EndDate)
	if err != nil {
		return err
	}
	end = end.AddDate(0, 0, 1)

	staffID := ""
	if payload.Scope == "STAFF" {
		staffID = payload.StaffID
	}

	flagged, err := c.repo.FlagNeedsReschedule(ctx, payload.TenantID, staffID, start, end)
	if err != nil {
		return err
	}
	if len(flagged) == 0 {
		return nil
	}
	c.logger.Info("appointments flagged for reschedule",
		"tenant", payload.TenantID,
		"exception", payload.ExceptionID,
		"count", len(flagged))

	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, id := range flagged {
		body, err := json.Marshal(map[string]any{
			"appointmentId": id,
			"tenantId":      payload.TenantID,
			"exceptionId":   payload.ExceptionID,
		})
		if err != nil {
			return err
		}
		if err := c.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   id,
			EventType:     outbox.TopicAppointmentFlagged,
			Payload:       body,
		}); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
