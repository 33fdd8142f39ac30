//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/slots"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *slots.Generator) error {
	return nil
}
