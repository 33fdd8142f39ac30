//go:build !protogen

package schedule

import (
	"context"
	"time"
)

// Verdict is the availability answer for one exact interval.
type Verdict struct {
	Free   bool
	Reason string
}

type Provider interface {
	CheckSlot(ctx context.Context, tenantID, staffID string, startUTC time.Time, durationMinutes, bufferMinutes int) (Verdict, error)
}

func NewProvider(_ string) (Provider, error) {
	return nil, nil
}
