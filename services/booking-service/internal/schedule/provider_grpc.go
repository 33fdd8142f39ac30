//go:build protogen

package schedule

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/DesignCorporation/beauty-platform/libs/grpcx"
	schedulev1 "github.com/DesignCorporation/beauty-platform/protos/gen/schedule/v1"
)

// Verdict is the availability answer for one exact interval.
type Verdict struct {
	Free   bool
	Reason string
}

type Provider interface {
	CheckSlot(ctx context.Context, tenantID, staffID string, startUTC time.Time, durationMinutes, bufferMinutes int) (Verdict, error)
}

type grpcProvider struct {
	client schedulev1.ScheduleServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: schedulev1.NewScheduleServiceClient(conn)}, nil
}

func (p *grpcProvider) CheckSlot(ctx context.Context, tenantID, staffID string, startUTC time.Time, durationMinutes, bufferMinutes int) (Verdict, error) {
	resp, err := p.client.CheckSlot(ctx, &schedulev1.CheckSlotRequest{
		TenantId:        tenantID,
		StaffId:         staffID,
		StartUtc:        timestamppb.New(startUTC),
		DurationMinutes: int32(durationMinutes),
		BufferMinutes:   int32(bufferMinutes),
	})
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Free: resp.GetFree(), Reason: resp.GetReason()}, nil
}
