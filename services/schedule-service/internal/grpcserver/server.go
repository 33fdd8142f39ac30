//go:build protogen

package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	schedulev1 "github.com/DesignCorporation/beauty-platform/protos/gen/schedule/v1"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/slots"
	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/timeutil"
)

type server struct {
	schedulev1.UnimplementedScheduleServiceServer
	gen *slots.Generator
}

func Register(grpcServer *grpc.Server, gen *slots.Generator) {
	schedulev1.RegisterScheduleServiceServer(grpcServer, &server{gen: gen})
}

// CheckSlot answers the booking workflow's precondition: is this exact
// interval free for this staff member. Advisory only; the booking side
// re-validates inside its write transaction.
func (s *server) CheckSlot(ctx context.Context, req *schedulev1.CheckSlotRequest) (*schedulev1.CheckSlotResponse, error) {
	if req.GetTenantId() == "" || req.GetStartUtc() == nil {
		return nil, status.Error(codes.InvalidArgument, "tenant_id and start_utc are required")
	}
	duration := int(req.GetDurationMinutes())
	if duration < slots.MinDurationMinutes || duration > slots.MaxDurationMinutes {
		return nil, status.Error(codes.InvalidArgument, "duration_minutes out of range")
	}

	startUTC := req.GetStartUtc().AsTime()

	// The day is resolved in the tenant's local calendar, so the request
	// date comes from the instant itself once the timezone is known.
	day, err := s.resolveDayFor(ctx, req.GetTenantId(), req.GetStaffId(), startUTC, duration, int(req.GetBufferMinutes()))
	if err != nil {
		return nil, err
	}

	free, reason := day.CheckInterval(startUTC, duration)
	return &schedulev1.CheckSlotResponse{
		Free:   free,
		Reason: string(reason),
	}, nil
}

func (s *server) GetDaySlots(ctx context.Context, req *schedulev1.GetDaySlotsRequest) (*schedulev1.GetDaySlotsResponse, error) {
	if req.GetTenantId() == "" {
		return nil, status.Error(codes.InvalidArgument, "tenant_id is required")
	}
	date, err := timeutil.ParseDate(req.GetDate())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}

	day, err := s.gen.Resolve(ctx, slots.Request{
		TenantID:        req.GetTenantId(),
		Date:            date,
		StaffID:         req.GetStaffId(),
		DurationMinutes: int(req.GetDurationMinutes()),
		BufferMinutes:   int(req.GetBufferMinutes()),
	})
	if err != nil {
		return nil, mapResolveError(err)
	}

	resp := &schedulev1.GetDaySlotsResponse{
		Date:     date.String(),
		Timezone: day.Timezone,
	}
	for slot := range day.Slots() {
		resp.Slots = append(resp.Slots, &schedulev1.Slot{
			StartLocal:        slot.StartLocal,
			EndLocal:          slot.EndLocal,
			StartUtc:          timestamppb.New(slot.StartUTC),
			EndUtc:            timestamppb.New(slot.EndUTC),
			Available:         slot.Available,
			UnavailableReason: string(slot.Reason),
		})
	}
	return resp, nil
}

func (s *server) resolveDayFor(ctx context.Context, tenantID, staffID string, startUTC time.Time, duration, buffer int) (*slots.DaySchedule, error) {
	// Resolve twice only when the timezone is unknown: the first pass uses
	// the UTC date, the second corrects it if the local calendar differs.
	date := timeutil.Date{Year: startUTC.Year(), Month: startUTC.Month(), Day: startUTC.Day()}
	day, err := s.gen.Resolve(ctx, slots.Request{
		TenantID:        tenantID,
		Date:            date,
		StaffID:         staffID,
		DurationMinutes: duration,
		BufferMinutes:   buffer,
	})
	if err != nil {
		return nil, mapResolveError(err)
	}

	loc, err := time.LoadLocation(day.Timezone)
	if err != nil {
		return nil, status.Error(codes.Internal, "tenant timezone is invalid")
	}
	local := startUTC.In(loc)
	localDate := timeutil.Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
	if localDate == date {
		return day, nil
	}

	day, err = s.gen.Resolve(ctx, slots.Request{
		TenantID:        tenantID,
		Date:            localDate,
		StaffID:         staffID,
		DurationMinutes: duration,
		BufferMinutes:   buffer,
	})
	if err != nil {
		return nil, mapResolveError(err)
	}
	return day, nil
}

func mapResolveError(err error) error {
	switch err {
	case slots.ErrDurationOutOfRange, slots.ErrBufferOutOfRange:
		return status.Error(codes.InvalidArgument, err.Error())
	case slots.ErrBadTimezone:
		return status.Error(codes.Internal, err.Error())
	}
	return status.Error(codes.Internal, "failed to compute availability")
}
