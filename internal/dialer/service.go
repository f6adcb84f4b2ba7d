// Package dialer starts outbound calls and seeds their records.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callboard/internal/calls"
	"callboard/internal/ratelimit"
	"callboard/internal/vapi"
)

var ErrInvalidArgument = errors.New("dialer: invalid argument")

// dialKey groups all dials under one provider rate budget.
const dialKey = "vapi"

// CallPlacer is the outbound call-placement port.
type CallPlacer interface {
	CreateCall(ctx context.Context, number string) (vapi.CallHandle, error)
}

// Service creates call records on provider acceptance.
//
// Invariant: exactly one store insertion per accepted call; a provider
// rejection inserts nothing.
type Service struct {
	placer  CallPlacer
	store   calls.Store
	limiter ratelimit.Limiter

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(placer CallPlacer, store calls.Store, limiter ratelimit.Limiter) *Service {
	return &Service{placer: placer, store: store, limiter: limiter, clock: time.Now}
}

// StartCall places one outbound call and records it in queued state
// (or the provider-reported initial status). The provider's raw response
// is returned for pass-through to the API caller.
func (s *Service) StartCall(ctx context.Context, number string) (vapi.CallHandle, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return vapi.CallHandle{}, fmt.Errorf("%w: phone number is required", ErrInvalidArgument)
	}

	handle, err := s.placer.CreateCall(ctx, number)
	if err != nil {
		return vapi.CallHandle{}, err
	}

	status := calls.StatusQueued
	if parsed, ok := calls.ParseStatus(handle.Status); ok {
		status = parsed
	}

	record := calls.Call{
		ID:        handle.ID,
		Number:    number,
		Status:    status,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.Insert(record); err != nil {
		// Provider ids are unique, so a duplicate here is a defect in
		// this process, not a provider retry.
		return vapi.CallHandle{}, fmt.Errorf("dialer: record insert for call %s: %w", handle.ID, err)
	}
	return handle, nil
}

// BatchItem is the per-number outcome of a batch dial.
type BatchItem struct {
	Number string `json:"number"`
	CallID string `json:"call_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StartBatch fans out over the numbers sequentially, pacing dials through
// the rate limiter. One failed dial does not abort the batch; context
// cancellation does.
func (s *Service) StartBatch(ctx context.Context, numbers []string) ([]BatchItem, error) {
	if len(numbers) == 0 {
		return nil, fmt.Errorf("%w: at least one phone number is required", ErrInvalidArgument)
	}

	items := make([]BatchItem, 0, len(numbers))
	for _, number := range numbers {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		item := BatchItem{Number: strings.TrimSpace(number)}

		if err := s.limiter.Wait(ctx, dialKey); err != nil {
			item.Error = err.Error()
			items = append(items, item)
			if ctx.Err() != nil {
				return items, ctx.Err()
			}
			continue
		}

		handle, err := s.StartCall(ctx, number)
		if err != nil {
			item.Error = err.Error()
		} else {
			item.CallID = handle.ID
		}
		items = append(items, item)
	}
	return items, nil
}
