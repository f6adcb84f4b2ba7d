// Package reporting computes dashboard summary statistics.
package reporting

import (
	"context"
	"errors"
	"fmt"

	"callboard/internal/calls"
)

// Summary is the aggregate view shown at the top of the dashboard.
type Summary struct {
	TotalCalls     int `json:"totalCalls"`
	CompletedCalls int `json:"completedCalls"`
	FailedCalls    int `json:"failedCalls"`

	// SuccessRate is completed/total as a percentage with two decimals,
	// e.g. "33.33%". An empty store reports "0.00%".
	SuccessRate string `json:"successRate"`
}

type Service struct {
	store calls.Store
}

func NewService(store calls.Store) *Service { return &Service{store: store} }

// Summarize aggregates over a snapshot of the store. Pure read; the
// snapshot semantics of Store.All keep it consistent under concurrent
// webhook processing.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	if s == nil || s.store == nil {
		return Summary{}, errors.New("reporting: store not configured")
	}

	out := Summary{}
	for c := range s.store.All() {
		out.TotalCalls++
		switch c.Status {
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		}
	}
	out.SuccessRate = formatRate(out.CompletedCalls, out.TotalCalls)
	return out, nil
}

func formatRate(completed, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(completed)/float64(total)*100)
}
