// Package webhook reconciles asynchronous provider events against call
// records: out-of-order and duplicated deliveries must collapse into
// exactly one effective terminal update per call.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"callboard/internal/calls"
	"callboard/internal/scoring"
)

// Reconciler applies provider events to the store.
//
// Delivery is at-least-once, so every mutation here must be idempotent:
// a record's Processed flag flips false -> true exactly once, and the
// terminal fields reflect the first successfully applied end-of-call
// report. Unmatched, malformed, and duplicate events are discarded (and
// logged) — the HTTP layer acknowledges them regardless, so the sender's
// retry policy is never triggered by internal outcomes.
type Reconciler struct {
	store  calls.Store
	scorer scoring.Scorer
	log    *slog.Logger

	// locks serializes event application per call id. The terminal
	// check-then-set spans the scorer's network call, so the store
	// mutex alone cannot make it atomic.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewReconciler(store calls.Store, scorer scoring.Scorer, log *slog.Logger) *Reconciler {
	if scorer == nil {
		scorer = scoring.Disabled{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:  store,
		scorer: scorer,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
}

// HandleEvent applies one provider event. It never returns an error:
// webhook processing must not surface failures to the sender.
func (r *Reconciler) HandleEvent(ctx context.Context, ev Event) {
	callID := ev.Message.Call.ID
	kind := ev.Message.Type
	if callID == "" || kind == "" {
		r.log.Warn("webhook event discarded: missing call id or type",
			"call_id", callID, "type", kind)
		return
	}

	lock := r.lockFor(callID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := r.store.FindByID(callID)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			// The call may predate this process or belong elsewhere.
			r.log.Warn("webhook event discarded: unknown call", "call_id", callID, "type", kind)
		} else {
			r.log.Error("webhook lookup failed", "call_id", callID, "err", err)
		}
		return
	}

	switch kind {
	case TypeStatusUpdate:
		r.applyStatusUpdate(rec, ev.Message)
	case TypeEndOfCallReport:
		r.applyEndOfCallReport(ctx, rec, ev.Message)
	default:
		r.log.Warn("webhook event discarded: unknown type", "call_id", callID, "type", kind)
	}
}

// applyStatusUpdate moves the lifecycle status forward. Terminal state
// is sticky: late or duplicated non-terminal updates are discarded.
func (r *Reconciler) applyStatusUpdate(rec calls.Call, msg Message) {
	if rec.Processed || rec.Status.IsTerminal() {
		r.log.Info("status update discarded: call already terminal",
			"call_id", rec.ID, "status", msg.Status)
		return
	}

	status, ok := calls.ParseStatus(msg.Status)
	if !ok {
		if msg.Status != "" {
			r.log.Warn("status update discarded: unknown status",
				"call_id", rec.ID, "status", msg.Status)
		}
		return
	}

	err := r.store.Update(rec.ID, func(c *calls.Call) error {
		c.Status = status
		return nil
	})
	if err != nil {
		r.log.Error("status update failed", "call_id", rec.ID, "err", err)
		return
	}
	r.log.Info("call status updated", "call_id", rec.ID, "status", status)
}

// applyEndOfCallReport performs the single effective terminal transition:
// copy the report fields, score the transcript, then commit everything —
// including Processed — as one atomic store update. A crash before the
// commit leaves Processed false, so the provider's redelivery repairs it.
func (r *Reconciler) applyEndOfCallReport(ctx context.Context, rec calls.Call, msg Message) {
	if rec.Processed {
		r.log.Info("end-of-call report discarded: already processed", "call_id", rec.ID)
		return
	}

	duration := rec.DurationSeconds
	if msg.DurationSeconds != nil {
		duration = int(math.Round(*msg.DurationSeconds))
	}
	cost := rec.Cost
	if msg.Cost != nil {
		cost = *msg.Cost
	}
	recordingURL := rec.RecordingURL
	if msg.RecordingURL != nil {
		recordingURL = *msg.RecordingURL
	}
	transcript := rec.Transcript
	if msg.Transcript != nil {
		transcript = *msg.Transcript
	}

	// Scoring happens before the commit and must not block it: a failed
	// or misbehaving evaluator degrades to score 0.
	score := rec.Score
	if transcript != "" {
		s, err := r.scorer.Score(ctx, transcript)
		if err != nil {
			r.log.Warn("transcript scoring failed, using fallback score",
				"call_id", rec.ID, "err", err)
			s = 0
		}
		score = s
	}

	err := r.store.Update(rec.ID, func(c *calls.Call) error {
		c.Status = calls.StatusCompleted
		c.DurationSeconds = duration
		c.Cost = cost
		c.RecordingURL = recordingURL
		c.Transcript = transcript
		c.Score = score
		c.Processed = true
		return nil
	})
	if err != nil {
		r.log.Error("end-of-call commit failed", "call_id", rec.ID, "err", err)
		return
	}
	r.log.Info("call reconciled", "call_id", rec.ID, "duration_s", duration, "score", score)
}

func (r *Reconciler) lockFor(callID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[callID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[callID] = lock
	}
	return lock
}
