package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"callboard/internal/calls"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

type countingScorer struct {
	calls atomic.Int64
	score int
	err   error
	delay time.Duration
}

func (s *countingScorer) Score(ctx context.Context, transcript string) (int, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.score, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStoreWithCall(t *testing.T, id string) *calls.MemoryStore {
	t.Helper()
	store := calls.NewMemoryStore()
	err := store.Insert(calls.Call{
		ID:        id,
		Number:    "+15550001111",
		Status:    calls.StatusQueued,
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return store
}

func endOfCallEvent(id string) Event {
	return Event{Message: Message{
		Type:            TypeEndOfCallReport,
		Call:            CallRef{ID: id},
		DurationSeconds: f64(42),
		Cost:            f64(0.37),
		RecordingURL:    str("https://recordings.example/c1.wav"),
		Transcript:      str("hello"),
	}}
}

func TestEndOfCallReportAppliesOnce(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	scorer := &countingScorer{score: 88}
	r := NewReconciler(store, scorer, quietLogger())

	r.HandleEvent(context.Background(), endOfCallEvent("c1"))

	rec, _ := store.FindByID("c1")
	if rec.Status != calls.StatusCompleted || !rec.Processed {
		t.Fatalf("terminal transition not applied: %+v", rec)
	}
	if rec.DurationSeconds != 42 || rec.Cost != 0.37 {
		t.Fatalf("report fields not copied: %+v", rec)
	}
	if rec.Transcript != "hello" || rec.Score != 88 {
		t.Fatalf("transcript/score not applied: %+v", rec)
	}
	if rec.RecordingURL != "https://recordings.example/c1.wav" {
		t.Fatalf("recording url not copied: %+v", rec)
	}

	// Redelivery must be a no-op with no second scoring call.
	dup := endOfCallEvent("c1")
	dup.Message.DurationSeconds = f64(999)
	dup.Message.Transcript = str("tampered")
	r.HandleEvent(context.Background(), dup)

	rec2, _ := store.FindByID("c1")
	if rec2 != rec {
		t.Fatalf("duplicate terminal event mutated record: %+v", rec2)
	}
	if got := scorer.calls.Load(); got != 1 {
		t.Fatalf("scorer called %d times, want 1", got)
	}
}

func TestNonTerminalAfterTerminalIsDiscarded(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	r := NewReconciler(store, &countingScorer{score: 50}, quietLogger())

	r.HandleEvent(context.Background(), endOfCallEvent("c1"))
	r.HandleEvent(context.Background(), Event{Message: Message{
		Type:   TypeStatusUpdate,
		Call:   CallRef{ID: "c1"},
		Status: "ringing",
	}})

	rec, _ := store.FindByID("c1")
	if rec.Status != calls.StatusCompleted {
		t.Fatalf("terminal state must be sticky, got %q", rec.Status)
	}
}

func TestStatusUpdateAdvancesLifecycle(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	r := NewReconciler(store, &countingScorer{}, quietLogger())

	for _, status := range []string{"ringing", "in_progress"} {
		r.HandleEvent(context.Background(), Event{Message: Message{
			Type:   TypeStatusUpdate,
			Call:   CallRef{ID: "c1"},
			Status: status,
		}})
		rec, _ := store.FindByID("c1")
		if string(rec.Status) != status {
			t.Fatalf("status = %q, want %q", rec.Status, status)
		}
		if rec.Processed {
			t.Fatalf("status updates must not set processed")
		}
	}
}

func TestStatusUpdateFailedIsSticky(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	r := NewReconciler(store, &countingScorer{}, quietLogger())

	r.HandleEvent(context.Background(), Event{Message: Message{
		Type: TypeStatusUpdate, Call: CallRef{ID: "c1"}, Status: "failed",
	}})
	r.HandleEvent(context.Background(), Event{Message: Message{
		Type: TypeStatusUpdate, Call: CallRef{ID: "c1"}, Status: "ringing",
	}})

	rec, _ := store.FindByID("c1")
	if rec.Status != calls.StatusFailed {
		t.Fatalf("failed state must be sticky, got %q", rec.Status)
	}
}

func TestStatusUpdateUnknownStatusKeepsCurrent(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	r := NewReconciler(store, &countingScorer{}, quietLogger())

	for _, status := range []string{"", "forwarding"} {
		r.HandleEvent(context.Background(), Event{Message: Message{
			Type: TypeStatusUpdate, Call: CallRef{ID: "c1"}, Status: status,
		}})
	}

	rec, _ := store.FindByID("c1")
	if rec.Status != calls.StatusQueued {
		t.Fatalf("unknown status must keep current value, got %q", rec.Status)
	}
}

func TestAbsentReportFieldsKeepCurrentValues(t *testing.T) {
	store := calls.NewMemoryStore()
	_ = store.Insert(calls.Call{
		ID:              "c1",
		Status:          calls.StatusInProgress,
		DurationSeconds: 7,
		Cost:            0.10,
		RecordingURL:    "https://recordings.example/early.wav",
	})
	r := NewReconciler(store, &countingScorer{score: 60}, quietLogger())

	// Report carries only the type and call id.
	r.HandleEvent(context.Background(), Event{Message: Message{
		Type: TypeEndOfCallReport,
		Call: CallRef{ID: "c1"},
	}})

	rec, _ := store.FindByID("c1")
	if !rec.Processed || rec.Status != calls.StatusCompleted {
		t.Fatalf("terminal transition not applied: %+v", rec)
	}
	if rec.DurationSeconds != 7 || rec.Cost != 0.10 || rec.RecordingURL != "https://recordings.example/early.wav" {
		t.Fatalf("absent fields must keep current values: %+v", rec)
	}
	if rec.Score != 0 {
		t.Fatalf("no transcript means no score, got %d", rec.Score)
	}
}

func TestEmptyTranscriptSkipsScoring(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	scorer := &countingScorer{score: 77}
	r := NewReconciler(store, scorer, quietLogger())

	ev := endOfCallEvent("c1")
	ev.Message.Transcript = str("")
	r.HandleEvent(context.Background(), ev)

	rec, _ := store.FindByID("c1")
	if !rec.Processed {
		t.Fatalf("terminal transition not applied")
	}
	if scorer.calls.Load() != 0 {
		t.Fatalf("scorer must not run without a transcript")
	}
	if rec.Score != 0 {
		t.Fatalf("score = %d, want 0", rec.Score)
	}
}

func TestScorerFailureDoesNotBlockTerminalTransition(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	scorer := &countingScorer{err: errors.New("evaluator timeout")}
	r := NewReconciler(store, scorer, quietLogger())

	r.HandleEvent(context.Background(), endOfCallEvent("c1"))

	rec, _ := store.FindByID("c1")
	if !rec.Processed || rec.Status != calls.StatusCompleted {
		t.Fatalf("scorer failure must not block the transition: %+v", rec)
	}
	if rec.Score != 0 {
		t.Fatalf("fallback score must be 0, got %d", rec.Score)
	}
	if rec.Transcript != "hello" {
		t.Fatalf("transcript must still be stored: %+v", rec)
	}
}

func TestUnknownCallIsDiscarded(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	r := NewReconciler(store, &countingScorer{}, quietLogger())

	r.HandleEvent(context.Background(), endOfCallEvent("ghost"))

	rec, _ := store.FindByID("c1")
	if rec.Processed || rec.Status != calls.StatusQueued {
		t.Fatalf("unrelated record mutated: %+v", rec)
	}
}

func TestMalformedEventsAreDiscarded(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	r := NewReconciler(store, &countingScorer{}, quietLogger())

	events := []Event{
		{},
		{Message: Message{Type: TypeEndOfCallReport}},
		{Message: Message{Call: CallRef{ID: "c1"}}},
		{Message: Message{Type: "speech-update", Call: CallRef{ID: "c1"}}},
	}
	for _, ev := range events {
		r.HandleEvent(context.Background(), ev)
	}

	rec, _ := store.FindByID("c1")
	if rec.Processed || rec.Status != calls.StatusQueued {
		t.Fatalf("malformed events mutated record: %+v", rec)
	}
}

func TestConcurrentTerminalDeliveriesApplyOnce(t *testing.T) {
	store := newStoreWithCall(t, "c1")
	// The delay widens the window between the processed check and the
	// commit, which is exactly where a second delivery could slip in
	// without the per-call lock.
	scorer := &countingScorer{score: 91, delay: 20 * time.Millisecond}
	r := NewReconciler(store, scorer, quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.HandleEvent(context.Background(), endOfCallEvent("c1"))
		}()
	}
	wg.Wait()

	if got := scorer.calls.Load(); got != 1 {
		t.Fatalf("scorer called %d times, want exactly 1", got)
	}
	rec, _ := store.FindByID("c1")
	if !rec.Processed || rec.Score != 91 || rec.DurationSeconds != 42 {
		t.Fatalf("unexpected record after concurrent delivery: %+v", rec)
	}
}
