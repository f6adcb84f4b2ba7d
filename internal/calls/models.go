package calls

import "time"

// Call represents one outbound call tracked by the dashboard.
//
// ID is the provider-assigned call identifier and is the primary key.
// Records are created by the dialer on provider acceptance and mutated
// only by the webhook reconciler; they are never deleted.
//
// Processed guards terminal-event idempotency: it flips false -> true
// exactly once, on the commit that applies the end-of-call report.
// Score is written only in that same commit, and only when Transcript
// is non-empty.

type Call struct {
	ID     string `json:"id"`
	Number string `json:"number"`

	Status Status `json:"status"`

	// DurationSeconds is set once, on the terminal event.
	DurationSeconds int     `json:"duration"`
	Cost            float64 `json:"cost"`

	RecordingURL string `json:"recordingUrl,omitempty"`
	Transcript   string `json:"transcript,omitempty"`

	// Score is the 0-100 transcript quality score; 0 means unscored.
	Score int `json:"score"`

	CreatedAt time.Time `json:"createdAt"`
	Processed bool      `json:"processed"`
}

type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus maps a provider status string to a known Status.
// Unknown values return ("", false) so callers keep the current value.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusQueued, StatusRinging, StatusInProgress, StatusCompleted, StatusFailed:
		return Status(s), true
	default:
		return "", false
	}
}

// IsTerminal reports whether the status ends the call lifecycle.
// Terminal state is sticky: late non-terminal updates must not undo it.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
