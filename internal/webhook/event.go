package webhook

// Event kinds delivered by the provider. Anything else is ignored.
const (
	TypeStatusUpdate    = "status-update"
	TypeEndOfCallReport = "end-of-call-report"
)

// Event is the provider webhook envelope. Only the fields the
// reconciler consumes are decoded; everything else is ignored.
//
// Contract note: the call id is read from message.call.id (nested).
// Top-level call ids are not supported.
type Event struct {
	Message Message `json:"message"`
}

type Message struct {
	Type string  `json:"type"`
	Call CallRef `json:"call"`

	// Status accompanies status-update events.
	Status string `json:"status,omitempty"`

	// End-of-call report fields. Pointers distinguish "absent" from
	// zero: absent fields keep the record's current value.
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Cost            *float64 `json:"cost,omitempty"`
	RecordingURL    *string  `json:"recordingUrl,omitempty"`
	Transcript      *string  `json:"transcript,omitempty"`
}

type CallRef struct {
	ID string `json:"id"`
}
