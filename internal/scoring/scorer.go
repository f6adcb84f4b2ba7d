// Package scoring grades call transcripts on a 0-100 scale.
//
// Scoring is best-effort telemetry, not correctness-critical: callers
// must treat any error as score 0 and carry on.
package scoring

import "context"

// Scorer produces a 0-100 quality score for a transcript.
type Scorer interface {
	Score(ctx context.Context, transcript string) (int, error)
}

// Disabled is used when no evaluator is configured; every transcript
// scores 0 (unscored).
type Disabled struct{}

var _ Scorer = Disabled{}

func (Disabled) Score(ctx context.Context, transcript string) (int, error) {
	return 0, nil
}
