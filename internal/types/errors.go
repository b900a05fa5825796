package types

import "fmt"

// Error taxonomy. Failures are scoped to the smallest unit possible so one
// bad chunk, clip, or render never aborts the whole batch.

// InputError covers empty or malformed transcripts and unreadable media.
// Fatal: no partial pipeline run happens.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return "input: " + e.Msg }

// OracleError covers oracle transport failures that survived retry, and
// auth/quota failures that are not retryable at all.
type OracleError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Op, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// PerItemJudgmentError marks a single malformed oracle item. The item is
// scored/flagged rather than dropped; this error only appears in warning
// lists.
type PerItemJudgmentError struct {
	ItemID string
	Reason string
}

func (e *PerItemJudgmentError) Error() string {
	return fmt.Sprintf("judgment for %s: %s", e.ItemID, e.Reason)
}

// TrackingError reports that no subject was detected for an entire clip.
// The render falls back to a static centered crop; this is a warning, not a
// clip failure.
type TrackingError struct {
	ClipID string
}

func (e *TrackingError) Error() string {
	return "tracking: no subject detected for clip " + e.ClipID
}

// RenderError reports an external-engine failure for one clip, including the
// frame range the failing plan covered.
type RenderError struct {
	ClipID   string
	Frames   FrameRange
	Attempts int
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render clip %s (frames %d-%d, %d attempts): %v",
		e.ClipID, e.Frames.From, e.Frames.To, e.Attempts, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
