package core

import (
	"errors"
	"fmt"
)

// Sentinel errors, wrapped with %w and matched with errors.Is.
var (
	// Trace header errors, fatal for the whole run
	ErrInvalidMagic        = errors.New("synscope: invalid pcap magic number")
	ErrUnsupportedLinkType = errors.New("synscope: unsupported link-layer type")

	// Per-frame errors, the frame is skipped and the run continues
	ErrMalformedFrame  = errors.New("synscope: malformed frame")
	ErrOversizedFrame  = errors.New("synscope: oversized frame")
	ErrTruncatedHeader = errors.New("synscope: truncated header")

	// The record length cannot be trusted to skip to the next record
	ErrUnsyncable = errors.New("synscope: cannot resynchronize capture stream")

	// Aggregation errors
	ErrInvalidWindow = errors.New("synscope: invalid window size")

	// Configuration errors
	ErrConfigInvalid = errors.New("synscope: invalid configuration")
)

// FrameError reports a recoverable failure for a single frame record.
// The capture stream is still aligned on the next record when it is returned.
type FrameError struct {
	Index  uint64 // zero-based record index in the trace
	Record FrameRecord
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d (caplen=%d): %v", e.Index, e.Record.CaptureLen, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether err only affects a single frame.
func IsRecoverable(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}
