package types

import "fmt"

// UnsupportedVariantError is returned when a format is recognized but its
// internal layout cannot be played (no audio track, unsupported codec, a seek
// that needs a table the file does not have).
type UnsupportedVariantError struct {
	Format string
	Reason string
}

func (e *UnsupportedVariantError) Error() string {
	return fmt.Sprintf("%s: unsupported variant: %s", e.Format, e.Reason)
}

// MalformedContainerError is returned when a container is structurally
// inconsistent: a length overruns its parent, table counts do not reconcile,
// a frame is shorter than its own header.
type MalformedContainerError struct {
	Format string
	Reason string
	Offset int64
}

func (e *MalformedContainerError) Error() string {
	return fmt.Sprintf("%s: malformed container at offset %d: %s", e.Format, e.Offset, e.Reason)
}

// IOError wraps a failure reported by the byte source.
type IOError struct {
	Err    error
	Op     string
	Offset int64
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Warning represents a non-fatal issue encountered while probing.
//
// Warnings never change the outcome of a detection. Examples include:
//   - A text tag with an encoding that could not be decoded
//   - A sample entry whose decoder config is unreadable
//
// Warnings are collected on Matched outcomes.
type Warning struct {
	// Stage where the warning occurred
	Stage string // "metadata", "tracks", "codec"

	// Warning message
	Message string

	// Stream offset where the issue occurred (0 if not applicable)
	Offset int64
}

// String returns a human-readable warning message.
func (w Warning) String() string {
	if w.Offset > 0 {
		return fmt.Sprintf("%s (at offset %d): %s", w.Stage, w.Offset, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}
