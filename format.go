package audioprobe

import (
	"io"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/types"
)

// Format is an alias to types.Format.
type Format = types.Format

// Re-export all format constants.
const (
	FormatUnknown = types.FormatUnknown
	FormatMP4     = types.FormatMP4
	FormatADTS    = types.FormatADTS
)

// Hints is an alias to types.Hints.
type Hints = types.Hints

// HintsFromPath derives hints from a file extension.
func HintsFromPath(path string) Hints {
	return types.HintsFromPath(path)
}

// Reference is an alias to types.Reference.
type Reference = types.Reference

// TrackMetadata is an alias to types.TrackMetadata.
type TrackMetadata = types.TrackMetadata

// DurationUnknown is the duration of live and elementary streams.
const DurationUnknown = types.DurationUnknown

// Outcome is an alias to types.Outcome.
type Outcome = types.Outcome

// OutcomeKind is an alias to types.OutcomeKind.
type OutcomeKind = types.OutcomeKind

// Outcome kinds.
const (
	NoMatch     = types.NoMatch
	Matched     = types.Matched
	Unsupported = types.Unsupported
)

// Chunk is an alias to types.Chunk.
type Chunk = types.Chunk

// TrackProvider is an alias to types.TrackProvider.
type TrackProvider = types.TrackProvider

// Source is the byte provider detection and playback read from.
type Source = bytesource.Source

// SourceOption configures NewSeekableSource and NewSequentialSource.
type SourceOption = bytesource.Option

// WithLength declares the total length of a forward-only source.
func WithLength(n int64) SourceOption {
	return bytesource.WithLength(n)
}

// WithInfo attaches transport-level title, author and URI to a source. They
// are used when the container carries none.
func WithInfo(title, author, uri string) SourceOption {
	return bytesource.WithInfo(title, author, uri)
}

// NewSeekableSource wraps an io.ReadSeeker such as an *os.File.
func NewSeekableSource(r io.ReadSeeker, opts ...SourceOption) (Source, error) {
	src, err := bytesource.NewSeekable(r, opts...)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// NewSequentialSource wraps a forward-only reader such as an HTTP body.
// Probes can only rewind within the lookahead limit.
func NewSequentialSource(r io.Reader, opts ...SourceOption) Source {
	return bytesource.NewSequential(r, opts...)
}
