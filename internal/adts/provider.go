package adts

import (
	"errors"
	"io"
	"log/slog"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/types"
)

// Provider yields the frames of an ADTS stream as chunks. The stream has no
// global duration and only supports seeking back to its first frame.
type Provider struct {
	src    bytesource.Source
	logger *slog.Logger

	first int64
	// next is where the following header is expected.
	next int64
	scan int

	// Timestamps restart from baseMillis whenever the sample rate changes.
	baseMillis int64
	samples    int64
	rate       int
	index      int
	done       bool
}

var _ types.TrackProvider = (*Provider)(nil)

// NewProvider creates a provider whose first frame starts at first.
func NewProvider(src bytesource.Source, first int64, opts Options) *Provider {
	return &Provider{
		src:    src,
		logger: opts.logger(),
		first:  first,
		next:   first,
		scan:   opts.scanDistance(),
	}
}

// Duration always returns types.DurationUnknown.
func (p *Provider) Duration() int64 {
	return types.DurationUnknown
}

// NextChunk locates the next frame header and returns the frame's byte range.
// The source is left at the start of the frame so the caller can read it.
func (p *Provider) NextChunk() (types.Chunk, error) {
	if p.done {
		return types.Chunk{}, io.EOF
	}
	if err := p.src.Seek(p.next); err != nil {
		p.done = true
		// A truncated final frame ends the stream too.
		if endOfStream(p.src, p.next) || errors.Is(err, io.ErrUnexpectedEOF) {
			return types.Chunk{}, io.EOF
		}
		return types.Chunk{}, err
	}

	h, ok, err := FindHeader(p.src, p.scan)
	if err != nil {
		return types.Chunk{}, err
	}
	if !ok {
		p.done = true
		rest, err := bytesource.ReadUpTo(p.src, HeaderSize)
		if err != nil {
			return types.Chunk{}, err
		}
		if len(rest) < HeaderSize {
			return types.Chunk{}, io.EOF
		}
		return types.Chunk{}, &types.MalformedContainerError{
			Format: formatName,
			Offset: p.next,
			Reason: "lost frame sync",
		}
	}
	if h.Offset != p.next {
		p.logger.Debug("adts resync",
			slog.Int64("expected", p.next),
			slog.Int64("found", h.Offset))
	}

	if rate := h.SampleRate(); rate != p.rate {
		if p.rate > 0 {
			p.baseMillis += p.samples * 1000 / int64(p.rate)
		}
		p.rate, p.samples = rate, 0
	}

	c := types.Chunk{
		Timestamp:   p.baseMillis + p.samples*1000/int64(p.rate),
		Offset:      h.Offset,
		Size:        int64(h.FrameLength),
		SampleIndex: p.index,
		Sync:        true,
	}
	p.samples += int64(h.SamplesPerFrame())
	p.index++
	p.next = h.Offset + int64(h.FrameLength)
	return c, nil
}

// Seek supports only a target of 0, which rewinds to the first frame.
// Forward-only sources can only do so before any frame was consumed.
func (p *Provider) Seek(target int64) (int64, error) {
	if target > 0 {
		return 0, &types.UnsupportedVariantError{Format: formatName, Reason: "elementary streams cannot seek to a timestamp"}
	}
	if !p.src.Seekable() && p.index > 0 {
		return 0, &types.UnsupportedVariantError{Format: formatName, Reason: "forward-only stream cannot rewind"}
	}
	p.next = p.first
	p.baseMillis, p.samples, p.rate, p.index = 0, 0, 0, 0
	p.done = false
	return 0, nil
}

// endOfStream reports whether pos is at or past the known end of src.
func endOfStream(src bytesource.Source, pos int64) bool {
	n, ok := src.Length()
	return ok && pos >= n
}
