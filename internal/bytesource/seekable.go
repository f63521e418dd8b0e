package bytesource

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// Seekable wraps an io.ReadSeeker. Mark/Reset are plain seeks, so the mark
// limit is not enforced.
type Seekable struct {
	info
	r      io.ReadSeeker
	closed atomic.Bool
	pos    int64
	size   int64
	mark   int64
	marked bool
}

// NewSeekable wraps r, starting at r's current position. The total length is
// taken from io.SeekEnd unless WithLength is given.
func NewSeekable(r io.ReadSeeker, opts ...Option) (*Seekable, error) {
	o := applyOptions(opts)

	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, ioError("locate start", 0, err)
	}

	size := o.length
	if size < 0 {
		end, err := r.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, ioError("locate end", pos, err)
		}
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return nil, ioError("rewind", pos, err)
		}
		size = end
	}

	return &Seekable{info: o.info, r: r, pos: pos, size: size}, nil
}

// Read implements io.Reader.
func (s *Seekable) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ioError("read", s.pos, ErrClosed)
	}
	n, err := s.r.Read(p)
	s.pos += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, ioError("read", s.pos, err)
	}
	return n, err
}

// Seek moves to an absolute position.
func (s *Seekable) Seek(pos int64) error {
	if s.closed.Load() {
		return ioError("seek", s.pos, ErrClosed)
	}
	if pos < 0 {
		return ioError("seek", s.pos, fmt.Errorf("negative position %d", pos))
	}
	if pos == s.pos {
		return nil
	}
	if _, err := s.r.Seek(pos, io.SeekStart); err != nil {
		return ioError("seek", pos, err)
	}
	s.pos = pos
	return nil
}

// Position returns the cursor position.
func (s *Seekable) Position() int64 { return s.pos }

// Length returns the size found when the source was opened.
func (s *Seekable) Length() (int64, bool) { return s.size, true }

// Mark records the current position.
func (s *Seekable) Mark(int) {
	s.mark = s.pos
	s.marked = true
}

// Reset seeks back to the mark.
func (s *Seekable) Reset() error {
	if !s.marked {
		return ioError("reset", s.pos, ErrNoMark)
	}
	return s.Seek(s.mark)
}

// Seekable always reports true.
func (s *Seekable) Seekable() bool { return true }

// Close closes the underlying reader when it is an io.Closer.
func (s *Seekable) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
