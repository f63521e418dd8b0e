package bytesource

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// Sequential wraps a forward-only io.Reader. Forward seeks discard bytes;
// backward seeks are only possible to positions recorded since the last Mark.
type Sequential struct {
	info
	r io.Reader
	// pending holds bytes already pulled from r that were rewound by Reset.
	pending []byte
	// recorded holds bytes delivered since Mark, nil once the limit is hit.
	recorded []byte
	closed   atomic.Bool
	pos      int64
	size     int64
	markPos  int64
	limit    int
	marked   bool
	expired  bool
}

// NewSequential wraps r. The length is unknown unless WithLength is given.
func NewSequential(r io.Reader, opts ...Option) *Sequential {
	o := applyOptions(opts)
	return &Sequential{info: o.info, r: r, size: o.length}
}

// Read implements io.Reader, serving rewound bytes first.
func (s *Sequential) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ioError("read", s.pos, ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}

	var n int
	var err error
	if len(s.pending) > 0 {
		n = copy(p, s.pending)
		s.pending = s.pending[n:]
		if len(s.pending) == 0 {
			s.pending = nil
		}
	} else {
		n, err = s.r.Read(p)
		if err != nil && !errors.Is(err, io.EOF) {
			err = ioError("read", s.pos+int64(n), err)
		}
	}

	s.record(p[:n])
	s.pos += int64(n)
	return n, err
}

func (s *Sequential) record(b []byte) {
	if !s.marked || s.expired || len(b) == 0 {
		return
	}
	if len(s.recorded)+len(b) > s.limit {
		s.expired = true
		s.recorded = nil
		return
	}
	s.recorded = append(s.recorded, b...)
}

// Seek moves to pos. Moving forward discards; moving backward needs a live
// mark at or before pos.
func (s *Sequential) Seek(pos int64) error {
	if s.closed.Load() {
		return ioError("seek", s.pos, ErrClosed)
	}
	if pos < 0 {
		return ioError("seek", s.pos, fmt.Errorf("negative position %d", pos))
	}
	if pos < s.pos {
		if !s.marked || s.expired || pos < s.markPos {
			return ioError("seek", pos, ErrNotSeekable)
		}
		if err := s.Reset(); err != nil {
			return err
		}
	}
	if pos == s.pos {
		return nil
	}

	if _, err := io.CopyN(io.Discard, s, pos-s.pos); err != nil {
		if errors.Is(err, io.EOF) {
			return ioError("seek", s.pos, io.ErrUnexpectedEOF)
		}
		return err
	}
	return nil
}

// Position returns the number of bytes consumed so far.
func (s *Sequential) Position() int64 { return s.pos }

// Length returns the declared length, if any.
func (s *Sequential) Length() (int64, bool) {
	if s.size < 0 {
		return 0, false
	}
	return s.size, true
}

// Mark starts recording so that Reset can return here after reading at most
// limit bytes.
func (s *Sequential) Mark(limit int) {
	s.marked = true
	s.expired = false
	s.markPos = s.pos
	s.limit = limit
	s.recorded = make([]byte, 0, min(limit, 4096))
}

// Reset rewinds to the mark. The mark stays active.
func (s *Sequential) Reset() error {
	switch {
	case !s.marked:
		return ioError("reset", s.pos, ErrNoMark)
	case s.expired:
		return ioError("reset", s.pos, ErrMarkExpired)
	}
	s.pending = append(s.recorded, s.pending...)
	s.recorded = make([]byte, 0, cap(s.recorded))
	s.pos = s.markPos
	return nil
}

// Seekable always reports false.
func (s *Sequential) Seekable() bool { return false }

// Close closes the underlying reader when it is an io.Closer.
func (s *Sequential) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
