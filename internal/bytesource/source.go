// Package bytesource provides the byte providers probes and track providers
// read from, with absolute positioning and bounded mark/reset lookahead.
package bytesource

import (
	"errors"
	"io"

	"github.com/simonhull/audioprobe/internal/types"
)

var (
	// ErrClosed is reported by every operation on a closed source.
	ErrClosed = errors.New("byte source closed")
	// ErrNotSeekable is reported when a forward-only source is asked to move
	// backwards outside its lookahead buffer.
	ErrNotSeekable = errors.New("byte source is not seekable")
	// ErrNoMark is reported by Reset when Mark was never called.
	ErrNoMark = errors.New("reset without mark")
	// ErrMarkExpired is reported by Reset when more than the mark limit was
	// read since Mark.
	ErrMarkExpired = errors.New("lookahead limit exceeded since mark")
)

// Source is a byte provider with an absolute read cursor.
//
// A Source is not safe for concurrent use. Close may be called from another
// goroutine to abort reads; every later operation fails with ErrClosed.
type Source interface {
	io.Reader
	io.Closer

	// Seek moves the cursor to an absolute position.
	Seek(pos int64) error
	// Position returns the absolute cursor position.
	Position() int64
	// Length returns the total stream length when it is known.
	Length() (int64, bool)
	// Mark records the current position. Reset returns to it as long as no
	// more than limit bytes were read since.
	Mark(limit int)
	// Reset moves the cursor back to the last mark.
	Reset() error
	// Seekable reports whether arbitrary backward seeks are supported.
	Seekable() bool
}

// Option configures a source.
type Option func(*options)

type options struct {
	info   info
	length int64
}

// WithLength declares the total length of a forward-only stream.
func WithLength(n int64) Option {
	return func(o *options) {
		o.length = n
	}
}

// WithInfo attaches transport-level track information. The source then
// answers types.InfoProvider with these values.
func WithInfo(title, author, uri string) Option {
	return func(o *options) {
		o.info = info{title: title, author: author, uri: uri}
	}
}

func applyOptions(opts []Option) options {
	o := options{length: -1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type info struct {
	title  string
	author string
	uri    string
}

func (i info) Title() string  { return i.title }
func (i info) Author() string { return i.author }
func (i info) URI() string    { return i.uri }

var _ types.InfoProvider = info{}

func ioError(op string, off int64, err error) error {
	return &types.IOError{Op: op, Offset: off, Err: err}
}
