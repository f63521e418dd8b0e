package bytesource

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/simonhull/audioprobe/internal/types"
)

// Unsigned lists the integer widths the big-endian helpers decode.
type Unsigned interface {
	uint8 | uint16 | uint32 | uint64
}

func width[T Unsigned]() int {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	default:
		return 8
	}
}

func decode[T Unsigned](buf []byte) T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return T(buf[0])
	case uint16:
		return T(binary.BigEndian.Uint16(buf))
	case uint32:
		return T(binary.BigEndian.Uint32(buf))
	default:
		return T(binary.BigEndian.Uint64(buf))
	}
}

// ReadFull reads exactly len(buf) bytes. A stream that ends early yields an
// IOError wrapping io.ErrUnexpectedEOF; what names the field for diagnostics.
func ReadFull(src Source, buf []byte, what string) error {
	off := src.Position()
	if _, err := io.ReadFull(src, buf); err != nil {
		var ioErr *types.IOError
		if errors.As(err, &ioErr) {
			return fmt.Errorf("reading %s: %w", what, err)
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return ioError("reading "+what, off, err)
	}
	return nil
}

// ReadN reads n bytes into a new slice.
func ReadN(src Source, n int, what string) ([]byte, error) {
	buf := make([]byte, n)
	if err := ReadFull(src, buf, what); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUpTo reads at most n bytes, stopping quietly at end of stream.
func ReadUpTo(src Source, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(src, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return buf[:got], err
	}
	return buf[:got], nil
}

// Read reads a big-endian value of type T at the cursor.
func Read[T Unsigned](src Source, what string) (T, error) {
	var buf [8]byte
	b := buf[:width[T]()]
	if err := ReadFull(src, b, what); err != nil {
		var zero T
		return zero, err
	}
	return decode[T](b), nil
}

// Remaining returns the bytes left before the known end of stream.
func Remaining(src Source) (int64, bool) {
	n, ok := src.Length()
	if !ok {
		return 0, false
	}
	return n - src.Position(), true
}

// MatchBytes reads len(pattern) bytes and compares them with pattern, where a
// negative pattern entry matches any byte. Short streams do not match.
func MatchBytes(src Source, pattern []int) (bool, error) {
	got, err := ReadUpTo(src, len(pattern))
	if err != nil {
		return false, err
	}
	if len(got) < len(pattern) {
		return false, nil
	}
	for i, want := range pattern {
		if want >= 0 && int(got[i]) != want {
			return false, nil
		}
	}
	return true, nil
}
