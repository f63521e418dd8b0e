package bytesource

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/audioprobe/internal/types"
)

func TestRead_BigEndian(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}
	src, err := NewSeekable(bytes.NewReader(data))
	require.NoError(t, err)

	u8, err := Read[uint8](src, "u8")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), u8)

	u16, err := Read[uint16](src, "u16")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0203), u16)

	u32, err := Read[uint32](src, "u32")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04050607), u32)

	u64, err := Read[uint64](src, "u64")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x08090A0B0C0D0E0F), u64)
}

func TestReadFull_Short(t *testing.T) {
	src, err := NewSeekable(bytes.NewReader([]byte{1, 2}))
	require.NoError(t, err)

	_, err = ReadN(src, 4, "box header")
	var ioErr *types.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(0), ioErr.Offset)
	assert.Contains(t, err.Error(), "box header")
}

func TestReadUpTo(t *testing.T) {
	src, err := NewSeekable(bytes.NewReader(digits))
	require.NoError(t, err)

	got, err := ReadUpTo(src, 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(got))

	got, err = ReadUpTo(src, 100)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(got))

	got, err = ReadUpTo(src, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemaining(t *testing.T) {
	src, err := NewSeekable(bytes.NewReader(digits))
	require.NoError(t, err)
	require.NoError(t, src.Seek(4))

	n, ok := Remaining(src)
	assert.True(t, ok)
	assert.Equal(t, int64(6), n)

	_, ok = Remaining(NewSequential(bytes.NewReader(digits)))
	assert.False(t, ok)
}

func TestMatchBytes(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		pattern []int
		want    bool
	}{
		{"exact", []byte("ftyp"), []int{'f', 't', 'y', 'p'}, true},
		{"wildcard", []byte("fXyp"), []int{'f', -1, 'y', 'p'}, true},
		{"mismatch", []byte("moov"), []int{'f', 't', 'y', 'p'}, false},
		{"short", []byte("ft"), []int{'f', 't', 'y', 'p'}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSeekable(bytes.NewReader(tt.data))
			require.NoError(t, err)

			got, err := MatchBytes(src, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCursor(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x10, 0xAA, 0xBB, 0xCC, 0x01, 0x02}, "stsd")

	assert.Equal(t, uint16(0x0010), Next[uint16](c, "count"))
	assert.Equal(t, []byte{0xAA, 0xBB}, c.Bytes(2, "pair"))
	c.Skip(1, "reserved")
	assert.Equal(t, 5, c.Offset())
	assert.Equal(t, 2, c.Len())
	require.NoError(t, c.Err())

	assert.Equal(t, uint32(0), Next[uint32](c, "too wide"))
	require.Error(t, c.Err())
	assert.Contains(t, c.Err().Error(), "stsd")
	assert.Contains(t, c.Err().Error(), "too wide")

	// After a failure every read is zero.
	assert.Equal(t, uint8(0), Next[uint8](c, "after"))
	assert.Nil(t, c.Rest())
}

func TestCursor_Rest(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4}, "data")
	Next[uint8](c, "first")
	assert.Equal(t, []byte{2, 3, 4}, c.Rest())
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Bytes(-1, "negative"))
	assert.Error(t, c.Err())
}
