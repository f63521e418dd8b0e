// Package mp4 provides ISO base media (MP4/M4A/M4B) box parsing, track table
// extraction, and sample iteration.
package mp4

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/simonhull/audioprobe/internal/types"
)

const formatName = "mp4"

const (
	headerSize         = 8
	extendedHeaderSize = 16
)

// signature is the ftyp pre-filter: a 32-bit size whose high bytes are zero
// followed by "ftyp". Negative entries match any byte.
var signature = []int{0x00, 0x00, 0x00, -1, 'f', 't', 'y', 'p'}

// Box is one record of a parsed Tree.
type Box struct {
	Type string
	// Payload is retained only for leaf boxes the extractor decodes.
	Payload   []byte
	Start     int64
	End       int64 // -1 when the box runs to the end of a stream of unknown length
	HeaderLen int
	Parent    int // -1 for top-level boxes
	Depth     int
	next      int // arena index one past this box's subtree
}

// Size returns the resolved size including the header, or -1 when open-ended.
func (b *Box) Size() int64 {
	if b.End < 0 {
		return -1
	}
	return b.End - b.Start
}

// DataOffset returns the stream offset where the box payload starts.
func (b *Box) DataOffset() int64 {
	return b.Start + int64(b.HeaderLen)
}

// OpenEnded reports whether the box declared size 0 on a stream of unknown length.
func (b *Box) OpenEnded() bool {
	return b.End < 0
}

// containers lists box types whose payload is a sequence of boxes.
var containers = map[string]bool{
	"moov": true, // Movie container
	"trak": true, // Track container
	"mdia": true, // Media container
	"minf": true, // Media information
	"stbl": true, // Sample table
	"udta": true, // User data
	"meta": true, // Metadata container (full box)
	"ilst": true, // iTunes metadata list
	"edts": true, // Edit list container
	"dinf": true, // Data information
	"mvex": true, // Movie extends
	"----": true, // Freeform iTunes item
}

// decoded lists leaf boxes whose payloads are kept for the extractor.
var decoded = map[string]bool{
	"ftyp": true,
	"mvhd": true,
	"tkhd": true,
	"mdhd": true,
	"hdlr": true,
	"stsd": true,
	"stts": true,
	"stsc": true,
	"stsz": true,
	"stz2": true,
	"stco": true,
	"co64": true,
	"stss": true,
	"data": true,
	"mean": true,
	"name": true,
}

// isContainer reports whether a box of type typ under a parent of type parent
// holds child boxes. Every ilst item is a container of data boxes.
func isContainer(typ, parent string) bool {
	return containers[typ] || parent == "ilst"
}

// header is a decoded box header before its size is resolved against bounds.
type header struct {
	typ string
	// size is the declared box size; 0 means "to end of stream".
	size uint64
	len  int
}

// decodeHeader decodes a box header from b, which must hold at least 8 bytes
// and 16 when the 32-bit size is 1.
func decodeHeader(b []byte) (header, bool) {
	if len(b) < headerSize {
		return header{}, false
	}
	h := header{
		size: uint64(binary.BigEndian.Uint32(b[0:4])),
		typ:  string(b[4:8]),
		len:  headerSize,
	}
	if h.size == 1 {
		if len(b) < extendedHeaderSize {
			return header{}, false
		}
		h.size = binary.BigEndian.Uint64(b[8:16])
		h.len = extendedHeaderSize
	}
	return h, true
}

// resolve checks the declared size of a box starting at start against the
// bound end (-1 when unknown) and returns the box end, -1 for open-ended
// boxes. streamEnd is the known stream length, or -1.
func (h header) resolve(start, end, streamEnd int64, depth int) (int64, error) {
	if h.size == 0 {
		if depth != 0 {
			return 0, malformed(start, "box %q declares size 0 below top level", h.typ)
		}
		if streamEnd < 0 {
			return -1, nil
		}
		return streamEnd, nil
	}
	if h.size < uint64(h.len) {
		return 0, malformed(start, "box %q size %d is smaller than its %d-byte header", h.typ, h.size, h.len)
	}
	if h.size > uint64(math.MaxInt64-start) {
		return 0, malformed(start, "box %q size %d overflows", h.typ, h.size)
	}
	boxEnd := start + int64(h.size)
	if end >= 0 && boxEnd > end {
		return 0, malformed(start, "box %q of size %d exceeds parent bound %d", h.typ, h.size, end)
	}
	return boxEnd, nil
}

// walkSlice iterates over the boxes packed in b, a payload held in memory.
// base is the stream offset of b[0] and is only used in errors.
func walkSlice(b []byte, base int64, fn func(h header, payload []byte) error) error {
	off := 0
	for off < len(b) {
		h, ok := decodeHeader(b[off:])
		if !ok {
			return malformed(base+int64(off), "truncated box header (%d bytes left)", len(b)-off)
		}
		if h.size == 0 {
			h.size = uint64(len(b) - off)
		}
		if h.size < uint64(h.len) || h.size > uint64(len(b)-off) {
			return malformed(base+int64(off), "box %q size %d exceeds its %d-byte parent", h.typ, h.size, len(b))
		}
		if err := fn(h, b[off+h.len:off+int(h.size)]); err != nil {
			return err
		}
		off += int(h.size)
	}
	return nil
}

func malformed(offset int64, format string, args ...any) error {
	return &types.MalformedContainerError{
		Format: formatName,
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
	}
}

func unsupported(format string, args ...any) error {
	return &types.UnsupportedVariantError{
		Format: formatName,
		Reason: fmt.Sprintf(format, args...),
	}
}
