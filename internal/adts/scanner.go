package adts

import (
	"github.com/simonhull/audioprobe/internal/bytesource"
)

// DefaultScanDistance is how far FindHeader looks for a header by default.
const DefaultScanDistance = 4096

// FindHeader scans positions [pos, pos+maxScan) of src for the first
// consistent ADTS header. When found, src is left positioned at the header.
// Otherwise src is returned to its starting position and ok is false.
//
// A sync pattern can occur in unrelated data; a consistent header is a
// likely match, not a proof.
func FindHeader(src bytesource.Source, maxScan int) (FrameHeader, bool, error) {
	if maxScan <= 0 {
		return FrameHeader{}, false, nil
	}
	start := src.Position()
	src.Mark(maxScan + HeaderSizeCRC)

	window, err := bytesource.ReadUpTo(src, maxScan+HeaderSize-1)
	if err != nil {
		return FrameHeader{}, false, err
	}

	for k := 0; k < maxScan && k+HeaderSize <= len(window); k++ {
		if window[k] != 0xFF || window[k+1]&0xF0 != 0xF0 {
			continue
		}
		h, err := ParseHeader(window[k:])
		if err != nil {
			continue
		}
		h.Offset = start + int64(k)
		if err := src.Seek(h.Offset); err != nil {
			return FrameHeader{}, false, err
		}
		return h, true, nil
	}

	return FrameHeader{}, false, src.Seek(start)
}
