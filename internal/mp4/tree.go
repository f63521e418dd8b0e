package mp4

import (
	"errors"
	"io"
	"iter"

	"github.com/simonhull/audioprobe/internal/bytesource"
)

// DefaultMaxTableBytes bounds the payload retained for one decoded box.
const DefaultMaxTableBytes = 64 << 20

// maxDepth bounds container nesting. Real files stay well below it.
const maxDepth = 32

// Tree is the immutable box index of one parse: a pre-order arena in which
// the subtree of box i occupies indices i+1 up to its end marker.
type Tree struct {
	boxes []Box
}

// Len returns the number of boxes in the tree.
func (t *Tree) Len() int {
	return len(t.boxes)
}

// Box returns the box at arena index i.
func (t *Tree) Box(i int) *Box {
	return &t.boxes[i]
}

// Children iterates over the arena indices of the children of box parent, or
// of the top-level boxes when parent is -1.
func (t *Tree) Children(parent int) iter.Seq[int] {
	return func(yield func(int) bool) {
		i, end := 0, len(t.boxes)
		if parent >= 0 {
			i, end = parent+1, t.boxes[parent].next
		}
		for i < end {
			if !yield(i) {
				return
			}
			i = t.boxes[i].next
		}
	}
}

// Child returns the first child of parent with the given type.
func (t *Tree) Child(parent int, typ string) (int, bool) {
	for i := range t.Children(parent) {
		if t.boxes[i].Type == typ {
			return i, true
		}
	}
	return -1, false
}

// ChildrenOfType iterates over the children of parent with the given type.
func (t *Tree) ChildrenOfType(parent int, typ string) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range t.Children(parent) {
			if t.boxes[i].Type == typ && !yield(i) {
				return
			}
		}
	}
}

// Find follows a path of box types from parent, taking the first match at
// each level.
func (t *Tree) Find(parent int, path ...string) (int, bool) {
	cur := parent
	for _, typ := range path {
		next, ok := t.Child(cur, typ)
		if !ok {
			return -1, false
		}
		cur = next
	}
	return cur, true
}

// Walk visits every box in depth-first order until fn returns false.
func (t *Tree) Walk(fn func(i int, b *Box) bool) {
	for i := range t.boxes {
		if !fn(i, &t.boxes[i]) {
			return
		}
	}
}

// HasSignature reports whether the next eight bytes of src look like an ftyp
// box header. It consumes those bytes.
func HasSignature(src bytesource.Source) (bool, error) {
	return bytesource.MatchBytes(src, signature)
}

// Parse builds the box tree of src starting at its current position.
//
// Unknown boxes are skipped by seeking to their declared end, so cost grows
// with the number of boxes, not their size. Any declared size that overruns
// its parent or the stream is a MalformedContainerError.
func Parse(src bytesource.Source, maxTableBytes int64) (*Tree, error) {
	if maxTableBytes <= 0 {
		maxTableBytes = DefaultMaxTableBytes
	}
	p := &parser{src: src, maxTable: maxTableBytes, streamEnd: -1}
	if n, ok := src.Length(); ok {
		p.streamEnd = n
	}
	if err := p.parseRange(-1, "", src.Position(), p.streamEnd, 0); err != nil {
		return nil, err
	}
	return &Tree{boxes: p.boxes}, nil
}

type parser struct {
	src   bytesource.Source
	boxes []Box
	// peek holds bytes read at peekPos that the next header read consumes,
	// so forward-only sources never have to seek backwards.
	peek      []byte
	peekPos   int64
	maxTable  int64
	streamEnd int64
}

// parseRange parses sibling boxes in [start, end). end is -1 only at top
// level of a stream whose length is unknown.
func (p *parser) parseRange(parent int, parentType string, start, end int64, depth int) error {
	if depth > maxDepth {
		return malformed(start, "boxes nested deeper than %d levels", maxDepth)
	}

	pos := start
	for end < 0 || pos < end {
		if len(p.peek) == 0 || p.peekPos != pos {
			p.peek = nil
			if err := p.seek(pos); err != nil {
				return err
			}
		}

		h, ok, err := p.readHeader(pos, end)
		if err != nil {
			return err
		}
		if !ok {
			// Clean end of a stream of unknown length.
			return nil
		}

		boxEnd, err := h.resolve(pos, end, p.streamEnd, depth)
		if err != nil {
			return err
		}

		idx := len(p.boxes)
		p.boxes = append(p.boxes, Box{
			Type:      h.typ,
			Start:     pos,
			End:       boxEnd,
			HeaderLen: h.len,
			Parent:    parent,
			Depth:     depth,
		})

		switch {
		case isContainer(h.typ, parentType):
			dataStart, err := p.containerStart(h, pos, boxEnd)
			if err != nil {
				return err
			}
			if err := p.parseRange(idx, h.typ, dataStart, boxEnd, depth+1); err != nil {
				return err
			}
		case decoded[h.typ]:
			if boxEnd < 0 {
				return malformed(pos, "box %q runs to the end of a stream of unknown length", h.typ)
			}
			n := boxEnd - pos - int64(h.len)
			if n > p.maxTable {
				return unsupported("box %q payload of %d bytes exceeds the %d byte table limit", h.typ, n, p.maxTable)
			}
			payload, err := bytesource.ReadN(p.src, int(n), h.typ+" payload")
			if err != nil {
				return truncated(pos, h.typ, err)
			}
			p.boxes[idx].Payload = payload
		}
		p.boxes[idx].next = len(p.boxes)

		if boxEnd < 0 {
			// Nothing can follow a box that runs to the end of the stream.
			return nil
		}
		pos = boxEnd
	}

	return p.seek(pos)
}

// seek moves to pos. A stream that ends before pos was declared by a box
// size, so the container is malformed.
func (p *parser) seek(pos int64) error {
	err := p.src.Seek(pos)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return malformed(pos, "stream ends before offset %d", pos)
	}
	return err
}

// readHeader reads the header at pos. ok is false when end is unknown and the
// stream ends exactly at pos.
func (p *parser) readHeader(pos, end int64) (header, bool, error) {
	if end >= 0 && end-pos < headerSize {
		return header{}, false, malformed(pos, "%d trailing bytes cannot hold a box header", end-pos)
	}

	var buf [extendedHeaderSize]byte
	got := p.peek
	p.peek = nil
	if len(got) < headerSize {
		more, err := bytesource.ReadUpTo(p.src, headerSize-len(got))
		if err != nil {
			return header{}, false, err
		}
		got = append(got, more...)
	}
	if len(got) == 0 && end < 0 {
		return header{}, false, nil
	}
	if len(got) < headerSize {
		return header{}, false, malformed(pos, "truncated box header (%d bytes)", len(got))
	}
	copy(buf[:], got)

	if buf[0] == 0 && buf[1] == 0 && buf[2] == 0 && buf[3] == 1 {
		if end >= 0 && end-pos < extendedHeaderSize {
			return header{}, false, malformed(pos, "extended size header does not fit in parent")
		}
		if err := bytesource.ReadFull(p.src, buf[headerSize:], "extended box size"); err != nil {
			return header{}, false, truncated(pos, string(buf[4:8]), err)
		}
	}

	h, _ := decodeHeader(buf[:])
	return h, true, nil
}

// containerStart returns where the children of a container begin. meta is a
// full box in ISO files but a plain container in QuickTime files; the two are
// told apart by whether a hdlr box header sits right after the header.
func (p *parser) containerStart(h header, pos, boxEnd int64) (int64, error) {
	dataStart := pos + int64(h.len)
	if h.typ != "meta" {
		return dataStart, nil
	}
	if boxEnd >= 0 && boxEnd-dataStart < 8 {
		return dataStart + min(4, boxEnd-dataStart), nil
	}
	peek, err := bytesource.ReadUpTo(p.src, 8)
	if err != nil {
		return 0, err
	}
	if len(peek) == 8 && string(peek[4:8]) == "hdlr" {
		p.peek, p.peekPos = peek, dataStart
		return dataStart, nil
	}
	if len(peek) > 4 {
		p.peek, p.peekPos = peek[4:], dataStart+4
	}
	return dataStart + 4, nil
}

// truncated converts an unexpected end of stream into a malformed container
// error; other I/O failures pass through.
func truncated(pos int64, typ string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return malformed(pos, "box %q is truncated", typ)
	}
	return err
}
