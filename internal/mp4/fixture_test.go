package mp4

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simonhull/audioprobe/internal/bytesource"
)

// box builds a box with a 32-bit size header around the concatenated parts.
func box(typ string, parts ...[]byte) []byte {
	body := bytes.Join(parts, nil)
	buf := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(buf, uint32(8+len(body)))
	copy(buf[4:], typ)
	return append(buf, body...)
}

// fullBox builds a box whose payload starts with version and flags.
func fullBox(typ string, version byte, parts ...[]byte) []byte {
	return box(typ, append([][]byte{{version, 0, 0, 0}}, parts...)...)
}

func u16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }
func u64(v uint64) []byte { return binary.BigEndian.AppendUint64(nil, v) }

func zeros(n int) []byte { return make([]byte, n) }

func ftyp(brand string) []byte {
	return box("ftyp", []byte(brand), u32(0), []byte(brand), []byte("isom"))
}

func tkhd(id uint32) []byte {
	return fullBox("tkhd", 0, u32(0), u32(0), u32(id), u32(0), u32(0), zeros(60))
}

func mdhd(timescale, duration uint32) []byte {
	return fullBox("mdhd", 0, u32(0), u32(0), u32(timescale), u32(duration), u16(0x55C4), u16(0))
}

func mdhdV1(timescale uint32, duration uint64) []byte {
	return fullBox("mdhd", 1, u64(0), u64(0), u32(timescale), u64(duration), u16(0x55C4), u16(0))
}

func hdlr(handler string) []byte {
	return fullBox("hdlr", 0, u32(0), []byte(handler), zeros(12), []byte("Handler\x00"))
}

// aacLCStereo44100 is the AudioSpecificConfig of AAC-LC, 44.1 kHz, stereo.
var aacLCStereo44100 = []byte{0x12, 0x10}

// esds builds an ES descriptor chain around dsi, which may be nil.
func esds(dsi []byte) []byte {
	dc := append([]byte{0x40, 0x15}, zeros(11)...)
	if dsi != nil {
		dc = append(dc, append([]byte{0x05, byte(len(dsi))}, dsi...)...)
	}
	es := append([]byte{0x00, 0x01, 0x00}, append([]byte{0x04, byte(len(dc))}, dc...)...)
	es = append(es, 0x06, 0x01, 0x02)
	return fullBox("esds", 0, append([]byte{0x03, byte(len(es))}, es...))
}

// audioEntry builds a version 0 AudioSampleEntry followed by extra boxes.
func audioEntry(typ string, channels uint16, rate uint32, extra ...[]byte) []byte {
	parts := [][]byte{
		zeros(6), u16(1), // reserved, data reference index
		u16(0), u16(0), u32(0), // version, revision, vendor
		u16(channels), u16(16), u16(0), u16(0),
		u32(rate << 16),
	}
	return box(typ, append(parts, extra...)...)
}

func stsd(entries ...[]byte) []byte {
	return fullBox("stsd", 0, u32(uint32(len(entries))), bytes.Join(entries, nil))
}

func stts(runs ...TimeToSampleEntry) []byte {
	body := u32(uint32(len(runs)))
	for _, r := range runs {
		body = append(body, u32(r.Count)...)
		body = append(body, u32(r.Delta)...)
	}
	return fullBox("stts", 0, body)
}

func stsc(runs ...SampleToChunkEntry) []byte {
	body := u32(uint32(len(runs)))
	for _, r := range runs {
		body = append(body, u32(r.FirstChunk)...)
		body = append(body, u32(r.SamplesPerChunk)...)
		body = append(body, u32(r.DescriptionIndex)...)
	}
	return fullBox("stsc", 0, body)
}

func stsz(uniform uint32, sizes []uint32, count int) []byte {
	body := append(u32(uniform), u32(uint32(count))...)
	for _, s := range sizes {
		body = append(body, u32(s)...)
	}
	return fullBox("stsz", 0, body)
}

func stco(offsets ...uint64) []byte {
	body := u32(uint32(len(offsets)))
	for _, o := range offsets {
		body = append(body, u32(uint32(o))...)
	}
	return fullBox("stco", 0, body)
}

func co64(offsets ...uint64) []byte {
	body := u32(uint32(len(offsets)))
	for _, o := range offsets {
		body = append(body, u64(o)...)
	}
	return fullBox("co64", 0, body)
}

func stss(oneBased ...uint32) []byte {
	body := u32(uint32(len(oneBased)))
	for _, s := range oneBased {
		body = append(body, u32(s)...)
	}
	return fullBox("stss", 0, body)
}

func dataBox(typ uint32, value []byte) []byte {
	return box("data", u32(typ), u32(0), value)
}

func textItem(typ, value string) []byte {
	return box(typ, dataBox(dataTypeUTF8, []byte(value)))
}

// track describes one trak of a generated file.
type track struct {
	id        uint32
	handler   string
	entry     []byte
	timescale uint32
	duration  uint32
	stts      []TimeToSampleEntry
	stsc      []SampleToChunkEntry
	sizes     []uint32
	stss      []uint32 // 1-based, nil for no stss box
	co64      bool
}

// chunkSamples returns the number of samples in each of n chunks.
func (tr track) chunkSamples(n int) []int {
	out := make([]int, n)
	for i, r := range tr.stsc {
		last := n
		if i+1 < len(tr.stsc) {
			last = int(tr.stsc[i+1].FirstChunk) - 1
		}
		for c := int(r.FirstChunk) - 1; c < min(last, n); c++ {
			out[c] = int(r.SamplesPerChunk)
		}
	}
	return out
}

func (tr track) numChunks() int {
	n, total := 0, 0
	for total < len(tr.sizes) {
		n++
		total = 0
		for _, s := range tr.chunkSamples(n) {
			total += s
		}
	}
	return n
}

// offsets lays the chunks out back to back starting at base.
func (tr track) offsets(base uint64) []uint64 {
	perChunk := tr.chunkSamples(tr.numChunks())
	out := make([]uint64, len(perChunk))
	pos, s := base, 0
	for c, n := range perChunk {
		out[c] = pos
		for range n {
			pos += uint64(tr.sizes[s])
			s++
		}
	}
	return out
}

func (tr track) trak(mdatData uint64) []byte {
	offs := tr.offsets(mdatData)
	co := stco(offs...)
	if tr.co64 {
		co = co64(offs...)
	}
	tables := [][]byte{stsd(tr.entry), stts(tr.stts...), stsc(tr.stsc...), stsz(0, tr.sizes, len(tr.sizes)), co}
	if tr.stss != nil {
		tables = append(tables, stss(tr.stss...))
	}
	return box("trak",
		tkhd(tr.id),
		box("mdia",
			mdhd(tr.timescale, tr.duration),
			hdlr(tr.handler),
			box("minf", box("stbl", tables...)),
		),
	)
}

func (tr track) payloadSize() int {
	n := 0
	for _, s := range tr.sizes {
		n += int(s)
	}
	return n
}

// movie is a generated MP4 file: ftyp, moov, then one mdat per track.
type movie struct {
	tracks []track
	udta   []byte
	extra  [][]byte // appended to moov
}

func (m movie) build() []byte {
	head := ftyp("M4A ")
	layout := func(mdatStart uint64) []byte {
		var traks [][]byte
		pos := mdatStart + 8
		for _, tr := range m.tracks {
			traks = append(traks, tr.trak(pos))
			pos += uint64(tr.payloadSize())
		}
		parts := append([][]byte{fullBox("mvhd", 0, zeros(96))}, traks...)
		if m.udta != nil {
			parts = append(parts, m.udta)
		}
		parts = append(parts, m.extra...)
		return box("moov", parts...)
	}

	moov := layout(0)
	moov = layout(uint64(len(head) + len(moov)))

	var payload []byte
	for _, tr := range m.tracks {
		for s, size := range tr.sizes {
			payload = append(payload, bytes.Repeat([]byte{byte(s)}, int(size))...)
		}
	}
	return bytes.Join([][]byte{head, moov, box("mdat", payload)}, nil)
}

// aacTrack is ten AAC samples in three chunks (4, 4, 2) with sync samples
// 0, 4 and 8.
func aacTrack() track {
	sizes := make([]uint32, 10)
	for i := range sizes {
		sizes[i] = uint32(100 + i)
	}
	return track{
		id:        1,
		handler:   HandlerAudio,
		entry:     audioEntry("mp4a", 2, 44100, esds(aacLCStereo44100)),
		timescale: 44100,
		duration:  10 * 1024,
		stts:      []TimeToSampleEntry{{Count: 10, Delta: 1024}},
		stsc:      []SampleToChunkEntry{{FirstChunk: 1, SamplesPerChunk: 4, DescriptionIndex: 1}, {FirstChunk: 3, SamplesPerChunk: 2, DescriptionIndex: 1}},
		sizes:     sizes,
		stss:      []uint32{1, 5, 9},
	}
}

func videoTrack() track {
	return track{
		id:        2,
		handler:   "vide",
		entry:     box("avc1", zeros(78)),
		timescale: 90000,
		duration:  9000,
		stts:      []TimeToSampleEntry{{Count: 3, Delta: 3000}},
		stsc:      []SampleToChunkEntry{{FirstChunk: 1, SamplesPerChunk: 3, DescriptionIndex: 1}},
		sizes:     []uint32{50, 60, 70},
	}
}

func tagsUdta(items ...[]byte) []byte {
	return box("udta", fullBox("meta", 0, hdlr("mdir"), box("ilst", items...)))
}

func seekable(t *testing.T, data []byte) bytesource.Source {
	t.Helper()
	src, err := bytesource.NewSeekable(bytes.NewReader(data))
	require.NoError(t, err)
	return src
}

func parseBytes(t *testing.T, data []byte) *Tree {
	t.Helper()
	tree, err := Parse(seekable(t, data), 0)
	require.NoError(t, err)
	return tree
}

func loadBytes(t *testing.T, data []byte, opts Options) *File {
	t.Helper()
	f, err := Load(seekable(t, data), opts)
	require.NoError(t, err)
	return f
}

func boxTypes(tree *Tree) []string {
	var out []string
	tree.Walk(func(_ int, b *Box) bool {
		out = append(out, b.Type)
		return true
	})
	return out
}
