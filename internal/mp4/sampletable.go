package mp4

import (
	"slices"
	"sort"

	"github.com/simonhull/audioprobe/internal/bytesource"
)

// SampleToChunkEntry is one run of the stsc table. FirstChunk is 1-based.
type SampleToChunkEntry struct {
	FirstChunk       uint32
	SamplesPerChunk  uint32
	DescriptionIndex uint32
}

// TimeToSampleEntry is one run of the stts table.
type TimeToSampleEntry struct {
	Count uint32
	Delta uint32
}

// SampleTable holds the decoded location and timing tables of one track.
type SampleTable struct {
	ChunkOffsets  []uint64
	SampleToChunk []SampleToChunkEntry
	// Sizes holds per-sample sizes; it is nil when every sample has
	// UniformSize bytes.
	Sizes        []uint32
	TimeToSample []TimeToSampleEntry
	// SyncSamples holds zero-based sample indices in ascending order; nil when
	// the track has no stss box.
	SyncSamples []uint32
	UniformSize uint32

	// Prefix sums, one entry per run.
	runStartSample  []int64 // stsc runs
	sttsStartSample []int64
	sttsStartTime   []uint64
	sampleCount     int64
	totalTime       uint64
}

// SampleCount returns the number of samples in the track.
func (t *SampleTable) SampleCount() int64 {
	return t.sampleCount
}

// TotalTime returns the sum of all sample deltas in timescale units.
func (t *SampleTable) TotalTime() uint64 {
	return t.totalTime
}

// SampleSize returns the size of sample s.
func (t *SampleTable) SampleSize(s int64) uint32 {
	if t.Sizes == nil {
		return t.UniformSize
	}
	return t.Sizes[s]
}

// IsSync reports whether sample s is a sync sample. Without a sync table
// only the first sample is.
func (t *SampleTable) IsSync(s int64) bool {
	if t.SyncSamples == nil {
		return s == 0
	}
	_, found := slices.BinarySearch(t.SyncSamples, uint32(s))
	return found
}

// sttsRun returns the stts run holding sample s.
func (t *SampleTable) sttsRun(s int64) int {
	return sort.Search(len(t.sttsStartSample), func(i int) bool {
		return t.sttsStartSample[i] > s
	}) - 1
}

// DecodeTime returns the decode timestamp of sample s in timescale units.
func (t *SampleTable) DecodeTime(s int64) uint64 {
	if s >= t.sampleCount {
		return t.totalTime
	}
	r := t.sttsRun(s)
	if r < 0 {
		return 0
	}
	return t.sttsStartTime[r] + uint64(s-t.sttsStartSample[r])*uint64(t.TimeToSample[r].Delta)
}

// LastSampleAtOrBefore returns the last sample whose decode time is at or
// before ts, or 0 when the first sample is already later.
func (t *SampleTable) LastSampleAtOrBefore(ts uint64) int64 {
	n := sort.Search(int(t.sampleCount), func(i int) bool {
		return t.DecodeTime(int64(i)) > ts
	})
	return max(int64(n)-1, 0)
}

// LastSyncAtOrBefore returns the last sync sample whose decode time is at or
// before ts. ok is false when the table has no sync samples at or before ts.
func (t *SampleTable) LastSyncAtOrBefore(ts uint64) (int64, bool) {
	i := sort.Search(len(t.SyncSamples), func(i int) bool {
		return t.DecodeTime(int64(t.SyncSamples[i])) > ts
	}) - 1
	if i < 0 {
		return 0, false
	}
	return int64(t.SyncSamples[i]), true
}

// locate returns the chunk, stsc run and index-within-chunk of sample s.
func (t *SampleTable) locate(s int64) (chunk int, run int, inChunk int64) {
	run = sort.Search(len(t.runStartSample), func(i int) bool {
		return t.runStartSample[i] > s
	}) - 1
	e := t.SampleToChunk[run]
	rel := s - t.runStartSample[run]
	spc := int64(e.SamplesPerChunk)
	return int(e.FirstChunk-1) + int(rel/spc), run, rel % spc
}

// decodeSampleTable decodes and cross-checks the tables under the stbl box at
// arena index stbl. streamEnd is the known stream length or -1.
func decodeSampleTable(tree *Tree, stbl int, streamEnd int64) (*SampleTable, error) {
	find := func(types ...string) (*Box, bool) {
		for _, typ := range types {
			if i, ok := tree.Child(stbl, typ); ok {
				return tree.Box(i), true
			}
		}
		return nil, false
	}

	stts, ok := find("stts")
	if !ok {
		return nil, unsupported("sample table has no time-to-sample box")
	}
	stsc, ok := find("stsc")
	if !ok {
		return nil, unsupported("sample table has no sample-to-chunk box")
	}
	sizes, ok := find("stsz", "stz2")
	if !ok {
		return nil, unsupported("sample table has no sample size box")
	}
	offsets, ok := find("stco", "co64")
	if !ok {
		return nil, unsupported("sample table has no chunk offset box")
	}

	t := &SampleTable{}
	var err error
	if t.TimeToSample, err = decodeStts(stts); err != nil {
		return nil, err
	}
	if t.SampleToChunk, err = decodeStsc(stsc); err != nil {
		return nil, err
	}
	if t.ChunkOffsets, err = decodeChunkOffsets(offsets); err != nil {
		return nil, err
	}
	var sizeCount int64
	if t.UniformSize, t.Sizes, sizeCount, err = decodeSampleSizes(sizes); err != nil {
		return nil, err
	}
	t.sampleCount = sizeCount

	if stss, ok := find("stss"); ok {
		if t.SyncSamples, err = decodeStss(stss, sizeCount); err != nil {
			return nil, err
		}
	}

	if err := t.index(stts.Start, stsc.Start, offsets.Start, streamEnd); err != nil {
		return nil, err
	}
	return t, nil
}

// index builds the prefix sums and checks that every table describes the
// same number of samples.
func (t *SampleTable) index(sttsAt, stscAt, chunksAt, streamEnd int64) error {
	var samples int64
	var ts uint64
	t.sttsStartSample = make([]int64, len(t.TimeToSample))
	t.sttsStartTime = make([]uint64, len(t.TimeToSample))
	for i, e := range t.TimeToSample {
		t.sttsStartSample[i] = samples
		t.sttsStartTime[i] = ts
		samples += int64(e.Count)
		ts += uint64(e.Count) * uint64(e.Delta)
	}
	if samples != t.sampleCount {
		return malformed(sttsAt, "time-to-sample table covers %d samples, sample size table has %d", samples, t.sampleCount)
	}
	t.totalTime = ts

	numChunks := uint64(len(t.ChunkOffsets))
	t.runStartSample = make([]int64, len(t.SampleToChunk))
	samples = 0
	for i, e := range t.SampleToChunk {
		if uint64(e.FirstChunk) > numChunks && numChunks > 0 {
			return malformed(stscAt, "sample-to-chunk run %d starts at chunk %d of %d", i, e.FirstChunk, numChunks)
		}
		next := numChunks + 1
		if i+1 < len(t.SampleToChunk) {
			next = uint64(t.SampleToChunk[i+1].FirstChunk)
		}
		t.runStartSample[i] = samples
		samples += int64((next - uint64(e.FirstChunk)) * uint64(e.SamplesPerChunk))
	}
	if numChunks == 0 {
		samples = 0
	}
	if samples != t.sampleCount {
		return malformed(stscAt, "chunk tables imply %d samples, sample size table has %d", samples, t.sampleCount)
	}

	for i := 1; i < len(t.ChunkOffsets); i++ {
		if t.ChunkOffsets[i] < t.ChunkOffsets[i-1] {
			return malformed(chunksAt, "chunk offset %d (%d) is before chunk %d (%d)", i, t.ChunkOffsets[i], i-1, t.ChunkOffsets[i-1])
		}
	}
	if streamEnd >= 0 && len(t.ChunkOffsets) > 0 && t.ChunkOffsets[len(t.ChunkOffsets)-1] > uint64(streamEnd) {
		return malformed(chunksAt, "chunk offset %d is past the end of the stream (%d)", t.ChunkOffsets[len(t.ChunkOffsets)-1], streamEnd)
	}
	return nil
}

// tableCursor opens a full box payload and reads its entry count, checking
// that count entries of entrySize bytes fit in what remains.
func tableCursor(b *Box, extra, entrySize int) (*bytesource.Cursor, uint32, error) {
	c := bytesource.NewCursor(b.Payload, b.Type)
	c.Skip(4+extra, "version and flags")
	count := bytesource.Next[uint32](c, "entry count")
	if err := c.Err(); err != nil {
		return nil, 0, malformed(b.Start, "%v", err)
	}
	if uint64(count)*uint64(entrySize) > uint64(c.Len()) {
		return nil, 0, malformed(b.Start, "%s declares %d entries but only %d bytes follow", b.Type, count, c.Len())
	}
	return c, count, nil
}

func decodeStts(b *Box) ([]TimeToSampleEntry, error) {
	c, n, err := tableCursor(b, 0, 8)
	if err != nil {
		return nil, err
	}
	entries := make([]TimeToSampleEntry, n)
	for i := range entries {
		entries[i].Count = bytesource.Next[uint32](c, "sample count")
		entries[i].Delta = bytesource.Next[uint32](c, "sample delta")
	}
	return entries, nil
}

func decodeStsc(b *Box) ([]SampleToChunkEntry, error) {
	c, n, err := tableCursor(b, 0, 12)
	if err != nil {
		return nil, err
	}
	entries := make([]SampleToChunkEntry, n)
	for i := range entries {
		e := &entries[i]
		e.FirstChunk = bytesource.Next[uint32](c, "first chunk")
		e.SamplesPerChunk = bytesource.Next[uint32](c, "samples per chunk")
		e.DescriptionIndex = bytesource.Next[uint32](c, "sample description index")

		switch {
		case e.SamplesPerChunk == 0:
			return nil, malformed(b.Start, "sample-to-chunk run %d has zero samples per chunk", i)
		case i == 0 && e.FirstChunk != 1:
			return nil, malformed(b.Start, "first sample-to-chunk run starts at chunk %d", e.FirstChunk)
		case i > 0 && e.FirstChunk <= entries[i-1].FirstChunk:
			return nil, malformed(b.Start, "sample-to-chunk runs are not ascending at run %d", i)
		}
	}
	return entries, nil
}

// decodeChunkOffsets decodes stco (32-bit) or co64 (64-bit) by box type.
func decodeChunkOffsets(b *Box) ([]uint64, error) {
	entrySize := 4
	if b.Type == "co64" {
		entrySize = 8
	}
	c, n, err := tableCursor(b, 0, entrySize)
	if err != nil {
		return nil, err
	}
	offsets := make([]uint64, n)
	for i := range offsets {
		if entrySize == 8 {
			offsets[i] = bytesource.Next[uint64](c, "chunk offset")
		} else {
			offsets[i] = uint64(bytesource.Next[uint32](c, "chunk offset"))
		}
	}
	return offsets, nil
}

// decodeSampleSizes decodes stsz or the compact stz2 variant. A non-zero
// uniform size means the per-sample array is absent.
func decodeSampleSizes(b *Box) (uniform uint32, sizes []uint32, count int64, err error) {
	c := bytesource.NewCursor(b.Payload, b.Type)
	c.Skip(4, "version and flags")

	if b.Type == "stz2" {
		c.Skip(3, "reserved")
		fieldSize := bytesource.Next[uint8](c, "field size")
		n := bytesource.Next[uint32](c, "sample count")
		if err := c.Err(); err != nil {
			return 0, nil, 0, malformed(b.Start, "%v", err)
		}
		if fieldSize != 4 && fieldSize != 8 && fieldSize != 16 {
			return 0, nil, 0, malformed(b.Start, "stz2 field size %d", fieldSize)
		}
		need := (uint64(n)*uint64(fieldSize) + 7) / 8
		if need > uint64(c.Len()) {
			return 0, nil, 0, malformed(b.Start, "stz2 declares %d samples but only %d bytes follow", n, c.Len())
		}
		raw := c.Rest()
		sizes = make([]uint32, n)
		for i := range sizes {
			switch fieldSize {
			case 4:
				v := raw[i/2]
				if i%2 == 0 {
					sizes[i] = uint32(v >> 4)
				} else {
					sizes[i] = uint32(v & 0x0F)
				}
			case 8:
				sizes[i] = uint32(raw[i])
			case 16:
				sizes[i] = uint32(raw[2*i])<<8 | uint32(raw[2*i+1])
			}
		}
		return 0, sizes, int64(n), nil
	}

	uniform = bytesource.Next[uint32](c, "sample size")
	n := bytesource.Next[uint32](c, "sample count")
	if err := c.Err(); err != nil {
		return 0, nil, 0, malformed(b.Start, "%v", err)
	}
	if uniform != 0 {
		return uniform, nil, int64(n), nil
	}
	if uint64(n)*4 > uint64(c.Len()) {
		return 0, nil, 0, malformed(b.Start, "stsz declares %d samples but only %d bytes follow", n, c.Len())
	}
	sizes = make([]uint32, n)
	for i := range sizes {
		sizes[i] = bytesource.Next[uint32](c, "entry size")
	}
	return 0, sizes, int64(n), nil
}

// decodeStss decodes the 1-based sync sample list into zero-based indices.
func decodeStss(b *Box, sampleCount int64) ([]uint32, error) {
	c, n, err := tableCursor(b, 0, 4)
	if err != nil {
		return nil, err
	}
	syncs := make([]uint32, n)
	for i := range syncs {
		v := bytesource.Next[uint32](c, "sync sample")
		if v == 0 || int64(v) > sampleCount {
			return nil, malformed(b.Start, "sync sample %d outside 1..%d", v, sampleCount)
		}
		syncs[i] = v - 1
		if i > 0 && syncs[i] <= syncs[i-1] {
			return nil, malformed(b.Start, "sync samples are not ascending at entry %d", i)
		}
	}
	return syncs, nil
}
