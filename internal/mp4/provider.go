package mp4

import (
	"io"
	"log/slog"

	"github.com/simonhull/audioprobe/internal/types"
)

// cursor is the read position of a Provider within its sample table.
type cursor struct {
	sample        int64
	chunk         int
	stscRun       int
	sampleInChunk int64
	offsetInChunk int64
	sttsRun       int
	sttsLeft      uint32
	dts           uint64
}

// Provider yields the samples of one track in decode order.
type Provider struct {
	table  *SampleTable
	logger *slog.Logger
	cur    cursor

	timescale      uint32
	duration       int64
	seekAllSamples bool
}

var _ types.TrackProvider = (*Provider)(nil)

// NewProvider creates a provider positioned at the first sample.
func NewProvider(d *TrackDescriptor, table *SampleTable, opts Options) *Provider {
	p := &Provider{
		table:          table,
		logger:         opts.logger(),
		timescale:      d.Timescale,
		duration:       d.DurationMillis(),
		seekAllSamples: opts.SeekAllSamples,
	}
	p.setSample(0)
	return p
}

// Duration returns the track duration in milliseconds.
func (p *Provider) Duration() int64 {
	return p.duration
}

// NextChunk returns the next sample, or io.EOF after the last one.
func (p *Provider) NextChunk() (types.Chunk, error) {
	t := p.table
	if p.cur.sample >= t.sampleCount {
		return types.Chunk{}, io.EOF
	}

	size := t.SampleSize(p.cur.sample)
	c := types.Chunk{
		Timestamp:   p.millis(p.cur.dts),
		Offset:      int64(t.ChunkOffsets[p.cur.chunk]) + p.cur.offsetInChunk,
		Size:        int64(size),
		SampleIndex: int(p.cur.sample),
		Sync:        (t.SyncSamples == nil && p.seekAllSamples) || t.IsSync(p.cur.sample),
	}
	p.advance(size)
	return c, nil
}

// advance moves past the current sample of the given size.
func (p *Provider) advance(size uint32) {
	t, c := p.table, &p.cur

	c.sampleInChunk++
	if uint32(c.sampleInChunk) == t.SampleToChunk[c.stscRun].SamplesPerChunk {
		c.chunk++
		c.sampleInChunk = 0
		c.offsetInChunk = 0
		if c.stscRun+1 < len(t.SampleToChunk) && uint32(c.chunk+1) == t.SampleToChunk[c.stscRun+1].FirstChunk {
			c.stscRun++
		}
	} else {
		c.offsetInChunk += int64(size)
	}

	c.dts += uint64(t.TimeToSample[c.sttsRun].Delta)
	c.sttsLeft--
	for c.sttsLeft == 0 && c.sttsRun+1 < len(t.TimeToSample) {
		c.sttsRun++
		c.sttsLeft = t.TimeToSample[c.sttsRun].Count
	}
	c.sample++
}

// setSample positions the cursor on sample s.
func (p *Provider) setSample(s int64) {
	t := p.table
	if s >= t.sampleCount {
		p.cur = cursor{sample: t.sampleCount}
		return
	}

	chunk, run, inChunk := t.locate(s)
	var off int64
	for i := s - inChunk; i < s; i++ {
		off += int64(t.SampleSize(i))
	}

	r := t.sttsRun(s)
	p.cur = cursor{
		sample:        s,
		chunk:         chunk,
		stscRun:       run,
		sampleInChunk: inChunk,
		offsetInChunk: off,
		sttsRun:       r,
		sttsLeft:      uint32(t.sttsStartSample[r] + int64(t.TimeToSample[r].Count) - s),
		dts:           t.DecodeTime(s),
	}
}

// Seek moves to the last sync sample at or before target milliseconds and
// returns its timestamp. The next NextChunk call returns that sample.
func (p *Provider) Seek(target int64) (int64, error) {
	target = max(target, 0)
	t := p.table
	ts := uint64(target) * uint64(p.timescale) / 1000

	var s int64
	switch {
	case t.sampleCount == 0:
		s = 0
	case t.SyncSamples != nil:
		s, _ = t.LastSyncAtOrBefore(ts)
	case p.seekAllSamples:
		s = t.LastSampleAtOrBefore(ts)
	default:
		if t.LastSampleAtOrBefore(ts) != 0 {
			return 0, unsupported("track has no sync sample table; only seeking to the start is possible")
		}
	}

	p.setSample(s)
	actual := p.millis(p.cur.dts)
	p.logger.Debug("mp4 seek",
		slog.Int64("target_ms", target),
		slog.Int64("actual_ms", actual),
		slog.Int64("sample", s))
	return actual, nil
}

func (p *Provider) millis(dts uint64) int64 {
	return int64(dts * 1000 / uint64(p.timescale))
}
