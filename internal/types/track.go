package types

// Chunk locates one compressed audio sample in the byte stream.
type Chunk struct {
	// Timestamp is the decode time in milliseconds.
	Timestamp   int64
	Offset      int64
	Size        int64
	SampleIndex int
	// Sync is set when decoding can start at this chunk.
	Sync bool
}

// End returns the offset one past the chunk's last byte.
func (c Chunk) End() int64 {
	return c.Offset + c.Size
}

// TrackProvider produces ordered compressed chunks of one track.
//
// A provider owns its cursor and must not be used from two goroutines at
// once. NextChunk returns io.EOF once the track is exhausted and keeps
// returning it until Seek is called.
type TrackProvider interface {
	// Duration returns the track length in milliseconds, or DurationUnknown.
	Duration() int64
	// NextChunk returns the next chunk in decode order.
	NextChunk() (Chunk, error)
	// Seek repositions the cursor at or before target milliseconds and returns
	// the timestamp actually seeked to.
	Seek(target int64) (int64, error)
}
