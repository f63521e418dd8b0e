package audioprobe_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/audioprobe"
)

func box(typ string, parts ...[]byte) []byte {
	body := bytes.Join(parts, nil)
	b := binary.BigEndian.AppendUint32(nil, uint32(8+len(body)))
	b = append(b, typ...)
	return append(b, body...)
}

func be32(vs ...uint32) []byte {
	var b []byte
	for _, v := range vs {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return b
}

// m4a builds an audio-only MP4 with n samples of 10 bytes in a single chunk.
func m4a(n int, title string) []byte {
	head := box("ftyp", []byte("M4A "), be32(0), []byte("M4A isom"))
	entry := box("mp4a", make([]byte, 8), make([]byte, 8), []byte{0, 2, 0, 16, 0, 0, 0, 0}, be32(44100<<16))
	build := func(chunkOffset uint32) []byte {
		stbl := box("stbl",
			box("stsd", be32(0, 1), entry),
			box("stts", be32(0, 1, uint32(n), 1024)),
			box("stsc", be32(0, 1, 1, uint32(n), 1)),
			box("stsz", be32(0, 10, uint32(n))),
			box("stco", be32(0, 1, chunkOffset)),
		)
		mdia := box("mdia",
			box("mdhd", be32(0, 0, 0, 44100, uint32(n*1024), 0)),
			box("hdlr", be32(0, 0), []byte("soun"), make([]byte, 12), []byte{0}),
			box("minf", stbl),
		)
		trak := box("trak", box("tkhd", be32(0, 0, 0, 1), make([]byte, 68)), mdia)
		ilst := box("ilst", box("\xA9nam", box("data", be32(1, 0), []byte(title))))
		udta := box("udta", box("meta", be32(0), box("hdlr", be32(0, 0), []byte("mdir"), make([]byte, 13)), ilst))
		return box("moov", trak, udta)
	}
	moov := build(0)
	moov = build(uint32(len(head) + len(moov) + 8))

	payload := make([]byte, 0, n*10)
	for i := range n {
		payload = append(payload, bytes.Repeat([]byte{byte(i)}, 10)...)
	}
	return bytes.Join([][]byte{head, moov, box("mdat", payload)}, nil)
}

// adtsStream builds n AAC-LC 44.1 kHz stereo frames of 20 bytes.
func adtsStream(n int) []byte {
	const length = 20
	frame := []byte{0xFF, 0xF1, 0x50, 0x80, byte(length >> 3), byte(length&0x07)<<5 | 0x1F, 0xFC}
	frame = append(frame, bytes.Repeat([]byte{0xA5}, length-len(frame))...)
	return bytes.Repeat(frame, n)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDetectFile_MP4(t *testing.T) {
	data := m4a(5, "Freddie Freeloader")
	path := writeFile(t, "song.m4a", data)

	d, err := audioprobe.DetectFile(context.Background(), path)
	require.NoError(t, err)
	defer d.Close()

	require.Equal(t, audioprobe.Matched, d.Kind)
	assert.Equal(t, "mp4", d.Format)
	assert.Equal(t, "Freddie Freeloader", d.Metadata.Title)
	assert.Equal(t, path, d.Metadata.Identifier)
	assert.Equal(t, path, d.Metadata.URI)
	assert.Equal(t, int64(5*1024*1000/44100), d.Metadata.Duration)

	track, err := d.OpenTrack()
	require.NoError(t, err)
	assert.Equal(t, d.Metadata.Duration, track.Duration())

	for i := range 5 {
		c, err := track.NextChunk()
		require.NoError(t, err)
		b, err := audioprobe.ReadChunk(d.Source(), c)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{byte(i)}, 10), b)
	}
	_, err = track.NextChunk()
	assert.ErrorIs(t, err, io.EOF)

	// Without a sync table only the start is reachable.
	_, err = track.Seek(0)
	require.NoError(t, err)
	_, err = track.Seek(100)
	var uv *audioprobe.UnsupportedVariantError
	assert.ErrorAs(t, err, &uv)

	require.NoError(t, d.Close())
	_, err = d.Source().Read(make([]byte, 1))
	assert.ErrorIs(t, err, audioprobe.ErrClosed)
}

func TestDetectFile_SeekAllSamples(t *testing.T) {
	path := writeFile(t, "song.m4a", m4a(8, "x"))

	d, err := audioprobe.DetectFile(context.Background(), path, audioprobe.WithSeekAllSamples())
	require.NoError(t, err)
	defer d.Close()

	track, err := d.OpenTrack()
	require.NoError(t, err)
	at, err := track.Seek(100)
	require.NoError(t, err)
	assert.LessOrEqual(t, at, int64(100))

	c, err := track.NextChunk()
	require.NoError(t, err)
	assert.Equal(t, 4, c.SampleIndex)
	assert.True(t, c.Sync)
}

func TestDetect_ADTSStream(t *testing.T) {
	data := append([]byte{0x00, 0x00, 0x00}, adtsStream(4)...)
	src := audioprobe.NewSequentialSource(bytes.NewReader(data), audioprobe.WithInfo("Live", "Station", "http://radio.example/aac"))

	d, err := audioprobe.Detect(context.Background(), src, audioprobe.Reference{Identifier: "live"})
	require.NoError(t, err)
	require.Equal(t, audioprobe.Matched, d.Kind)
	assert.Equal(t, "adts", d.Format)
	assert.True(t, d.Metadata.IsStream)
	assert.Equal(t, audioprobe.DurationUnknown, d.Metadata.Duration)
	assert.Equal(t, "Live", d.Metadata.Title)

	track, err := d.OpenTrack()
	require.NoError(t, err)

	var frames int
	for {
		c, err := track.NextChunk()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		b, err := audioprobe.ReadChunk(src, c)
		require.NoError(t, err)
		assert.Equal(t, data[c.Offset:c.End()], b)
		frames++
	}
	assert.Equal(t, 4, frames)

	// Detect does not take ownership of the source.
	require.NoError(t, d.Close())
	assert.NoError(t, src.Seek(src.Position()))
}

func TestDetectFile_HintDoesNotOverrideContent(t *testing.T) {
	path := writeFile(t, "mislabelled.aac", m4a(2, "x"))

	d, err := audioprobe.DetectFile(context.Background(), path)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, "mp4", d.Format)

	d2, err := audioprobe.DetectFile(context.Background(), path, audioprobe.WithHints(audioprobe.Hints{MimeType: "audio/aac"}))
	require.NoError(t, err)
	defer d2.Close()
	assert.Equal(t, "mp4", d2.Format)
}

func TestDetectFile_NoMatch(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("just some text, no audio here"))

	d, err := audioprobe.DetectFile(context.Background(), path)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, audioprobe.NoMatch, d.Kind)
	_, err = d.OpenTrack()
	assert.Error(t, err)
}

func TestDetectFile_Unsupported(t *testing.T) {
	data := append(box("ftyp", []byte("isom"), be32(0)), box("mdat", make([]byte, 32))...)
	path := writeFile(t, "empty.mp4", data)

	d, err := audioprobe.DetectFile(context.Background(), path)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, audioprobe.Unsupported, d.Kind)
	assert.NotEmpty(t, d.Reason)

	_, err = d.OpenTrack()
	var uv *audioprobe.UnsupportedVariantError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, d.Reason, uv.Reason)
}

func TestDetectFile_Malformed(t *testing.T) {
	data := m4a(3, "x")
	path := writeFile(t, "cut.m4a", data[:60])

	_, err := audioprobe.DetectFile(context.Background(), path)
	var mc *audioprobe.MalformedContainerError
	require.ErrorAs(t, err, &mc)
	assert.Contains(t, err.Error(), path)
}

func TestDetectFile_Missing(t *testing.T) {
	_, err := audioprobe.DetectFile(context.Background(), filepath.Join(t.TempDir(), "absent.m4a"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDetectFiles(t *testing.T) {
	paths := []string{
		writeFile(t, "a.m4a", m4a(3, "first")),
		writeFile(t, "b.aac", adtsStream(3)),
		writeFile(t, "c.m4a", m4a(4, "third")),
	}

	ds, err := audioprobe.DetectFiles(context.Background(), paths, audioprobe.WithConcurrency(2))
	require.NoError(t, err)
	require.Len(t, ds, 3)
	defer func() {
		for _, d := range ds {
			d.Close()
		}
	}()

	assert.Equal(t, "first", ds[0].Metadata.Title)
	assert.Equal(t, "adts", ds[1].Format)
	assert.Equal(t, "third", ds[2].Metadata.Title)

	_, err = audioprobe.DetectFiles(context.Background(), append(paths, filepath.Join(t.TempDir(), "absent")))
	assert.Error(t, err)

	ds, err = audioprobe.DetectFiles(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, ds)
}

func TestDetect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src, err := audioprobe.NewSeekableSource(bytes.NewReader(m4a(1, "x")))
	require.NoError(t, err)
	_, err = audioprobe.Detect(ctx, src, audioprobe.Reference{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetVersionInfo(t *testing.T) {
	info := audioprobe.GetVersionInfo()
	assert.Equal(t, audioprobe.Version, info.Version)
	assert.Equal(t, audioprobe.Version, audioprobe.GetVersion())
	assert.NotEmpty(t, info.GoVersion)
}
