package mp4

import (
	"fmt"
	"math"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/types"
)

// HandlerAudio is the hdlr handler type of sound tracks.
const HandlerAudio = "soun"

// supportedCodecs lists the sample entry types a provider can feed to a
// decoder.
var supportedCodecs = map[string]bool{
	"mp4a": true,
}

// TrackDescriptor describes one trak box.
type TrackDescriptor struct {
	// AudioConfig is decoded from the esds DecoderSpecificInfo of mp4a
	// entries; nil when absent or unreadable.
	AudioConfig *mpeg4audio.AudioSpecificConfig
	Handler     string
	Codec       string
	Warnings    []types.Warning
	// Duration is in Timescale units.
	Duration   uint64
	TrackID    uint32
	Timescale  uint32
	Channels   int
	SampleRate int
	// ObjectTypeIndication is the esds DecoderConfigDescriptor object type
	// (0x40 for MPEG-4 audio).
	ObjectTypeIndication uint8

	stbl int
}

// IsAudio reports whether the track carries sound.
func (d *TrackDescriptor) IsAudio() bool {
	return d.Handler == HandlerAudio
}

// Supported reports whether the track can be played.
func (d *TrackDescriptor) Supported() bool {
	return d.IsAudio() && supportedCodecs[d.Codec]
}

// DurationMillis converts Duration through the timescale.
func (d *TrackDescriptor) DurationMillis() int64 {
	if d.Timescale == 0 {
		return 0
	}
	return int64(d.Duration * 1000 / uint64(d.Timescale))
}

// ExtractTracks decodes the descriptor of every moov/trak in the tree.
// A file without moov is an UnsupportedVariantError.
func ExtractTracks(tree *Tree) ([]TrackDescriptor, error) {
	moov, ok := tree.Child(-1, "moov")
	if !ok {
		return nil, unsupported("file has no movie box")
	}

	var tracks []TrackDescriptor
	for trak := range tree.ChildrenOfType(moov, "trak") {
		d, err := extractTrack(tree, trak)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, d)
	}
	return tracks, nil
}

// SelectAudioTrack returns the first playable audio track.
func SelectAudioTrack(tracks []TrackDescriptor) (*TrackDescriptor, error) {
	for i := range tracks {
		if tracks[i].Supported() {
			return &tracks[i], nil
		}
	}
	return nil, unsupported(ReasonNoAudio)
}

func extractTrack(tree *Tree, trak int) (TrackDescriptor, error) {
	var d TrackDescriptor
	at := tree.Box(trak).Start

	if i, ok := tree.Child(trak, "tkhd"); ok {
		id, err := decodeTkhd(tree.Box(i))
		if err != nil {
			return d, err
		}
		d.TrackID = id
	}

	mdia, ok := tree.Child(trak, "mdia")
	if !ok {
		return d, malformed(at, "track has no media box")
	}
	mdhd, ok := tree.Child(mdia, "mdhd")
	if !ok {
		return d, malformed(tree.Box(mdia).Start, "media box has no header")
	}
	var err error
	if d.Timescale, d.Duration, err = decodeMdhd(tree.Box(mdhd)); err != nil {
		return d, err
	}
	if hdlr, ok := tree.Child(mdia, "hdlr"); ok {
		if d.Handler, err = decodeHdlr(tree.Box(hdlr)); err != nil {
			return d, err
		}
	}

	d.stbl = -1
	stbl, ok := tree.Find(mdia, "minf", "stbl")
	if !ok {
		return d, nil
	}
	d.stbl = stbl

	if d.Duration == 0 || d.Duration == 1<<32-1 || d.Duration == 1<<64-1 {
		if i, ok := tree.Child(stbl, "stts"); ok {
			if runs, err := decodeStts(tree.Box(i)); err == nil {
				var total uint64
				for _, r := range runs {
					total += uint64(r.Count) * uint64(r.Delta)
				}
				d.Duration = total
			}
		}
	}

	if i, ok := tree.Child(stbl, "stsd"); ok {
		if err := decodeStsd(tree.Box(i), &d); err != nil {
			return d, err
		}
	}
	return d, nil
}

func decodeTkhd(b *Box) (uint32, error) {
	c := bytesource.NewCursor(b.Payload, "tkhd")
	version := bytesource.Next[uint8](c, "version")
	c.Skip(3, "flags")
	if version == 1 {
		c.Skip(16, "creation and modification time")
	} else {
		c.Skip(8, "creation and modification time")
	}
	id := bytesource.Next[uint32](c, "track id")
	if err := c.Err(); err != nil {
		return 0, malformed(b.Start, "%v", err)
	}
	return id, nil
}

func decodeMdhd(b *Box) (timescale uint32, duration uint64, err error) {
	c := bytesource.NewCursor(b.Payload, "mdhd")
	version := bytesource.Next[uint8](c, "version")
	c.Skip(3, "flags")
	switch version {
	case 0:
		c.Skip(8, "creation and modification time")
		timescale = bytesource.Next[uint32](c, "timescale")
		duration = uint64(bytesource.Next[uint32](c, "duration"))
	case 1:
		c.Skip(16, "creation and modification time")
		timescale = bytesource.Next[uint32](c, "timescale")
		duration = bytesource.Next[uint64](c, "duration")
	default:
		return 0, 0, unsupported("mdhd version %d", version)
	}
	if err := c.Err(); err != nil {
		return 0, 0, malformed(b.Start, "%v", err)
	}
	if timescale == 0 {
		return 0, 0, malformed(b.Start, "media timescale is zero")
	}
	return timescale, duration, nil
}

func decodeHdlr(b *Box) (string, error) {
	c := bytesource.NewCursor(b.Payload, "hdlr")
	c.Skip(8, "version, flags and pre-defined")
	handler := c.Bytes(4, "handler type")
	if err := c.Err(); err != nil {
		return "", malformed(b.Start, "%v", err)
	}
	return string(handler), nil
}

// decodeStsd reads the codec of the first sample description and, for sound
// tracks, its audio fields.
func decodeStsd(b *Box, d *TrackDescriptor) error {
	c := bytesource.NewCursor(b.Payload, "stsd")
	c.Skip(4, "version and flags")
	count := bytesource.Next[uint32](c, "entry count")
	if err := c.Err(); err != nil {
		return malformed(b.Start, "%v", err)
	}
	if count == 0 {
		return nil
	}

	base := b.DataOffset() + int64(c.Offset())
	first := true
	return walkSlice(c.Rest(), base, func(h header, payload []byte) error {
		if !first {
			return nil
		}
		first = false
		d.Codec = h.typ
		if d.IsAudio() {
			decodeAudioEntry(h.typ, payload, base+int64(h.len), d)
		}
		return nil
	})
}

// decodeAudioEntry reads an AudioSampleEntry including the QuickTime version
// 1 and 2 extensions. Problems are recorded as warnings.
func decodeAudioEntry(typ string, payload []byte, at int64, d *TrackDescriptor) {
	warn := func(format string, args ...any) {
		d.Warnings = append(d.Warnings, types.Warning{
			Stage:   "codec",
			Message: fmt.Sprintf(format, args...),
			Offset:  at,
		})
	}

	c := bytesource.NewCursor(payload, typ)
	c.Skip(8, "reserved and data reference index")
	version := bytesource.Next[uint16](c, "version")
	c.Skip(6, "revision and vendor")
	channels := bytesource.Next[uint16](c, "channel count")
	c.Skip(6, "sample size, compression id and packet size")
	rate := bytesource.Next[uint32](c, "sample rate")
	d.Channels = int(channels)
	d.SampleRate = int(rate >> 16)

	switch version {
	case 1:
		c.Skip(16, "sound description v1")
	case 2:
		c.Skip(4, "struct size")
		rate64 := bytesource.Next[uint64](c, "sample rate")
		ch := bytesource.Next[uint32](c, "channel count")
		c.Skip(20, "sound description v2")
		d.SampleRate = int(math.Float64frombits(rate64))
		d.Channels = int(ch)
	}
	if err := c.Err(); err != nil {
		warn("%v", err)
		return
	}

	if typ != "mp4a" {
		return
	}
	esds, ok := findEsds(c.Rest(), at+int64(c.Offset()))
	if !ok {
		return
	}
	oti, dsi, err := parseESDescriptors(esds)
	if err != nil {
		warn("esds: %v", err)
		return
	}
	d.ObjectTypeIndication = oti
	if len(dsi) == 0 {
		return
	}

	var conf mpeg4audio.AudioSpecificConfig
	if err := conf.Unmarshal(dsi); err != nil {
		warn("audio specific config: %v", err)
		return
	}
	d.AudioConfig = &conf
	if conf.SampleRate > 0 {
		d.SampleRate = conf.SampleRate
	}
	if conf.ChannelCount > 0 {
		d.Channels = conf.ChannelCount
	}
}

// findEsds locates the esds payload among the boxes after an audio sample
// entry, looking inside a QuickTime wave box as well.
func findEsds(b []byte, base int64) ([]byte, bool) {
	var found []byte
	_ = walkSlice(b, base, func(h header, payload []byte) error {
		switch h.typ {
		case "esds":
			if found == nil {
				found = payload
			}
		case "wave":
			if p, ok := findEsds(payload, base); ok && found == nil {
				found = p
			}
		}
		return nil
	})
	return found, found != nil
}
