package mp4

import (
	"log/slog"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/types"
)

// Options configures parsing and playback of MP4 files.
type Options struct {
	Logger *slog.Logger
	// MaxTableBytes bounds the payload of any decoded box. Zero means
	// DefaultMaxTableBytes.
	MaxTableBytes int64
	// SeekAllSamples treats every sample as a sync sample when a track has
	// no stss box, instead of only allowing seeks to the start.
	SeekAllSamples bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// File is a parsed MP4 file: its box tree, track descriptors and tags.
type File struct {
	Tree     *Tree
	Tags     *Tags
	Brand    string
	Tracks   []TrackDescriptor
	Warnings []types.Warning

	streamEnd int64
}

// Load parses the box tree of src from its current position and extracts
// tracks and tags.
func Load(src bytesource.Source, opts Options) (*File, error) {
	tree, err := Parse(src, opts.MaxTableBytes)
	if err != nil {
		return nil, err
	}

	f := &File{Tree: tree, streamEnd: -1}
	if n, ok := src.Length(); ok {
		f.streamEnd = n
	}
	if i, ok := tree.Child(-1, "ftyp"); ok {
		if p := tree.Box(i).Payload; len(p) >= 4 {
			f.Brand = string(p[:4])
		}
	}

	if f.Tracks, err = ExtractTracks(tree); err != nil {
		return nil, err
	}
	for i := range f.Tracks {
		f.Warnings = append(f.Warnings, f.Tracks[i].Warnings...)
	}

	var warnings []types.Warning
	f.Tags, warnings = ExtractTags(tree)
	f.Warnings = append(f.Warnings, warnings...)

	opts.logger().Debug("mp4 file loaded",
		slog.String("brand", f.Brand),
		slog.Int("boxes", tree.Len()),
		slog.Int("tracks", len(f.Tracks)),
		slog.Int("warnings", len(f.Warnings)))
	return f, nil
}

// Track returns the descriptor with the given track id.
func (f *File) Track(trackID uint32) (*TrackDescriptor, bool) {
	for i := range f.Tracks {
		if f.Tracks[i].TrackID == trackID {
			return &f.Tracks[i], true
		}
	}
	return nil, false
}

// SampleTable decodes the sample tables of a track.
func (f *File) SampleTable(trackID uint32) (*SampleTable, error) {
	d, ok := f.Track(trackID)
	if !ok {
		return nil, unsupported("no track with id %d", trackID)
	}
	if d.stbl < 0 {
		return nil, unsupported(ReasonUnsupportedLayout)
	}
	return decodeSampleTable(f.Tree, d.stbl, f.streamEnd)
}
