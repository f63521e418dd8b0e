package mp4

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/types"
)

// Reasons reported on Unsupported outcomes.
const (
	ReasonNoAudio           = "No supported audio format in the MP4 file."
	ReasonUnsupportedLayout = "MP4 file uses an unsupported format."
)

// Probe detects MP4 files and builds providers for their audio track.
type Probe struct {
	opts Options
}

// NewProbe creates an MP4 probe.
func NewProbe(opts Options) *Probe {
	return &Probe{opts: opts}
}

// handle is the Track of a Matched MP4 outcome.
type handle struct {
	table *SampleTable
	desc  TrackDescriptor
}

// Name returns "mp4".
func (p *Probe) Name() string {
	return formatName
}

// MatchesHint reports whether the hints name an MP4 MIME type or extension.
func (p *Probe) MatchesHint(h types.Hints) bool {
	return h.Matches(types.FormatMP4)
}

// Probe checks the ftyp signature and, when present, parses the file and
// selects its audio track. The source is left wherever parsing stopped.
func (p *Probe) Probe(ref types.Reference, src bytesource.Source) (types.Outcome, error) {
	log := p.opts.logger()
	start := src.Position()

	ok, err := HasSignature(src)
	if err != nil || !ok {
		return types.NoMatchOutcome(), err
	}
	log.Debug("track is an MP4 file", slog.String("identifier", ref.Identifier))

	if err := src.Seek(start); err != nil {
		return types.Outcome{}, err
	}
	f, err := Load(src, p.opts)
	if err != nil {
		return p.unsupported(ReasonUnsupportedLayout, err)
	}

	desc, err := SelectAudioTrack(f.Tracks)
	if err != nil {
		return p.unsupported(ReasonNoAudio, err)
	}
	table, err := f.SampleTable(desc.TrackID)
	if err != nil {
		return p.unsupported(ReasonUnsupportedLayout, err)
	}
	if _, fragmented := f.Tree.Find(-1, "moov", "mvex"); fragmented && table.SampleCount() == 0 {
		return p.unsupported(ReasonUnsupportedLayout, unsupported("samples are stored in movie fragments"))
	}

	title, author, uri := types.DefaultInfo(src, ref)
	meta := types.NewTrackMetadata(
		types.FirstNonEmpty(f.Tags.Title(), title),
		types.FirstNonEmpty(f.Tags.Artist(), author),
		desc.DurationMillis(),
		ref.Identifier,
		false,
		uri,
		describe(f, desc, table),
	)

	o := types.MatchedOutcome(formatName, meta, &handle{desc: *desc, table: table})
	o.Warnings = f.Warnings
	return o, nil
}

// unsupported turns an UnsupportedVariantError into an Unsupported outcome
// and passes every other error through.
func (p *Probe) unsupported(reason string, err error) (types.Outcome, error) {
	var uv *types.UnsupportedVariantError
	if !errors.As(err, &uv) {
		return types.Outcome{}, err
	}
	p.opts.logger().Debug("mp4 file not playable",
		slog.String("reason", reason),
		slog.String("detail", uv.Reason))
	o := types.UnsupportedOutcome(formatName, reason)
	o.Warnings = []types.Warning{{Stage: "tracks", Message: uv.Reason}}
	return o, nil
}

// NewProvider builds the provider of a Matched outcome produced by Probe.
func (p *Probe) NewProvider(_ bytesource.Source, o types.Outcome) (types.TrackProvider, error) {
	h, ok := o.Track.(*handle)
	if o.Kind != types.Matched || !ok {
		return nil, fmt.Errorf("mp4: outcome %s was not produced by this probe", o)
	}
	return NewProvider(&h.desc, h.table, p.opts), nil
}

func describe(f *File, d *TrackDescriptor, t *SampleTable) []types.KeyValue {
	extra := []types.KeyValue{
		{Key: "container", Value: formatName},
	}
	add := func(k, v string) {
		if v != "" {
			extra = append(extra, types.KeyValue{Key: k, Value: v})
		}
	}
	add("brand", f.Brand)
	add("codec", d.Codec)
	add("codec_name", CodecName(d.Codec))
	if d.AudioConfig != nil {
		add("aac_profile", AACProfile(int(d.AudioConfig.Type)))
	}
	if d.SampleRate > 0 {
		add("sample_rate", strconv.Itoa(d.SampleRate))
	}
	if d.Channels > 0 {
		add("channels", strconv.Itoa(d.Channels))
	}
	add("track_id", strconv.FormatUint(uint64(d.TrackID), 10))
	add("samples", strconv.FormatInt(t.SampleCount(), 10))
	if t.SyncSamples != nil {
		add("sync_samples", strconv.Itoa(len(t.SyncSamples)))
	}

	for k := TagAlbum; k < numTagKeys; k++ {
		if v, ok := f.Tags.Get(k); ok {
			add(k.String(), v)
		}
	}
	for _, raw := range f.Tags.Raw {
		add("tag:"+raw.Key, raw.Value)
	}
	return extra
}
