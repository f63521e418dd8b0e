package adts

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/types"
)

// Options configures the ADTS probe and provider.
type Options struct {
	Logger *slog.Logger
	// ScanDistance bounds the bytes searched for a header. Zero means
	// DefaultScanDistance.
	ScanDistance int
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o Options) scanDistance() int {
	if o.ScanDistance <= 0 {
		return DefaultScanDistance
	}
	return o.ScanDistance
}

// Probe detects ADTS streams.
type Probe struct {
	opts Options
}

// NewProbe creates an ADTS probe.
func NewProbe(opts Options) *Probe {
	return &Probe{opts: opts}
}

// handle is the Track of a Matched ADTS outcome.
type handle struct {
	header FrameHeader
}

// Name returns "adts".
func (p *Probe) Name() string {
	return formatName
}

// MatchesHint reports whether the hints name an AAC MIME type or extension.
func (p *Probe) MatchesHint(h types.Hints) bool {
	return h.Matches(types.FormatADTS)
}

// Probe scans for a frame header within the scan distance.
func (p *Probe) Probe(ref types.Reference, src bytesource.Source) (types.Outcome, error) {
	h, ok, err := FindHeader(src, p.opts.scanDistance())
	if err != nil || !ok {
		return types.NoMatchOutcome(), err
	}
	p.opts.logger().Debug("track is an ADTS stream",
		slog.String("identifier", ref.Identifier),
		slog.Int64("offset", h.Offset))

	title, author, uri := types.DefaultInfo(src, ref)
	meta := types.NewTrackMetadata(
		types.FirstNonEmpty(ref.Title, title),
		author,
		types.DurationUnknown,
		ref.Identifier,
		true,
		uri,
		[]types.KeyValue{
			{Key: "container", Value: formatName},
			{Key: "codec", Value: "mp4a"},
			{Key: "object_type", Value: strconv.Itoa(int(h.ObjectType()))},
			{Key: "sample_rate", Value: strconv.Itoa(h.SampleRate())},
			{Key: "channels", Value: strconv.Itoa(h.Channels())},
			{Key: "first_frame", Value: strconv.FormatInt(h.Offset, 10)},
		},
	)
	return types.MatchedOutcome(formatName, meta, &handle{header: h}), nil
}

// NewProvider builds the provider of a Matched outcome produced by Probe.
func (p *Probe) NewProvider(src bytesource.Source, o types.Outcome) (types.TrackProvider, error) {
	h, ok := o.Track.(*handle)
	if o.Kind != types.Matched || !ok {
		return nil, fmt.Errorf("adts: outcome %s was not produced by this probe", o)
	}
	return NewProvider(src, h.header.Offset, p.opts), nil
}
