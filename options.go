package audioprobe

import (
	"log/slog"

	"github.com/simonhull/audioprobe/internal/adts"
	"github.com/simonhull/audioprobe/internal/mp4"
	"github.com/simonhull/audioprobe/internal/registry"
)

// Option configures detection and playback.
//
// Example:
//
//	d, err := audioprobe.DetectFile(ctx, "song.m4a",
//	    audioprobe.WithLogger(logger),
//	    audioprobe.WithSeekAllSamples(),
//	)
type Option func(*options)

type options struct {
	logger         *slog.Logger
	hints          Hints
	scanDistance   int
	lookahead      int
	maxTableBytes  int64
	concurrency    int
	seekAllSamples bool
	hintsSet       bool
}

func defaultOptions() *options {
	return &options{
		logger:        slog.New(slog.DiscardHandler),
		scanDistance:  adts.DefaultScanDistance,
		lookahead:     registry.DefaultLookahead,
		maxTableBytes: mp4.DefaultMaxTableBytes,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger probes report their decisions to. The default
// discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHints sets the MIME type and extension hints. DetectFile otherwise
// derives the extension from the path.
func WithHints(h Hints) Option {
	return func(o *options) {
		o.hints = h
		o.hintsSet = true
	}
}

// WithScanDistance bounds how far the ADTS probe looks for a frame header.
func WithScanDistance(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.scanDistance = n
		}
	}
}

// WithLookahead sets the mark limit of each probe. On forward-only sources
// it bounds how much a probe can read and still be rewound.
func WithLookahead(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.lookahead = n
		}
	}
}

// WithMaxTableSize bounds the bytes retained for any single MP4 table box.
// Files with larger tables are reported as unsupported.
func WithMaxTableSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTableBytes = n
		}
	}
}

// WithSeekAllSamples lets MP4 tracks without a sync sample table seek to any
// sample. By default such tracks can only seek to the start.
func WithSeekAllSamples() Option {
	return func(o *options) {
		o.seekAllSamples = true
	}
}

// WithConcurrency limits the parallel probes of DetectFiles. The default is
// runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func (o *options) mp4Options() mp4.Options {
	return mp4.Options{
		Logger:         o.logger,
		MaxTableBytes:  o.maxTableBytes,
		SeekAllSamples: o.seekAllSamples,
	}
}

func (o *options) adtsOptions() adts.Options {
	return adts.Options{Logger: o.logger, ScanDistance: o.scanDistance}
}

// registry builds the probe chain: mp4, then adts.
func (o *options) registry() *registry.Registry {
	return registry.New(o.logger, o.lookahead,
		mp4.NewProbe(o.mp4Options()),
		adts.NewProbe(o.adtsOptions()),
	)
}
