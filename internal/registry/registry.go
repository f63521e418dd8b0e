// Package registry runs format probes against a byte source in order.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/types"
)

// DefaultLookahead is the mark limit given to each probe.
const DefaultLookahead = 64 << 10

// Probe is the interface every container probe implements.
type Probe interface {
	// Name returns the format name reported on outcomes.
	Name() string
	// MatchesHint reports whether out-of-band hints point at this format.
	MatchesHint(h types.Hints) bool
	// Probe inspects src from its current position. A NoMatch outcome may
	// leave src anywhere; the registry restores it.
	Probe(ref types.Reference, src bytesource.Source) (types.Outcome, error)
	// NewProvider builds a track provider from a Matched outcome this probe
	// returned.
	NewProvider(src bytesource.Source, o types.Outcome) (types.TrackProvider, error)
}

// Registry holds probes in registration order.
type Registry struct {
	logger    *slog.Logger
	probes    []Probe
	lookahead int
}

// New creates a registry with the given probes. A nil logger discards, and a
// non-positive lookahead means DefaultLookahead.
func New(logger *slog.Logger, lookahead int, probes ...Probe) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Registry{logger: logger, lookahead: lookahead, probes: probes}
}

// Register appends a probe. A probe with the same name replaces the earlier
// one in place.
func (r *Registry) Register(p Probe) {
	for i, existing := range r.probes {
		if existing.Name() == p.Name() {
			r.probes[i] = p
			return
		}
	}
	r.probes = append(r.probes, p)
}

// Lookup returns the probe with the given name.
func (r *Registry) Lookup(name string) (Probe, bool) {
	for _, p := range r.probes {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Order returns the probes in the order Detect tries them: those matching
// the hints first, then the rest, each group in registration order.
func (r *Registry) Order(h types.Hints) []Probe {
	if h.Empty() {
		return append([]Probe(nil), r.probes...)
	}
	order := make([]Probe, 0, len(r.probes))
	var rest []Probe
	for _, p := range r.probes {
		if p.MatchesHint(h) {
			order = append(order, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(order, rest...)
}

// Detect returns the first outcome that is not NoMatch.
//
// Before each probe the source is marked with the lookahead limit, and after a
// probe that does not match it is returned to its starting position. A
// MalformedContainerError from a probe does not stop detection; it is
// returned only if no later probe matches. Any other error stops detection.
func (r *Registry) Detect(ctx context.Context, src bytesource.Source, hints types.Hints, ref types.Reference) (types.Outcome, error) {
	start := src.Position()
	var malformed error

	for _, p := range r.Order(hints) {
		if err := ctx.Err(); err != nil {
			return types.Outcome{}, err
		}

		src.Mark(r.lookahead)
		o, err := p.Probe(ref, src)
		if err != nil {
			var mc *types.MalformedContainerError
			if !errors.As(err, &mc) {
				return types.Outcome{}, fmt.Errorf("%s probe: %w", p.Name(), err)
			}
			r.logger.Warn("probe rejected malformed input",
				slog.String("probe", p.Name()),
				slog.String("identifier", ref.Identifier),
				slog.String("error", err.Error()))
			if malformed == nil {
				malformed = err
			}
		} else if o.Kind != types.NoMatch {
			r.logger.Debug("probe matched",
				slog.String("probe", p.Name()),
				slog.String("identifier", ref.Identifier),
				slog.String("outcome", o.Kind.String()))
			return o, nil
		}

		if err := src.Seek(start); err != nil {
			return types.Outcome{}, fmt.Errorf("restore position after %s probe: %w", p.Name(), err)
		}
	}

	if malformed != nil {
		return types.NoMatchOutcome(), malformed
	}
	r.logger.Debug("no probe matched", slog.String("identifier", ref.Identifier))
	return types.NoMatchOutcome(), nil
}
