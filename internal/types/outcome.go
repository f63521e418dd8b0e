package types

import "fmt"

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	// NoMatch means no probe recognized the stream's signature.
	NoMatch OutcomeKind = iota
	// Matched means a probe recognized the stream and described a playable track.
	Matched
	// Unsupported means a probe recognized the stream but cannot play it.
	Unsupported
)

func (k OutcomeKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case Unsupported:
		return "unsupported"
	default:
		return "no match"
	}
}

// Outcome is the result of running one probe, or the whole registry, against a
// byte source.
type Outcome struct {
	// Track is the probe-specific handle used to build a provider for a
	// Matched outcome. Callers outside the probe treat it as opaque.
	Track    any
	Format   string
	Reason   string
	Warnings []Warning
	Metadata TrackMetadata
	Kind     OutcomeKind
}

// MatchedOutcome builds a Matched outcome.
func MatchedOutcome(format string, meta TrackMetadata, track any) Outcome {
	return Outcome{Kind: Matched, Format: format, Metadata: meta, Track: track}
}

// UnsupportedOutcome builds an Unsupported outcome with a diagnostic reason.
func UnsupportedOutcome(format, reason string) Outcome {
	return Outcome{Kind: Unsupported, Format: format, Reason: reason}
}

// NoMatchOutcome is the zero-information outcome.
func NoMatchOutcome() Outcome {
	return Outcome{Kind: NoMatch}
}

func (o Outcome) String() string {
	switch o.Kind {
	case Matched:
		return fmt.Sprintf("%s: %s (%s)", o.Kind, o.Format, o.Metadata.Title)
	case Unsupported:
		return fmt.Sprintf("%s: %s: %s", o.Kind, o.Format, o.Reason)
	default:
		return o.Kind.String()
	}
}
