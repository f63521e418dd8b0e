package types

import (
	"iter"
	"math"
	"slices"
)

// DurationUnknown is the duration reported for streams with no global
// duration field, such as ADTS elementary streams.
const DurationUnknown int64 = math.MaxInt64

// Default title and author used when neither the container nor the reference
// provides one.
const (
	DefaultTitle  = "Unknown title"
	DefaultAuthor = "Unknown artist"
)

// Reference identifies the track being probed. Identifier is opaque to the
// probes and copied to the metadata; Title, when set, overrides container tags
// for formats that have none.
type Reference struct {
	Identifier string
	Title      string
}

// InfoProvider is optionally implemented by byte sources that know something
// about the stream from their transport (for example ICY headers or the final
// URL after redirects). Empty strings mean unknown.
type InfoProvider interface {
	Title() string
	Author() string
	URI() string
}

// KeyValue is one entry of TrackMetadata's ordered extra mapping.
type KeyValue struct {
	Key   string
	Value string
}

// TrackMetadata describes a detected track. It is the only structure handed to
// external collaborators and is immutable once built by NewTrackMetadata.
type TrackMetadata struct {
	Title      string
	Author     string
	Identifier string
	URI        string
	extra      []KeyValue
	// Duration in milliseconds, DurationUnknown for live streams.
	Duration int64
	IsStream bool
}

// NewTrackMetadata builds metadata with a copy of the extra entries.
func NewTrackMetadata(title, author string, duration int64, identifier string, isStream bool, uri string, extra []KeyValue) TrackMetadata {
	return TrackMetadata{
		Title:      title,
		Author:     author,
		Duration:   duration,
		Identifier: identifier,
		IsStream:   isStream,
		URI:        uri,
		extra:      slices.Clone(extra),
	}
}

// DurationKnown reports whether Duration holds a real length.
func (m TrackMetadata) DurationKnown() bool {
	return m.Duration != DurationUnknown
}

// Extra returns the first value stored under key.
func (m TrackMetadata) Extra(key string) (string, bool) {
	for _, kv := range m.extra {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// ExtraAll iterates over the extra entries in insertion order.
func (m TrackMetadata) ExtraAll() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, kv := range m.extra {
			if !yield(kv.Key, kv.Value) {
				return
			}
		}
	}
}

// ExtraLen returns the number of extra entries.
func (m TrackMetadata) ExtraLen() int {
	return len(m.extra)
}

// DefaultInfo resolves fallback values from a byte source that implements
// InfoProvider. Missing fields fall back to DefaultTitle, DefaultAuthor and
// the reference identifier.
func DefaultInfo(src any, ref Reference) (title, author, uri string) {
	title, author, uri = DefaultTitle, DefaultAuthor, ref.Identifier
	ip, ok := src.(InfoProvider)
	if !ok {
		return title, author, uri
	}
	if v := ip.Title(); v != "" {
		title = v
	}
	if v := ip.Author(); v != "" {
		author = v
	}
	if v := ip.URI(); v != "" {
		uri = v
	}
	return title, author, uri
}

// FirstNonEmpty returns the first non-empty argument.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
