package audioprobe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/registry"
	"github.com/simonhull/audioprobe/internal/types"
)

// Detection is the result of probing one byte source.
//
// A Matched detection can open its track with OpenTrack. Detections returned
// by DetectFile own their file; call Close when done:
//
//	d, err := audioprobe.DetectFile(ctx, "song.m4a")
//	if err != nil {
//		return err
//	}
//	defer d.Close()
//	fmt.Println(d.Metadata.Title, d.Metadata.Duration)
type Detection struct {
	Outcome

	src      Source
	registry *registry.Registry
	owned    bool
}

// Detect probes src from its current position.
//
// A stream no probe recognizes yields a NoMatch detection with a nil error
// and src back at its starting position. A recognized but unplayable stream
// yields an Unsupported detection. Structural corruption is reported as a
// *MalformedContainerError and source failures as an *IOError.
func Detect(ctx context.Context, src Source, ref Reference, opts ...Option) (*Detection, error) {
	o := applyOptions(opts)
	reg := o.registry()

	outcome, err := reg.Detect(ctx, src, o.hints, ref)
	if err != nil {
		return nil, err
	}
	return &Detection{Outcome: outcome, src: src, registry: reg}, nil
}

// DetectFile opens path and probes it. The extension is used as a hint
// unless WithHints is given.
func DetectFile(ctx context.Context, path string, opts ...Option) (*Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	src, err := bytesource.NewSeekable(f, bytesource.WithInfo("", "", path))
	if err != nil {
		f.Close()
		return nil, err
	}

	o := applyOptions(opts)
	if !o.hintsSet {
		opts = append(opts, WithHints(HintsFromPath(path)))
	}

	d, err := Detect(ctx, src, Reference{Identifier: path}, opts...)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.owned = true
	return d, nil
}

// DetectFiles probes several files concurrently, returning detections in
// input order. If any file fails, every opened detection is closed and the
// first error is returned.
func DetectFiles(ctx context.Context, paths []string, opts ...Option) ([]*Detection, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	limit := applyOptions(opts).concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make([]*Detection, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			d, err := DetectFile(ctx, path, opts...)
			if err != nil {
				return err
			}
			results[i] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, d := range results {
			if d != nil {
				d.Close()
			}
		}
		return nil, err
	}
	return results, nil
}

// Source returns the byte source the detection read from.
func (d *Detection) Source() Source {
	return d.src
}

// OpenTrack builds the track provider of a Matched detection. Chunks it
// produces are read from Source with ReadChunk.
func (d *Detection) OpenTrack() (TrackProvider, error) {
	switch d.Kind {
	case types.Matched:
	case types.Unsupported:
		return nil, &UnsupportedVariantError{Format: d.Format, Reason: d.Reason}
	default:
		return nil, errors.New("no container format matched")
	}

	p, ok := d.registry.Lookup(d.Format)
	if !ok {
		return nil, fmt.Errorf("no probe named %q", d.Format)
	}
	return p.NewProvider(d.src, d.Outcome)
}

// Close closes the source when the detection opened it.
func (d *Detection) Close() error {
	if !d.owned || d.src == nil {
		return nil
	}
	return d.src.Close()
}

// ReadChunk reads the bytes of c from src. On forward-only sources chunks
// must be read in the order they were produced.
func ReadChunk(src Source, c Chunk) ([]byte, error) {
	if err := src.Seek(c.Offset); err != nil {
		return nil, err
	}
	return bytesource.ReadN(src, int(c.Size), "chunk")
}
