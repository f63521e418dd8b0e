// Package audioprobe identifies the container format of an audio byte
// stream, describes its track without decoding it, and iterates its
// compressed chunks in decode order.
//
// # Quick Start
//
// Probing a file:
//
//	d, err := audioprobe.DetectFile(ctx, "song.m4a")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	switch d.Kind {
//	case audioprobe.Matched:
//		fmt.Printf("%s - %s (%d ms)\n", d.Metadata.Author, d.Metadata.Title, d.Metadata.Duration)
//	case audioprobe.Unsupported:
//		fmt.Println("recognized but unplayable:", d.Reason)
//	default:
//		fmt.Println("unknown format")
//	}
//
// # Supported Formats
//
//   - MP4/M4A/M4B: ISO base media files with an AAC (mp4a) track
//   - ADTS: AAC elementary streams, reported as live streams of unknown length
//
// # Reading Chunks
//
// A Matched detection opens a TrackProvider. Chunks are byte ranges of the
// source; ReadChunk reads them:
//
//	track, err := d.OpenTrack()
//	if err != nil {
//		return err
//	}
//	if _, err := track.Seek(30_000); err != nil {
//		return err
//	}
//	for {
//		c, err := track.NextChunk()
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		data, err := audioprobe.ReadChunk(d.Source(), c)
//		...
//	}
//
// Seek returns the timestamp actually reached, which is the last sync sample
// at or before the target.
//
// # Sources
//
// Files are wrapped with NewSeekableSource. Forward-only streams such as HTTP
// bodies use NewSequentialSource; probes then rewind through a bounded
// lookahead buffer (WithLookahead), and MP4 files only work when the movie
// box precedes the media data.
//
// # Error Handling
//
// Detection distinguishes an unknown format (NoMatch, not an error), a
// recognized but unplayable one (Unsupported, with a Reason), structural
// corruption (*MalformedContainerError) and source failures (*IOError).
// Closing a source makes every later read fail with ErrClosed.
//
// Probe detail that did not change the outcome is collected in Warnings.
//
// # Concurrency
//
// Detections, sources and providers are not safe for concurrent use.
// DetectFiles probes many files in parallel, one source per file.
package audioprobe
