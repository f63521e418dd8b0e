package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/simonhull/audioprobe"
)

var chunksCmd = &cobra.Command{
	Use:   "chunks FILE",
	Short: "List the compressed chunks of the audio track",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

func init() {
	chunksCmd.Flags().Int64("seek", -1, "seek to this many milliseconds before listing")
	chunksCmd.Flags().Int("limit", 20, "maximum chunks listed (0 for all)")
	chunksCmd.Flags().Bool("read", false, "read every listed chunk from the file")
	rootCmd.AddCommand(chunksCmd)
}

type chunkReport struct {
	Timestamp int64 `json:"timestamp_ms" yaml:"timestamp_ms"`
	Offset    int64 `json:"offset" yaml:"offset"`
	Size      int64 `json:"size" yaml:"size"`
	Index     int   `json:"index" yaml:"index"`
	Sync      bool  `json:"sync" yaml:"sync"`
}

type chunksReport struct {
	SeekedTo *int64        `json:"seeked_to_ms,omitempty" yaml:"seeked_to_ms,omitempty"`
	Chunks   []chunkReport `json:"chunks" yaml:"chunks"`
	Duration int64         `json:"duration_ms" yaml:"duration_ms"`
}

func runChunks(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	opts, err := probeOptions()
	if err != nil {
		return err
	}
	seek, _ := cmd.Flags().GetInt64("seek")
	limit, _ := cmd.Flags().GetInt("limit")
	read, _ := cmd.Flags().GetBool("read")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := audioprobe.DetectFile(ctx, args[0], opts...)
	if err != nil {
		return err
	}
	defer d.Close()

	track, err := d.OpenTrack()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	report := chunksReport{Duration: track.Duration()}
	if seek >= 0 {
		at, err := track.Seek(seek)
		if err != nil {
			return fmt.Errorf("seek: %w", err)
		}
		report.SeekedTo = &at
	}

	for limit == 0 || len(report.Chunks) < limit {
		c, err := track.NextChunk()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if read {
			if _, err := audioprobe.ReadChunk(d.Source(), c); err != nil {
				return fmt.Errorf("chunk %d: %w", c.SampleIndex, err)
			}
		}
		report.Chunks = append(report.Chunks, chunkReport{
			Timestamp: c.Timestamp,
			Offset:    c.Offset,
			Size:      c.Size,
			Index:     c.SampleIndex,
			Sync:      c.Sync,
		})
	}

	return render(cmd.OutOrStdout(), format, report, func(w io.Writer) error {
		if report.SeekedTo != nil {
			fmt.Fprintf(w, "seeked to %d ms\n", *report.SeekedTo)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tTIME (ms)\tOFFSET\tSIZE\tSYNC")
		for _, c := range report.Chunks {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%t\n", c.Index, c.Timestamp, c.Offset, c.Size, c.Sync)
		}
		return tw.Flush()
	})
}
