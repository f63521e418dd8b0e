package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/mp4"
)

var boxesCmd = &cobra.Command{
	Use:   "boxes FILE",
	Short: "Print the box tree of an MP4 file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoxes,
}

func init() {
	rootCmd.AddCommand(boxesCmd)
}

type boxReport struct {
	Type   string `json:"type" yaml:"type"`
	Offset int64  `json:"offset" yaml:"offset"`
	Size   int64  `json:"size" yaml:"size"`
	Header int    `json:"header" yaml:"header"`
	Depth  int    `json:"depth" yaml:"depth"`
}

func runBoxes(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	maxTable, err := cfg.Probe.MaxTableBytes()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	src, err := bytesource.NewSeekable(f)
	if err != nil {
		f.Close()
		return err
	}
	defer src.Close()

	ok, err := mp4.HasSignature(src)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: not an MP4 file", args[0])
	}
	if err := src.Seek(0); err != nil {
		return err
	}

	tree, err := mp4.Parse(src, maxTable)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	var boxes []boxReport
	tree.Walk(func(_ int, b *mp4.Box) bool {
		boxes = append(boxes, boxReport{
			Type:   b.Type,
			Offset: b.Start,
			Size:   b.Size(),
			Header: b.HeaderLen,
			Depth:  b.Depth,
		})
		return true
	})

	return render(cmd.OutOrStdout(), format, boxes, func(w io.Writer) error {
		for _, b := range boxes {
			fmt.Fprintf(w, "%s%s (size: %d, offset: %d)\n", strings.Repeat("  ", b.Depth), b.Type, b.Size, b.Offset)
		}
		return nil
	})
}
