package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/simonhull/audioprobe"
)

var probeCmd = &cobra.Command{
	Use:   "probe FILE...",
	Short: "Detect the container format and print track metadata",
	Long: `Detect the container format of each file and print its track metadata.
Use "-" to read a forward-only stream from standard input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().Int("jobs", 0, "files probed in parallel (default: number of CPUs)")
	rootCmd.AddCommand(probeCmd)
}

type keyValue struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// probeReport is the printed form of one detection.
type probeReport struct {
	Path       string     `json:"path" yaml:"path"`
	Outcome    string     `json:"outcome" yaml:"outcome"`
	Format     string     `json:"format,omitempty" yaml:"format,omitempty"`
	Reason     string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	Title      string     `json:"title,omitempty" yaml:"title,omitempty"`
	Author     string     `json:"author,omitempty" yaml:"author,omitempty"`
	URI        string     `json:"uri,omitempty" yaml:"uri,omitempty"`
	Duration   string     `json:"duration,omitempty" yaml:"duration,omitempty"`
	Size       string     `json:"size,omitempty" yaml:"size,omitempty"`
	Extra      []keyValue `json:"extra,omitempty" yaml:"extra,omitempty"`
	Warnings   []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	DurationMS *int64     `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	IsStream   bool       `json:"is_stream" yaml:"is_stream"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	opts, err := probeOptions()
	if err != nil {
		return err
	}
	if jobs, _ := cmd.Flags().GetInt("jobs"); jobs > 0 {
		opts = append(opts, audioprobe.WithConcurrency(jobs))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reports := make([]probeReport, 0, len(args))
	var files []string
	for _, path := range args {
		if path != "-" {
			files = append(files, path)
			continue
		}
		src := audioprobe.NewSequentialSource(os.Stdin)
		d, err := audioprobe.Detect(ctx, src, audioprobe.Reference{Identifier: "stdin"}, opts...)
		if err != nil {
			return fmt.Errorf("stdin: %w", err)
		}
		reports = append(reports, newProbeReport("-", d))
	}

	detections, err := audioprobe.DetectFiles(ctx, files, opts...)
	if err != nil {
		return err
	}
	for i, d := range detections {
		r := newProbeReport(files[i], d)
		if st, err := os.Stat(files[i]); err == nil {
			r.Size = humanize.IBytes(uint64(st.Size()))
		}
		reports = append(reports, r)
		d.Close()
	}

	var v any = reports
	if len(reports) == 1 {
		v = reports[0]
	}
	return render(cmd.OutOrStdout(), format, v, func(w io.Writer) error {
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeProbeText(w, r)
		}
		return nil
	})
}

func newProbeReport(path string, d *audioprobe.Detection) probeReport {
	r := probeReport{
		Path:    path,
		Outcome: d.Kind.String(),
		Format:  d.Format,
		Reason:  d.Reason,
	}
	for _, w := range d.Warnings {
		r.Warnings = append(r.Warnings, w.String())
	}
	if d.Kind != audioprobe.Matched {
		return r
	}

	m := d.Metadata
	r.Title, r.Author, r.URI, r.IsStream = m.Title, m.Author, m.URI, m.IsStream
	if m.DurationKnown() {
		ms := m.Duration
		r.DurationMS = &ms
		r.Duration = (time.Duration(ms) * time.Millisecond).String()
	} else {
		r.Duration = "unknown"
	}
	for k, v := range m.ExtraAll() {
		r.Extra = append(r.Extra, keyValue{Key: k, Value: v})
	}
	return r
}

func writeProbeText(w io.Writer, r probeReport) {
	fmt.Fprintf(w, "%s: %s", r.Path, r.Outcome)
	if r.Format != "" {
		fmt.Fprintf(w, " (%s)", r.Format)
	}
	fmt.Fprintln(w)
	if r.Reason != "" {
		fmt.Fprintf(w, "  reason:   %s\n", r.Reason)
	}
	if r.Outcome == audioprobe.Matched.String() {
		fmt.Fprintf(w, "  title:    %s\n", r.Title)
		fmt.Fprintf(w, "  author:   %s\n", r.Author)
		fmt.Fprintf(w, "  duration: %s\n", r.Duration)
		fmt.Fprintf(w, "  stream:   %t\n", r.IsStream)
	}
	if r.Size != "" {
		fmt.Fprintf(w, "  size:     %s\n", r.Size)
	}
	for _, kv := range r.Extra {
		fmt.Fprintf(w, "  %s: %s\n", kv.Key, kv.Value)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}
