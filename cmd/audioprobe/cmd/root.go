// Package cmd implements the audioprobe CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/simonhull/audioprobe"
	"github.com/simonhull/audioprobe/internal/config"
	"github.com/simonhull/audioprobe/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "audioprobe",
	Short:   "Identify audio containers and inspect their tracks",
	Version: audioprobe.Version,
	Long: `audioprobe detects the container format of audio files (MP4/M4A and
ADTS AAC), prints track metadata, dumps MP4 box trees and lists the
compressed chunks of the audio track with their timestamps.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd.Flags())
	}

	// Flags are not bound to viper; they override env and file values only
	// when set explicitly.
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./audioprobe.yaml or $HOME/.audioprobe/audioprobe.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.StringP("output", "o", "text", "output format (text, json, yaml)")
	pf.Int("scan-distance", config.DefaultScanDistance, "bytes searched for an ADTS frame header")
	pf.Int("lookahead", config.DefaultLookahead, "bytes a probe may read and still rewind on streams")
	pf.String("max-table-size", config.DefaultMaxTableSize, "largest MP4 table box retained (e.g. 64MiB)")
	pf.Bool("seek-all-samples", false, "allow seeking to any sample in MP4 tracks without a sync table")
}

// initConfig loads defaults, file and environment, then applies the flags
// the user set. Priority: flag > env > file > default.
func initConfig(fs *pflag.FlagSet) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if fs.Changed("log-level") {
		c.Logging.Level, _ = fs.GetString("log-level")
	}
	if fs.Changed("log-format") {
		c.Logging.Format, _ = fs.GetString("log-format")
	}
	if fs.Changed("scan-distance") {
		c.Probe.ScanDistance, _ = fs.GetInt("scan-distance")
	}
	if fs.Changed("lookahead") {
		c.Probe.Lookahead, _ = fs.GetInt("lookahead")
	}
	if fs.Changed("max-table-size") {
		c.Probe.MaxTableSize, _ = fs.GetString("max-table-size")
	}
	if fs.Changed("seek-all-samples") {
		c.Probe.SeekAllSamples, _ = fs.GetBool("seek-all-samples")
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)

	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	logger = observability.NewLogger(c.Logging)
	return nil
}

// probeOptions converts the loaded configuration to library options.
func probeOptions() ([]audioprobe.Option, error) {
	maxTable, err := cfg.Probe.MaxTableBytes()
	if err != nil {
		return nil, err
	}
	opts := []audioprobe.Option{
		audioprobe.WithLogger(logger),
		audioprobe.WithScanDistance(cfg.Probe.ScanDistance),
		audioprobe.WithLookahead(cfg.Probe.Lookahead),
		audioprobe.WithMaxTableSize(maxTable),
	}
	if cfg.Probe.SeekAllSamples {
		opts = append(opts, audioprobe.WithSeekAllSamples())
	}
	return opts, nil
}

func outputFormat(cmd *cobra.Command) (string, error) {
	out, _ := cmd.Flags().GetString("output")
	switch out = strings.ToLower(out); out {
	case "text", "json", "yaml":
		return out, nil
	default:
		return "", fmt.Errorf("output must be one of: text, json, yaml")
	}
}
