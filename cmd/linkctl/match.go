package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/wildfire-linker/internal/adapter/recordfile"
	"github.com/couchcryptid/wildfire-linker/internal/config"
	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/match"
	"github.com/couchcryptid/wildfire-linker/internal/progress"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

type matchOptions struct {
	sources        string
	targets        string
	mode           string
	profile        string
	chunkSize      int
	startChunk     int
	out            string
	withRejections bool
}

func newMatchCmd() *cobra.Command {
	var opts matchOptions
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Link a source file against a target file",
		Long: `Link every incident in --sources to the zones in --targets and write one
JSON linked record per line. With --start-chunk, earlier chunks are skipped
and output is appended, so an interrupted run can be resumed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatch(cmd, opts, cliLogger(cmd))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sources, "sources", "", "incident file (.csv, .jsonl, .json)")
	f.StringVar(&opts.targets, "targets", "", "zone file (.csv, .jsonl, .json)")
	f.StringVar(&opts.mode, "mode", "", "match mode: point, polygon, perimeter_point")
	f.StringVar(&opts.profile, "profile", "", "YAML tuning profile")
	f.IntVar(&opts.chunkSize, "chunk-size", 0, "sources per chunk (default from config)")
	f.IntVar(&opts.startChunk, "start-chunk", 0, "first chunk to process")
	f.StringVar(&opts.out, "out", "", "output file (default stdout)")
	f.BoolVar(&opts.withRejections, "with-rejections", false, "include rejected candidates in each record")
	_ = cmd.MarkFlagRequired("sources")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}

func runMatch(cmd *cobra.Command, opts matchOptions, logger *slog.Logger) error {
	cfg, err := config.LoadMatch(opts.profile)
	if err != nil {
		return err
	}
	if opts.mode != "" {
		mode, ok := domain.ParseMode(opts.mode)
		if !ok {
			return fmt.Errorf("unknown mode %q", opts.mode)
		}
		cfg.Mode = mode
	}
	if opts.startChunk < 0 {
		return errors.New("--start-chunk must be >= 0")
	}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	targetRecs, err := recordfile.LoadTargets(opts.targets)
	if err != nil {
		return err
	}
	targets, warnings := domain.ParseTargets(targetRecs)
	logWarnings(logger, "target", warnings)
	engine.LoadTargets(targets)

	sourceRecs, err := recordfile.LoadSources(opts.sources)
	if err != nil {
		return err
	}
	sources, warnings := domain.ParseSources(sourceRecs)
	logWarnings(logger, "source", warnings)

	w, closeOut, err := openOutput(cmd, opts.out, opts.startChunk > 0)
	if err != nil {
		return err
	}
	defer closeOut()
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	chunkSize := opts.chunkSize
	if chunkSize <= 0 {
		chunkSize = cfg.ChunkSize
	}
	tracker := progress.NewTracker(clockwork.NewRealClock(), logger, len(sources))
	skipped := min(opts.startChunk, len(sources)/chunkSize+1) * chunkSize
	tracker.Resume(min(skipped, len(sources)))

	logger.Info("match run started",
		"run_id", engine.RunID(),
		"mode", cfg.Mode,
		"sources", len(sources),
		"chunk_size", chunkSize,
		"start_chunk", opts.startChunk,
	)

	var total match.Stats
	batches := engine.Batches(cmd.Context(), sources, match.BatchOptions{ChunkSize: chunkSize, StartChunk: opts.startChunk})
	for batch, err := range batches {
		if err != nil {
			_ = bw.Flush()
			return err
		}
		for _, l := range batch.Linked {
			if err := enc.Encode(domain.NewLinkedRecord(l, opts.withRejections)); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}
		// Output is complete up to a chunk boundary after each flush.
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
		total.Add(batch.Stats)
		tracker.Update(len(batch.Linked))
		logger.Info("chunk done", "chunk", batch.Index, "matched", batch.Stats.Matched, "unmatched", batch.Stats.Unmatched)
	}

	logger.Info("match run complete",
		"run_id", engine.RunID(),
		"processed", total.Processed,
		"in_bounds", total.InBounds,
		"matched", total.Matched,
		"unmatched", total.Unmatched,
		"disagreements", total.Disagreements,
		"rejected_distance", total.RejectedDistance,
		"rejected_geography", total.RejectedGeography,
		"rejected_confidence", total.RejectedConfidence,
	)
	return nil
}

func logWarnings(logger *slog.Logger, kind string, warnings []domain.Warning) {
	for _, w := range warnings {
		logger.Warn(kind+" rejected", "id", w.EntityID, "error", w.Err)
	}
	if len(warnings) > 0 {
		logger.Warn("records skipped", "kind", kind, "count", len(warnings))
	}
}

func openOutput(cmd *cobra.Command, path string, appendMode bool) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
