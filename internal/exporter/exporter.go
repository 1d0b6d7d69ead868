// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package exporter drives one export run: it starts a scan provider, flattens
// every item it streams and writes the rows to a CSV file, in a single pass.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/ddbexport/internal/constants"
	"github.com/cardinalhq/ddbexport/internal/csvwriter"
	"github.com/cardinalhq/ddbexport/internal/ddbitem"
	"github.com/cardinalhq/ddbexport/internal/exporterr"
	"github.com/cardinalhq/ddbexport/internal/helpers"
	"github.com/cardinalhq/ddbexport/internal/idgen"
	"github.com/cardinalhq/ddbexport/internal/logctx"
	"github.com/cardinalhq/ddbexport/internal/scan"
	"github.com/cardinalhq/ddbexport/internal/timefilter"
)

const (
	lowScratchSpaceBytes = 1 << 30
	// Scratch files older than this were left by a run that was killed.
	staleScratchAge = 24 * time.Hour
)

// Options configures one export run.
type Options struct {
	Table      string
	OutputPath string
	// Filter is optional; nil scans the whole table.
	Filter   *timefilter.ScanFilter
	Provider scan.Provider
	// Segments is the parallel scan segment count. Zero uses 1000.
	Segments int

	// ScratchDir holds the scratch copy of the provider output. Empty uses
	// the system temp dir.
	ScratchDir      string
	CompressScratch bool
	// RawCopyPath, when set, receives every provider line and is kept after
	// the run. Paths ending in .zst are compressed.
	RawCopyPath string

	WrapperPolicy ddbitem.WrapperPolicy
	// ProgressEvery logs progress each time this many more rows are written.
	// Zero uses the default; negative disables progress logging.
	ProgressEvery int64
	// Timeout bounds the whole run when positive.
	Timeout    time.Duration
	CSVOptions []csvwriter.Option
}

func (o Options) validate() error {
	switch {
	case o.Table == "":
		return errors.New("table name is required")
	case o.OutputPath == "":
		return errors.New("output path is required")
	case o.Provider == nil:
		return errors.New("scan provider is required")
	}
	return nil
}

func (o Options) progressEvery() int64 {
	if o.ProgressEvery == 0 {
		return constants.DefaultProgressEvery
	}
	return o.ProgressEvery
}

// Result describes a finished run. Counts reflect what was written even when
// the run failed part way.
type Result struct {
	RunID      string
	Table      string
	OutputPath string

	// Rows is the number of data rows written, header excluded.
	Rows    int64
	Batches int64
	// MalformedLines counts provider lines that were not JSON objects.
	MalformedLines int64
	// MalformedRecords counts items skipped inside otherwise valid lines.
	MalformedRecords int64

	SchemaMismatchRows int64
	DroppedFields      []string
	MissingFields      []string
	Columns            []string
	// Digest is an order-independent checksum of the written rows.
	Digest uint64

	// ScratchPath is where raw provider output was buffered. The file is
	// removed before Run returns.
	ScratchPath string
	Duration    time.Duration
}

// Empty reports the "no items found" outcome: the output exists and is empty.
func (r *Result) Empty() bool {
	return r.Rows == 0
}

type run struct {
	opts    Options
	res     *Result
	logger  *slog.Logger
	started time.Time

	out     *os.File
	writer  *csvwriter.Writer
	scratch *spool
	rawCopy *spool
}

// Run exports opts.Table to opts.OutputPath. The result is non-nil whenever
// opts are valid.
//
// Provider preflight failures are returned before the output file is
// created. Once streaming has started, a provider failure leaves the rows
// written so far in the output. The scratch file is removed on every path.
func Run(ctx context.Context, opts Options) (res *Result, err error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	r := &run{
		opts:    opts,
		started: time.Now(),
		res: &Result{
			RunID:      idgen.NewRunID(),
			Table:      opts.Table,
			OutputPath: opts.OutputPath,
		},
	}
	ctx, r.logger = logctx.With(ctx,
		slog.String("runID", r.res.RunID),
		slog.String("table", opts.Table),
	)
	res = r.res
	defer func() {
		res.Duration = time.Since(r.started)
		recordRun(res, outcome(res, err))
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req := scan.Request{
		Table:         opts.Table,
		Segments:      opts.Segments,
		Filter:        opts.Filter,
		WrapperPolicy: opts.WrapperPolicy,
	}
	if err := opts.Provider.Preflight(ctx, req); err != nil {
		return res, err
	}
	if ctx.Err() != nil {
		return res, canceled(ctx)
	}

	if err := r.open(); err != nil {
		if cerr := r.finish(); cerr != nil {
			r.logger.Warn("Cleanup failed", slog.Any("error", cerr))
		}
		return res, err
	}
	defer func() {
		if cerr := r.finish(); cerr != nil {
			if err == nil {
				err = cerr
				return
			}
			r.logger.Warn("Cleanup failed after export error", slog.Any("error", cerr))
		}
	}()

	r.logger.Info("Starting export",
		slog.String("provider", opts.Provider.Name()),
		slog.String("output", opts.OutputPath),
		slog.Int("segments", req.Segments),
		slog.Any("filter", opts.Filter),
		slog.String("wrapperPolicy", opts.WrapperPolicy.String()))

	stream, err := opts.Provider.Start(ctx, req)
	if err != nil {
		return res, err
	}
	defer func() { _ = stream.Close() }()

	loopErr := r.consume(ctx, stream)
	switch {
	case loopErr == nil:
		err = stream.Wait()
	case ctx.Err() != nil:
		// Let the provider see the cancel and exit before reporting.
		_ = stream.Wait()
		err = canceled(ctx)
	default:
		_ = stream.Close()
		err = loopErr
	}
	if err != nil {
		r.logger.Error("Export failed",
			slog.Int64("rowsWritten", r.writer.Count()),
			slog.Int64("batches", r.res.Batches),
			slog.Any("error", err))
		return res, err
	}

	r.logger.Info("Export finished",
		slog.Int64("rows", r.writer.Count()),
		slog.Int64("batches", r.res.Batches),
		slog.Int64("malformedLines", r.res.MalformedLines),
		slog.Int64("malformedRecords", r.res.MalformedRecords),
		slog.String("duration", helpers.FormatDuration(time.Since(r.started))))
	return res, nil
}

// open creates the output, scratch and raw-copy files.
func (r *run) open() error {
	out, err := os.Create(r.opts.OutputPath)
	if err != nil {
		return exporterr.Output("create output", err)
	}
	r.out = out
	r.writer = csvwriter.New(out, r.opts.CSVOptions...)

	helpers.CleanStaleFiles(r.opts.ScratchDir, scratchGlob, staleScratchAge, r.opts.RawCopyPath)
	scratch, err := createScratch(r.opts.ScratchDir, r.res.RunID, r.opts.CompressScratch)
	if err != nil {
		return err
	}
	r.scratch = scratch
	r.res.ScratchPath = scratch.path
	r.checkScratchSpace()

	if r.opts.RawCopyPath != "" {
		raw, err := createRawCopy(r.opts.RawCopyPath)
		if err != nil {
			return err
		}
		r.rawCopy = raw
	}
	return nil
}

func (r *run) checkScratchSpace() {
	dir := r.opts.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	usage, err := helpers.DiskUsage(dir)
	if err != nil {
		r.logger.Debug("Cannot stat scratch filesystem", slog.String("dir", dir), slog.Any("error", err))
		return
	}
	if usage.FreeBytes < lowScratchSpaceBytes {
		r.logger.Warn("Scratch filesystem is low on space",
			slog.String("dir", dir),
			slog.Uint64("freeBytes", usage.FreeBytes))
	}
}

func (r *run) consume(ctx context.Context, stream scan.Stream) error {
	every := r.opts.progressEvery()
	nextProgress := every

	for {
		b, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if b == nil || !errors.Is(err, exporterr.ErrMalformedRecord) {
				return err
			}
			if err := r.tee(b.Raw); err != nil {
				return err
			}
			r.res.MalformedLines++
			recordMalformed(ctx, r.opts.Table, "line")
			r.logger.Warn("Skipping malformed provider output", slog.Int("line", b.Line), slog.Any("error", err))
			continue
		}

		if err := r.tee(b.Raw); err != nil {
			return err
		}
		r.res.Batches++
		for _, rej := range b.Rejected {
			r.res.MalformedRecords++
			recordMalformed(ctx, r.opts.Table, "record")
			r.logger.Warn("Skipping malformed item", slog.Any("error", rej))
		}
		for _, it := range b.Items {
			if err := r.writer.Write(ddbitem.Flatten(it)); err != nil {
				return exporterr.Output("write row", err)
			}
		}

		if every > 0 && r.writer.Count() >= nextProgress {
			elapsed := time.Since(r.started)
			r.logger.Info("Export progress",
				slog.Int64("rows", r.writer.Count()),
				slog.Int64("batches", r.res.Batches),
				slog.String("elapsed", helpers.FormatDuration(elapsed)),
				slog.Float64("rowsPerSecond", helpers.RowsPerSecond(r.writer.Count(), elapsed)))
			nextProgress = (r.writer.Count()/every + 1) * every
		}
	}
}

func (r *run) tee(raw []byte) error {
	if err := r.scratch.writeLine(raw); err != nil {
		return fmt.Errorf("write scratch file: %w", err)
	}
	if r.rawCopy != nil {
		if err := r.rawCopy.writeLine(raw); err != nil {
			return exporterr.Output("write raw copy", err)
		}
	}
	return nil
}

// finish closes the writer and the output, fills the result and removes the
// scratch file. Every step runs even if an earlier one fails.
func (r *run) finish() error {
	var errs *multierror.Error
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			errs = multierror.Append(errs, exporterr.Output("flush output", err))
		}
		r.res.Rows = r.writer.Count()
		r.res.Columns = r.writer.Schema()
		r.res.SchemaMismatchRows = r.writer.MismatchRows()
		r.res.DroppedFields = r.writer.DroppedFields()
		r.res.MissingFields = r.writer.MissingFields()
		r.res.Digest = r.writer.Digest()
	}
	if r.out != nil {
		if err := r.out.Close(); err != nil {
			errs = multierror.Append(errs, exporterr.Output("close output", err))
		}
	}
	if r.rawCopy != nil {
		if err := r.rawCopy.close(); err != nil {
			errs = multierror.Append(errs, exporterr.Output("close raw copy", err))
		}
	}
	if r.scratch != nil {
		errs = multierror.Append(errs, r.scratch.close())
	}
	return compact(errs).ErrorOrNil()
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", exporterr.ErrCanceled, context.Cause(ctx))
}

func outcome(res *Result, err error) string {
	switch {
	case err == nil && res.Empty():
		return "empty"
	case err == nil:
		return "success"
	case errors.Is(err, exporterr.ErrCanceled):
		return "canceled"
	case errors.Is(err, exporterr.ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, exporterr.ErrScanAborted):
		return "aborted"
	default:
		return "error"
	}
}
