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

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/ddbexport/config"
	"github.com/cardinalhq/ddbexport/internal/awsclient"
	"github.com/cardinalhq/ddbexport/internal/awsclient/s3helper"
	"github.com/cardinalhq/ddbexport/internal/debugging"
	"github.com/cardinalhq/ddbexport/internal/exporter"
	"github.com/cardinalhq/ddbexport/internal/exporterr"
	"github.com/cardinalhq/ddbexport/internal/helpers"
	"github.com/cardinalhq/ddbexport/internal/scan"
	"github.com/cardinalhq/ddbexport/internal/timefilter"
)

type exportFlags struct {
	table      string
	start      string
	end        string
	productID  string
	output     string
	rawCopy    string
	upload     string
	provider   string
	segments   int
	timeout    time.Duration
	region     string
	endpoint   string
	roleARN    string
	policy     string
	scratchDir string
	compress   bool
}

func init() {
	rootCmd.AddCommand(newExportCmd())
}

func newExportCmd() *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Scan a table and write every item as a CSV row",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			servicename := "ddbexport-export"
			doneCtx, doneFx, err := setupTelemetry(servicename)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()
			debugging.RunPprof(doneCtx)

			return runExport(doneCtx, c, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.table, "table-name", "", "DynamoDB table to export")
	flags.StringVar(&f.start, "fecha-inicio", "", "Start of the time range, DD-MM-YYYY-HH:MM:SS local time")
	flags.StringVar(&f.end, "fecha-fin", "", "End of the time range, DD-MM-YYYY-HH:MM:SS local time")
	flags.StringVar(&f.productID, "product-id", "", "Partition key value to match")
	flags.StringVar(&f.output, "output", "", "CSV file to write")
	flags.StringVar(&f.rawCopy, "raw-copy", "", "Keep a copy of the raw provider output at this path (.zst compresses)")
	flags.StringVar(&f.upload, "upload", "", "Upload the finished CSV to s3://bucket/key")
	flags.StringVar(&f.provider, "provider", "", "Scan provider: command or sdk")
	flags.IntVar(&f.segments, "segments", 0, "Number of parallel scan segments")
	flags.DurationVar(&f.timeout, "timeout", 0, "Abort the export after this long (0 disables)")
	flags.StringVar(&f.region, "region", "", "AWS region")
	flags.StringVar(&f.endpoint, "endpoint", "", "Custom AWS endpoint URL")
	flags.StringVar(&f.roleARN, "role-arn", "", "Role to assume for AWS calls")
	flags.StringVar(&f.policy, "wrapper-policy", "", "Type wrapper policy: strict or first")
	flags.StringVar(&f.scratchDir, "scratch-dir", "", "Directory for the scratch file")
	flags.BoolVar(&f.compress, "compress-scratch", false, "zstd-compress the scratch file")

	for _, name := range []string{"table-name", "output"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	return cmd
}

// applyFlags overrides config values with flags the user set explicitly.
func applyFlags(c *cobra.Command, cfg *config.Config, f exportFlags) error {
	changed := c.Flags().Changed
	if changed("provider") {
		cfg.Provider.Kind = f.provider
	}
	if changed("segments") {
		cfg.Provider.Segments = f.segments
	}
	if changed("timeout") {
		cfg.Provider.Timeout = f.timeout
	}
	if changed("region") {
		cfg.AWS.Region = f.region
	}
	if changed("endpoint") {
		cfg.AWS.Endpoint = f.endpoint
	}
	if changed("role-arn") {
		cfg.AWS.RoleARN = f.roleARN
	}
	if changed("wrapper-policy") {
		cfg.Export.WrapperPolicy = f.policy
	}
	if changed("scratch-dir") {
		cfg.Scratch.Dir = f.scratchDir
	}
	if changed("compress-scratch") {
		cfg.Scratch.Compress = f.compress
	}
	if err := cfg.Validate(); err != nil {
		return &usageError{err: err}
	}
	return nil
}

func runExport(ctx context.Context, c *cobra.Command, f exportFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return usagef("load config: %w", err)
	}
	if err := applyFlags(c, cfg, f); err != nil {
		return err
	}
	policy, err := cfg.WrapperPolicy()
	if err != nil {
		return &usageError{err: err}
	}

	filter, err := timefilter.FromOptional(f.start, f.end, f.productID)
	if err != nil {
		return err
	}

	var bucket, key string
	if f.upload != "" {
		if bucket, key, err = s3helper.ParseS3URL(f.upload); err != nil {
			return usagef("--upload: %w", err)
		}
	}

	var mgr *awsclient.Manager
	awsManager := func() (*awsclient.Manager, error) {
		if mgr != nil {
			return mgr, nil
		}
		m, err := awsclient.NewManager(ctx)
		if err != nil {
			return nil, exporterr.Unavailable("load AWS config: %v", err)
		}
		mgr = m
		return mgr, nil
	}

	provider, err := newProvider(ctx, cfg, awsManager)
	if err != nil {
		return err
	}

	res, err := exporter.Run(ctx, exporter.Options{
		Table:           f.table,
		OutputPath:      f.output,
		Filter:          filter,
		Provider:        provider,
		Segments:        cfg.Provider.Segments,
		ScratchDir:      cfg.Scratch.Dir,
		CompressScratch: cfg.Scratch.Compress,
		RawCopyPath:     f.rawCopy,
		WrapperPolicy:   policy,
		ProgressEvery:   cfg.Export.ProgressEvery,
		Timeout:         cfg.Provider.Timeout,
	})
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	if res.Empty() {
		printEmpty(out)
		return nil
	}

	if f.upload != "" {
		m, err := awsManager()
		if err != nil {
			return err
		}
		if err := uploadResult(ctx, m, cfg, res, bucket, key); err != nil {
			return err
		}
	}
	printSaved(out, res)
	return nil
}

type managerFunc func() (*awsclient.Manager, error)

func awsOptions(cfg *config.Config) []awsclient.Option {
	var opts []awsclient.Option
	if cfg.AWS.Region != "" {
		opts = append(opts, awsclient.WithRegion(cfg.AWS.Region))
	}
	if cfg.AWS.Endpoint != "" {
		opts = append(opts, awsclient.WithEndpoint(cfg.AWS.Endpoint))
	}
	if cfg.AWS.RoleARN != "" {
		opts = append(opts, awsclient.WithRole(cfg.AWS.RoleARN))
	}
	return opts
}

func newProvider(ctx context.Context, cfg *config.Config, awsManager managerFunc) (scan.Provider, error) {
	switch cfg.Provider.Kind {
	case config.ProviderKindSDK:
		mgr, err := awsManager()
		if err != nil {
			return nil, err
		}
		client, err := mgr.GetDynamoDB(ctx, awsOptions(cfg)...)
		if err != nil {
			return nil, exporterr.Unavailable("create DynamoDB client: %v", err)
		}
		return scan.NewSDKProvider(client.Client, cfg.Provider.Concurrency, cfg.Provider.PageLimit), nil
	default:
		return scan.NewCommandProvider(cfg.Provider.Command), nil
	}
}

func uploadResult(ctx context.Context, mgr *awsclient.Manager, cfg *config.Config, res *exporter.Result, bucket, key string) error {
	opts := awsOptions(cfg)
	if cfg.AWS.Endpoint != "" {
		opts = append(opts, awsclient.WithPathStyle())
	}
	client, err := mgr.GetS3(ctx, opts...)
	if err != nil {
		return exporterr.Output("create S3 client", err)
	}

	metadata := map[string]string{
		"table":  res.Table,
		"run-id": res.RunID,
		"rows":   strconv.FormatInt(res.Rows, 10),
	}
	start := time.Now()
	if err := s3helper.UploadFile(ctx, client, bucket, key, res.OutputPath, s3helper.CSVContentType, metadata); err != nil {
		return exporterr.Output("upload s3://"+bucket+"/"+key, err)
	}
	slog.Info("Uploaded export",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.String("runID", res.RunID),
		slog.String("duration", helpers.FormatDuration(time.Since(start))))
	return nil
}

func printSaved(w io.Writer, res *exporter.Result) {
	fmt.Fprintf(w, "[✔] %d items saved to %s\n", res.Rows, res.OutputPath)
}

func printEmpty(w io.Writer) {
	fmt.Fprintln(w, "[i] No items found.")
}
