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

package exporter

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	rowsWritten      metric.Int64Counter
	batchesRead      metric.Int64Counter
	malformedCounter metric.Int64Counter
	mismatchRows     metric.Int64Counter
	runDuration      metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/ddbexport/internal/exporter")

	var err error

	rowsWritten, err = meter.Int64Counter(
		"ddbexport.rows.written",
		metric.WithDescription("Rows written to the output table"),
	)
	if err != nil {
		log.Fatalf("failed to create rows.written counter: %v", err)
	}

	batchesRead, err = meter.Int64Counter(
		"ddbexport.batches.read",
		metric.WithDescription("Scan response batches consumed from the provider"),
	)
	if err != nil {
		log.Fatalf("failed to create batches.read counter: %v", err)
	}

	malformedCounter, err = meter.Int64Counter(
		"ddbexport.records.malformed",
		metric.WithDescription("Provider lines or items skipped because they could not be decoded"),
	)
	if err != nil {
		log.Fatalf("failed to create records.malformed counter: %v", err)
	}

	mismatchRows, err = meter.Int64Counter(
		"ddbexport.rows.schema_mismatch",
		metric.WithDescription("Rows whose field set differed from the output columns"),
	)
	if err != nil {
		log.Fatalf("failed to create rows.schema_mismatch counter: %v", err)
	}

	runDuration, err = meter.Float64Histogram(
		"ddbexport.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of one export run"),
	)
	if err != nil {
		log.Fatalf("failed to create run.duration histogram: %v", err)
	}
}

func recordMalformed(ctx context.Context, table, kind string) {
	malformedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("kind", kind),
	))
}

func recordRun(res *Result, outcome string) {
	attrs := metric.WithAttributes(
		attribute.String("table", res.Table),
		attribute.String("outcome", outcome),
	)
	ctx := context.Background()
	rowsWritten.Add(ctx, res.Rows, attrs)
	batchesRead.Add(ctx, res.Batches, attrs)
	mismatchRows.Add(ctx, res.SchemaMismatchRows, attrs)
	runDuration.Record(ctx, res.Duration.Seconds(), attrs)
}
