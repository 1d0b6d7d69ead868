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

// Package scan runs a segment-parallel table scan and exposes the result as
// a single stream of response batches in arrival order.
//
// Segment parallelism belongs to the provider. Consumers read one batch at a
// time from Stream.Next until io.EOF and then call Stream.Wait to learn
// whether the provider finished cleanly.
package scan

import (
	"context"

	"github.com/cardinalhq/ddbexport/internal/constants"
	"github.com/cardinalhq/ddbexport/internal/ddbitem"
	"github.com/cardinalhq/ddbexport/internal/timefilter"
)

// Request describes one full-table scan.
type Request struct {
	Table string
	// Segments is the parallel scan segment count. Zero means the default of 1000.
	Segments int
	// Filter is optional.
	Filter        *timefilter.ScanFilter
	WrapperPolicy ddbitem.WrapperPolicy
}

func (r Request) segments() int {
	if r.Segments <= 0 {
		return constants.DefaultTotalSegments
	}
	return r.Segments
}

// Batch is one provider response: the raw line as emitted and its decoded items.
type Batch struct {
	// Raw is the exact response line, without the trailing newline.
	Raw []byte
	// Line is the 1-based position of this batch in the stream.
	Line     int
	Segment  int
	Items    []*ddbitem.Item
	Rejected []error
	Scanned  int
}

// Provider starts scans.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// Preflight verifies the provider can be reached. It must not produce
	// output and is called before the caller opens any files.
	Preflight(ctx context.Context, req Request) error
	// Start launches the scan.
	Start(ctx context.Context, req Request) (Stream, error)
}

// Stream is a running scan.
type Stream interface {
	// Next returns the next batch. It returns io.EOF when the provider has
	// no more output. A line that cannot be decoded is returned as a
	// non-nil Batch carrying only Raw together with a
	// *exporterr.MalformedRecordError; the stream stays usable.
	Next(ctx context.Context) (*Batch, error)
	// Wait blocks until the provider has finished and reports its outcome.
	// Call it after Next returned io.EOF.
	Wait() error
	// Close stops the provider if still running and releases resources.
	// It is safe to call after Wait and more than once.
	Close() error
}
