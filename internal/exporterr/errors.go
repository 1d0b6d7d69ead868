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

// Package exporterr holds the error kinds shared by the export pipeline.
// Callers classify failures with errors.Is against the sentinels below;
// the typed errors carry the detail and unwrap to their sentinel.
package exporterr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedTimestamp is returned when a filter time does not match
	// the DD-MM-YYYY-HH:MM:SS layout exactly.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrPartialFilter is returned when only some of the filter inputs are set.
	ErrPartialFilter = errors.New("start time, end time and partition key must be used together")

	// ErrProviderUnavailable is returned before any output is touched when the
	// scan provider cannot be located or reached.
	ErrProviderUnavailable = errors.New("scan provider unavailable")

	// ErrScanAborted is returned when the provider fails after streaming started.
	ErrScanAborted = errors.New("scan aborted")

	// ErrMalformedRecord marks a single provider line or item that could not be
	// decoded. It is recovered locally and never aborts a run.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrCanceled is returned when the run was stopped by a signal or timeout.
	ErrCanceled = errors.New("export canceled")

	// ErrOutput is returned when the output file or its upload cannot be written.
	ErrOutput = errors.New("output write failed")
)

// ScanAbortedError carries the provider's failure detail verbatim.
type ScanAbortedError struct {
	// ExitCode is the provider process exit status, or -1 for in-process providers.
	ExitCode int
	// Stderr is the provider's captured error output or the API error text.
	Stderr string
	Err    error
}

func (e *ScanAbortedError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if detail == "" {
		return fmt.Sprintf("scan provider exited with status %d", e.ExitCode)
	}
	return detail
}

func (e *ScanAbortedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrScanAborted, e.Err}
	}
	return []error{ErrScanAborted}
}

// MalformedRecordError describes a provider line or item that was skipped.
type MalformedRecordError struct {
	Line   int
	Field  string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	var b strings.Builder
	b.WriteString("malformed record")
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *MalformedRecordError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedRecord, e.Err}
	}
	return []error{ErrMalformedRecord}
}

// Output wraps err so that it matches ErrOutput.
func Output(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOutput, op, err)
}

// Unavailable wraps err so that it matches ErrProviderUnavailable.
func Unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProviderUnavailable, fmt.Sprintf(format, args...))
}
