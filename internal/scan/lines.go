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

package scan

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/cardinalhq/ddbexport/internal/constants"
	"github.com/cardinalhq/ddbexport/internal/ddbitem"
	"github.com/cardinalhq/ddbexport/internal/exporterr"
)

// lineReader turns newline-delimited provider output into batches.
type lineReader struct {
	scanner *bufio.Scanner
	policy  ddbitem.WrapperPolicy
	lineNo  int
	done    bool
}

func newLineReader(r io.Reader, policy ddbitem.WrapperPolicy) *lineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, constants.InitialLineBufBytes), constants.MaxLineSizeBytes)
	return &lineReader{scanner: scanner, policy: policy}
}

func (lr *lineReader) next() (*Batch, error) {
	if lr.done {
		return nil, io.EOF
	}
	for lr.scanner.Scan() {
		lr.lineNo++
		raw := lr.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		batch := &Batch{Raw: bytes.Clone(raw), Line: lr.lineNo, Segment: -1}
		page, err := ddbitem.ParseResponse(batch.Raw, lr.lineNo, lr.policy)
		if err != nil {
			return batch, err
		}
		batch.Items = page.Items
		batch.Rejected = page.Rejected
		batch.Scanned = page.ScannedCount
		return batch, nil
	}

	lr.done = true
	if err := lr.scanner.Err(); err != nil {
		return nil, &exporterr.ScanAbortedError{
			ExitCode: -1,
			Err:      fmt.Errorf("read provider output after line %d: %w", lr.lineNo, err),
		}
	}
	return nil, io.EOF
}
