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

package exporterr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanAbortedErrorMessage(t *testing.T) {
	err := &ScanAbortedError{ExitCode: 2, Stderr: "ProvisionedThroughputExceededException: slow down\n"}
	assert.Equal(t, "ProvisionedThroughputExceededException: slow down", err.Error())
	assert.ErrorIs(t, err, ErrScanAborted)

	wrapped := fmt.Errorf("export: %w", err)
	var sa *ScanAbortedError
	assert.True(t, errors.As(wrapped, &sa))
	assert.Equal(t, 2, sa.ExitCode)
}

func TestScanAbortedErrorFallbacks(t *testing.T) {
	assert.Equal(t, "scan provider exited with status 7", (&ScanAbortedError{ExitCode: 7}).Error())

	err := &ScanAbortedError{ExitCode: -1, Err: io.ErrUnexpectedEOF}
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrScanAborted)
}

func TestMalformedRecordError(t *testing.T) {
	err := &MalformedRecordError{Line: 4, Field: "price", Reason: "wrapper has 2 keys"}
	assert.Equal(t, `malformed record at line 4 field "price": wrapper has 2 keys`, err.Error())
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.NotErrorIs(t, err, ErrScanAborted)
}

func TestUnavailable(t *testing.T) {
	err := Unavailable("%s not found in PATH", "aws-dynamodb-parallel-scan")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "aws-dynamodb-parallel-scan not found in PATH")
}

func TestOutput(t *testing.T) {
	err := Output("close out.csv", io.ErrShortWrite)
	assert.ErrorIs(t, err, ErrOutput)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, "output write failed: close out.csv: short write", err.Error())
}
