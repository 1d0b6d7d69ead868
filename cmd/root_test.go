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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/ddbexport/internal/exporterr"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		started bool
		want    int
	}{
		{"nil", nil, true, ExitOK},
		{"flag parse", errors.New("unknown flag: --nope"), false, ExitUsage},
		{"usage", usagef("bad upload url"), true, ExitUsage},
		{"partial filter", exporterr.ErrPartialFilter, true, ExitUsage},
		{"timestamp", fmt.Errorf("%w: %q", exporterr.ErrMalformedTimestamp, "x"), true, ExitUsage},
		{"unavailable", exporterr.Unavailable("missing"), true, ExitUnavailable},
		{"aborted", &exporterr.ScanAbortedError{ExitCode: 1, Stderr: "boom"}, true, ExitScanAborted},
		{"output", exporterr.Output("close", io.ErrShortWrite), true, ExitOutput},
		{"canceled", fmt.Errorf("%w: %w", exporterr.ErrCanceled, context.Canceled), true, ExitCanceled},
		{"other", errors.New("something else"), true, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err, tt.started))
		})
	}
}

// resetFlags puts every flag of the command tree back to its default so
// runs within one test binary do not leak into each other.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	prevLog := logOutput
	logOutput = io.Discard
	t.Cleanup(func() { logOutput = prevLog })

	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// fakeProvider writes a /bin/sh scan provider and points the config at it.
func fakeProvider(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-parallel-scan")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	t.Chdir(t.TempDir())
	t.Setenv("DDBEXPORT_PROVIDER_COMMAND", path)
	t.Setenv("DDBEXPORT_SCRATCH_DIR", dir)
}

func TestExportWritesCSV(t *testing.T) {
	fakeProvider(t, `echo '{"Items":[{"id":{"S":"1"},"qty":{"N":"3"}}]}'
echo '{"Items":[{"id":{"S":"2"},"qty":{"N":"4"}}]}'
`)
	out := filepath.Join(t.TempDir(), "out.csv")

	res := runCLI(t, "export", "--table-name", "events", "--output", out)
	require.Equal(t, ExitOK, res.code, res.stdout)
	assert.Equal(t, "[✔] 2 items saved to "+out+"\n", res.stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id,qty\n1,3\n2,4\n", string(data))
}

func TestExportNoItems(t *testing.T) {
	fakeProvider(t, `echo '{"Items":[],"Count":0,"ScannedCount":12}'
`)
	out := filepath.Join(t.TempDir(), "out.csv")

	res := runCLI(t, "export", "--table-name", "events", "--output", out)
	assert.Equal(t, ExitOK, res.code)
	assert.Equal(t, "[i] No items found.\n", res.stdout)
}

func TestExportScanAborted(t *testing.T) {
	fakeProvider(t, `echo '{"Items":[{"id":{"S":"1"}}]}'
echo 'An error occurred (AccessDeniedException) when calling the Scan operation' >&2
exit 254
`)
	out := filepath.Join(t.TempDir(), "out.csv")

	res := runCLI(t, "export", "--table-name", "events", "--output", out)
	assert.Equal(t, ExitScanAborted, res.code)
	assert.Equal(t, "[✘] Error: An error occurred (AccessDeniedException) when calling the Scan operation\n", res.stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))
}

func TestExportProviderUnavailable(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DDBEXPORT_PROVIDER_COMMAND", "ddbexport-no-such-provider-binary")
	out := filepath.Join(t.TempDir(), "out.csv")

	res := runCLI(t, "export", "--table-name", "events", "--output", out)
	assert.Equal(t, ExitUnavailable, res.code)
	assert.True(t, strings.HasPrefix(res.stdout, "[✘] Error: scan provider unavailable"), res.stdout)
	assert.NoFileExists(t, out)
}

func TestExportUsageErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	out := filepath.Join(t.TempDir(), "out.csv")

	tests := []struct {
		name   string
		args   []string
		prefix string
	}{
		{
			name:   "missing output",
			args:   []string{"export", "--table-name", "events"},
			prefix: "[✘] Error: required flag(s) \"output\" not set",
		},
		{
			name:   "partial filter",
			args:   []string{"export", "--table-name", "events", "--output", out, "--fecha-inicio", "01-04-2024-00:00:00"},
			prefix: "[✘] Error: start time, end time and partition key must be used together",
		},
		{
			name: "bad timestamp",
			args: []string{"export", "--table-name", "events", "--output", out,
				"--fecha-inicio", "2024-04-01", "--fecha-fin", "02-04-2024-00:00:00", "--product-id", "4"},
			prefix: "[✘] Error: malformed timestamp",
		},
		{
			name:   "bad upload url",
			args:   []string{"export", "--table-name", "events", "--output", out, "--upload", "https://example.com/x"},
			prefix: "[✘] Error:",
		},
		{
			name:   "bad provider",
			args:   []string{"export", "--table-name", "events", "--output", out, "--provider", "lambda"},
			prefix: "[✘] Error: provider.kind",
		},
		{
			name:   "unknown flag",
			args:   []string{"export", "--nope"},
			prefix: "[✘] Error: unknown flag",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.args...)
			assert.Equal(t, ExitUsage, res.code, res.stdout)
			assert.True(t, strings.HasPrefix(res.stdout, tt.prefix), res.stdout)
			assert.Contains(t, res.stderr, "--help")
			assert.NoFileExists(t, out)
		})
	}
}

func TestDebugFilter(t *testing.T) {
	res := runCLI(t, "debug", "filter",
		"--fecha-inicio", "01-04-2024-00:00:00", "--fecha-fin", "02-04-2024-00:00:00", "--product-id", "4")
	require.Equal(t, ExitOK, res.code, res.stdout)
	assert.Contains(t, res.stdout, "tstamp BETWEEN :ts_ini AND :ts_fin AND productId = :pid")
	assert.Contains(t, res.stdout, `":pid":{"S":"4"}`)

	res = runCLI(t, "debug", "filter")
	assert.Equal(t, ExitOK, res.code)
	assert.Contains(t, res.stdout, "No filter")
}

func TestDebugReplay(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(`{"Items":[{"id":{"S":"a"},"ok":{"BOOL":true}}]}
`), 0o644))
	out := filepath.Join(dir, "out.csv")

	res := runCLI(t, "debug", "replay", "--input", input, "--output", out)
	require.Equal(t, ExitOK, res.code, res.stdout)
	assert.True(t, strings.HasPrefix(res.stdout, "[✔] 1 items saved to "+out+"\n"), res.stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id,ok\na,true\n", string(data))

	res = runCLI(t, "debug", "replay", "--input", filepath.Join(dir, "missing.jsonl"), "--output", out)
	assert.Equal(t, ExitUnavailable, res.code)
}

func TestVersion(t *testing.T) {
	res := runCLI(t, "version")
	assert.Equal(t, ExitOK, res.code)
	assert.True(t, strings.HasPrefix(res.stdout, "ddbexport dev (commit "), res.stdout)
}
