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

package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanStaleFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)

	write := func(name string, mtime time.Time) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
		return path
	}
	stale := write("ddbexport-a-1.jsonl", old)
	staleZst := write("ddbexport-b-2.jsonl.zst", old)
	fresh := write("ddbexport-c-3.jsonl", time.Now())
	other := write("report.csv", old)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ddbexport-dir.jsonl"), 0o755))

	n := CleanStaleFiles(dir, "ddbexport-*.jsonl*", 24*time.Hour)
	assert.Equal(t, 2, n)
	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, staleZst)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
	assert.DirExists(t, filepath.Join(dir, "ddbexport-dir.jsonl"))
}

func TestCleanStaleFilesMissingDir(t *testing.T) {
	assert.Equal(t, 0, CleanStaleFiles(filepath.Join(t.TempDir(), "nope"), "*", time.Hour))
}

func TestCleanStaleFilesKeepsListedPaths(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	keep := filepath.Join(dir, "ddbexport-keep.jsonl")
	gone := filepath.Join(dir, "ddbexport-gone.jsonl")
	for _, path := range []string{keep, gone} {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, old, old))
	}

	n := CleanStaleFiles(dir, "ddbexport-*.jsonl*", 24*time.Hour, "", keep)
	assert.Equal(t, 1, n)
	assert.FileExists(t, keep)
	assert.NoFileExists(t, gone)
}
