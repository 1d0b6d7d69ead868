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
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CleanStaleFiles removes regular files in dir that match the glob pattern
// and were last modified more than olderThan ago. Paths listed in keep are
// never removed. It returns how many were removed. Errors are logged and
// skipped.
func CleanStaleFiles(dir, pattern string, olderThan time.Duration, keep ...string) int {
	if dir == "" {
		dir = os.TempDir()
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		slog.Info("Bad stale file pattern (ignoring)", slog.String("pattern", pattern), slog.Any("error", err))
		return 0
	}

	kept := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		if k == "" {
			continue
		}
		if abs, err := filepath.Abs(k); err == nil {
			kept[abs] = struct{}{}
		}
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil {
			if _, ok := kept[abs]; ok {
				continue
			}
		}
		st, err := os.Lstat(path)
		if err != nil || !st.Mode().IsRegular() || st.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Info("Failed to remove stale file (ignoring)", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Removed stale scratch files", slog.String("dir", dir), slog.Int("count", removed))
	}
	return removed
}
