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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/KimMachineGun/automemlimit/memlimit"
	gomaxecs "github.com/rdforte/gomaxecs/maxprocs"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cardinalhq/ddbexport/cmd"
)

// quietLogger keeps runtime tuning messages off the terminal unless
// debugging, since stdout and stderr belong to the export.
func quietLogger(msg string, args ...any) {
	if os.Getenv("DEBUG") != "" || os.Getenv("DDBEXPORT_DEBUG") != "" {
		fmt.Fprintf(os.Stderr, msg+"\n", args...)
	}
}

func init() {
	setMaxProcs()
	setMemLimit()
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(50)
		_ = os.Setenv("GOGC", "50")
	}
}

func setMaxProcs() {
	var err error
	if gomaxecs.IsECS() {
		_, err = gomaxecs.Set(gomaxecs.WithLogger(quietLogger))
	} else {
		_, err = maxprocs.Set(maxprocs.Logger(quietLogger))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set GOMAXPROCS: %v\n", err)
	}
}

func setMemLimit() {
	_, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.8),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			),
		),
	)
	if err != nil {
		quietLogger("failed to set GOMEMLIMIT: %v", err)
	}
}

// Scratch files default to a per-tool subdirectory of the system temp dir.
// Timestamps given on the command line are read in the local timezone, so
// time.Local is left alone.
func main() {
	tmp := filepath.Join(os.TempDir(), "ddbexport")
	if err := os.MkdirAll(tmp, 0755); err != nil {
		slog.Warn("Failed to create temp dir path (ignoring)", slog.String("path", tmp), slog.Any("error", err))
	} else if err := os.Setenv("TMPDIR", tmp); err != nil {
		slog.Warn("Failed to set TMPDIR environment variable", slog.String("path", tmp), slog.Any("error", err))
	}

	cmd.Execute()
}
