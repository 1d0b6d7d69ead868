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

package debugging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
)

// PprofPortEnv enables the profiling endpoint for long exports. Unset or
// "0" leaves it off.
const PprofPortEnv = "DDBEXPORT_PPROF_PORT"

// RunPprof serves net/http/pprof on localhost until ctx is done.
func RunPprof(ctx context.Context) {
	port := getPprofPort()
	if port <= 0 {
		return
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	server := &http.Server{Addr: addr}

	go func() {
		slog.Info("Starting pprof server", slog.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Pprof server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down pprof server", slog.Any("error", err))
		}
	}()
}

func getPprofPort() int {
	envPort := os.Getenv(PprofPortEnv)
	switch envPort {
	case "", "0", "false", "off":
		return 0
	}

	port, err := strconv.Atoi(envPort)
	if err != nil || port > 65535 {
		slog.Warn("Invalid pprof port, profiling stays off", slog.String("value", envPort))
		return 0
	}
	return port
}
