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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cardinalhq/ddbexport/internal/constants"
	"github.com/cardinalhq/ddbexport/internal/exporterr"
	"github.com/cardinalhq/ddbexport/internal/logctx"
)

const defaultGracePeriod = 10 * time.Second

// CommandProvider runs an external parallel-scan executable and reads its
// newline-delimited JSON output.
type CommandProvider struct {
	// Command is the executable name or path.
	Command string
	// GracePeriod is how long a canceled provider gets between SIGTERM and
	// SIGKILL.
	GracePeriod time.Duration
}

var _ Provider = (*CommandProvider)(nil)

// NewCommandProvider returns a provider for command, or for
// aws-dynamodb-parallel-scan when command is empty.
func NewCommandProvider(command string) *CommandProvider {
	if command == "" {
		command = constants.ScanProviderCommand
	}
	return &CommandProvider{Command: command, GracePeriod: defaultGracePeriod}
}

func (p *CommandProvider) Name() string {
	return "command"
}

func (p *CommandProvider) Preflight(_ context.Context, _ Request) error {
	_, err := p.resolve()
	return err
}

func (p *CommandProvider) resolve() (string, error) {
	path, err := exec.LookPath(p.Command)
	if err != nil {
		return "", exporterr.Unavailable("%s not found; please install it", p.Command)
	}
	return path, nil
}

// BuildArgs returns the provider arguments for req.
func BuildArgs(req Request) []string {
	args := []string{
		"--table-name", req.Table,
		"--total-segments", strconv.Itoa(req.segments()),
	}
	if req.Filter != nil {
		args = append(args,
			"--filter-expression", req.Filter.Expression(),
			"--expression-attribute-values", req.Filter.AttributeValuesJSON(),
		)
	}
	return args
}

func (p *CommandProvider) Start(ctx context.Context, req Request) (Stream, error) {
	path, err := p.resolve()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, BuildArgs(req)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = p.GracePeriod
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultGracePeriod
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("provider stdout: %w", err)
	}
	// exec copies stderr on its own goroutine, so the pipe is drained while
	// stdout is being read and is complete once Wait returns.
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, exporterr.Unavailable("start %s: %v", path, err)
	}
	logger := logctx.FromContext(ctx)
	logger.Info("Started scan provider",
		slog.String("command", path),
		slog.Int("pid", cmd.Process.Pid),
		slog.Int("segments", req.segments()),
		slog.Bool("filtered", req.Filter != nil))

	return &commandStream{
		ctx:    ctx,
		logger: logger,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		lines:  newLineReader(stdout, req.WrapperPolicy),
	}, nil
}

type commandStream struct {
	ctx    context.Context
	logger *slog.Logger
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	lines  *lineReader

	waitOnce sync.Once
	waitErr  error
}

func (s *commandStream) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.lines.next()
}

func (s *commandStream) Wait() error {
	s.waitOnce.Do(func() {
		// Wait must not run while stdout still has unread data.
		_, _ = io.Copy(io.Discard, s.stdout)
		err := s.cmd.Wait()
		s.waitErr = s.classify(err)
	})
	return s.waitErr
}

func (s *commandStream) classify(err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", exporterr.ErrCanceled, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &exporterr.ScanAbortedError{ExitCode: exitErr.ExitCode(), Stderr: s.stderr.String()}
	}
	return &exporterr.ScanAbortedError{ExitCode: -1, Stderr: s.stderr.String(), Err: err}
}

func (s *commandStream) Close() error {
	done := false
	s.waitOnce.Do(func() {
		done = true
		if s.cmd.ProcessState == nil {
			_ = s.cmd.Process.Kill()
		}
		_, _ = io.Copy(io.Discard, s.stdout)
		_ = s.cmd.Wait()
		s.waitErr = fmt.Errorf("%w: provider stopped before completion", exporterr.ErrScanAborted)
	})
	if done {
		s.logger.Debug("Scan provider stopped early", slog.Int("pid", s.cmd.Process.Pid))
	}
	return nil
}
