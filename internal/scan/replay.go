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
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/cardinalhq/ddbexport/internal/exporterr"
)

// ReplayProvider reads a saved provider output file instead of scanning.
// Files ending in .zst are decompressed.
type ReplayProvider struct {
	Path string
}

var _ Provider = (*ReplayProvider)(nil)

func NewReplayProvider(path string) *ReplayProvider {
	return &ReplayProvider{Path: path}
}

func (p *ReplayProvider) Name() string {
	return "replay"
}

func (p *ReplayProvider) Preflight(_ context.Context, _ Request) error {
	st, err := os.Stat(p.Path)
	if err != nil {
		return exporterr.Unavailable("scan file %s: %v", p.Path, err)
	}
	if st.IsDir() {
		return exporterr.Unavailable("scan file %s is a directory", p.Path)
	}
	return nil
}

func (p *ReplayProvider) Start(_ context.Context, req Request) (Stream, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, exporterr.Unavailable("open scan file: %v", err)
	}

	s := &replayStream{file: f}
	var r io.Reader = f
	if strings.HasSuffix(p.Path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("open zstd scan file: %w", err)
		}
		s.dec = dec
		r = dec
	}
	s.lines = newLineReader(r, req.WrapperPolicy)
	return s, nil
}

type replayStream struct {
	file   *os.File
	dec    *zstd.Decoder
	lines  *lineReader
	closed bool
}

func (s *replayStream) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.lines.next()
}

func (s *replayStream) Wait() error {
	return nil
}

func (s *replayStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.dec != nil {
		s.dec.Close()
	}
	return s.file.Close()
}
