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

package exporter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/zstd"
	"github.com/oklog/ulid/v2"
)

const spoolBufferBytes = 256 * 1024

// spool copies raw provider lines to a file. Scratch spools are removed on
// close; raw-copy spools are kept for the caller.
type spool struct {
	path string
	file *os.File
	buf  *bufio.Writer
	enc  *zstd.Encoder
	w    io.Writer
	keep bool
}

// scratchGlob matches the scratch file names createScratch produces: the
// prefix, a 26 character ULID run id, then the random CreateTemp suffix.
var scratchGlob = "ddbexport-" + strings.Repeat("[0-9A-Z]", ulid.EncodedSize) + "-*.jsonl*"

func createScratch(dir, runID string, compress bool) (*spool, error) {
	pattern := "ddbexport-" + runID + "-*.jsonl"
	if compress {
		pattern += ".zst"
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	return newSpool(f, compress, false)
}

// createRawCopy opens path for a kept copy of the provider output. Paths
// ending in .zst are compressed.
func createRawCopy(path string) (*spool, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create raw copy: %w", err)
	}
	return newSpool(f, strings.HasSuffix(path, ".zst"), true)
}

func newSpool(f *os.File, compress, keep bool) (*spool, error) {
	s := &spool{path: f.Name(), file: f, keep: keep}
	s.buf = bufio.NewWriterSize(f, spoolBufferBytes)
	s.w = s.buf
	if compress {
		enc, err := zstd.NewWriter(s.buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			if !keep {
				_ = os.Remove(s.path)
			}
			return nil, fmt.Errorf("zstd encoder for %s: %w", s.path, err)
		}
		s.enc = enc
		s.w = enc
	}
	return s, nil
}

func (s *spool) writeLine(line []byte) error {
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	_, err := s.w.Write([]byte{'\n'})
	return err
}

// close flushes and closes the file, then removes it unless it is kept.
// Removal is attempted even when flushing fails.
func (s *spool) close() error {
	var errs *multierror.Error
	if s.enc != nil {
		errs = multierror.Append(errs, s.enc.Close())
	}
	errs = multierror.Append(errs, s.buf.Flush())
	errs = multierror.Append(errs, s.file.Close())
	if !s.keep {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierror.Append(errs, fmt.Errorf("remove scratch file: %w", err))
		}
	}
	return compact(errs).ErrorOrNil()
}

// compact sets a single-line message format on errs.
func compact(errs *multierror.Error) *multierror.Error {
	if errs != nil {
		errs.ErrorFormat = func(es []error) string {
			parts := make([]string, len(es))
			for i, e := range es {
				parts[i] = e.Error()
			}
			return strings.Join(parts, "; ")
		}
	}
	return errs
}
