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
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/ddbexport/internal/exporterr"
)

const replayLines = `{"Items":[{"id":{"S":"1"},"n":{"N":"10"}}]}
{"Items":[{"id":{"S":"2"},"n":{"N":"20"}},{"id":{"S":"3"}}]}
`

func TestReplayProviderPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(replayLines), 0o644))

	p := NewReplayProvider(path)
	require.NoError(t, p.Preflight(context.Background(), Request{}))
	s, err := p.Start(context.Background(), Request{})
	require.NoError(t, err)

	batches, malformed := drain(t, s)
	require.NoError(t, s.Wait())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Empty(t, malformed)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Items, 1)
	assert.Len(t, batches[1].Items, 2)
}

func TestReplayProviderZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.jsonl.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write([]byte(replayLines))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	s, err := NewReplayProvider(path).Start(context.Background(), Request{})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	batches, _ := drain(t, s)
	require.Len(t, batches, 2)
	v, ok := batches[1].Items[0].Get("n")
	require.True(t, ok)
	assert.Equal(t, "20", v.Str)
}

func TestReplayProviderMissing(t *testing.T) {
	p := NewReplayProvider(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.ErrorIs(t, p.Preflight(context.Background(), Request{}), exporterr.ErrProviderUnavailable)
	_, err := p.Start(context.Background(), Request{})
	assert.ErrorIs(t, err, exporterr.ErrProviderUnavailable)

	assert.ErrorIs(t, NewReplayProvider(t.TempDir()).Preflight(context.Background(), Request{}), exporterr.ErrProviderUnavailable)
}
