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

package debug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/ddbexport/internal/ddbitem"
	"github.com/cardinalhq/ddbexport/internal/timefilter"
)

func TestFlattenLines(t *testing.T) {
	in := strings.NewReader(`{"Items":[{"id":{"S":"1"},"tags":{"SS":["a","b"]},"n":{"N":"1.50"}}]}
not json

{"Items":[{"id":{"S":"2"},"meta":{"M":{"z":{"NULL":true},"a":{"L":[{"N":"1"},{"S":"x"}]}}}},{"bad":{"S":"x","N":"1"}}]}
`)
	var out bytes.Buffer
	require.NoError(t, flattenLines(in, &out, ddbitem.PolicyStrict))

	assert.Equal(t,
		`{"id":"1","tags":["a","b"],"n":"1.50"}
{"id":"2","meta":{"z":null,"a":["1","x"]}}
`, out.String())
}

func TestPrintFilter(t *testing.T) {
	var out bytes.Buffer
	printFilter(&out, &timefilter.ScanFilter{StartMillis: 2, EndMillis: 1, PartitionKey: "7"})
	assert.Contains(t, out.String(), `{":ts_ini":{"N":"2"},":ts_fin":{"N":"1"},":pid":{"S":"7"}}`)
	assert.Contains(t, out.String(), "start is after end")

	out.Reset()
	printFilter(&out, nil)
	assert.Equal(t, "No filter: the whole table is scanned.\n", out.String())
}
