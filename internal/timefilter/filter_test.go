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

package timefilter

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/ddbexport/internal/exporterr"
)

func TestParseTimestampLocal(t *testing.T) {
	got, err := ParseTimestamp("24-04-2025-10:00:00")
	require.NoError(t, err)

	want := time.Date(2025, time.April, 24, 10, 0, 0, 0, time.Local).UnixMilli()
	assert.Equal(t, want, got)
}

func TestParseTimestampFollowsLocalZone(t *testing.T) {
	saved := time.Local
	t.Cleanup(func() { time.Local = saved })

	time.Local = time.UTC
	utc, err := ParseTimestamp("24-04-2025-10:00:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1745488800000), utc)

	time.Local = time.FixedZone("UTC+2", 2*60*60)
	plus2, err := ParseTimestamp("24-04-2025-10:00:00")
	require.NoError(t, err)
	assert.Equal(t, utc-2*60*60*1000, plus2)
}

func TestParseTimestampRejectsOtherLayouts(t *testing.T) {
	tests := []string{
		"",
		"2025-04-24 10:00:00",
		"24-04-2025 10:00:00",
		"24-04-2025-10:00",
		"24-04-2025-10:00:00Z",
		"24-04-2025-10:00:00 ",
		"32-04-2025-10:00:00",
		"24/04/2025-10:00:00",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimestamp(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, exporterr.ErrMalformedTimestamp)
		})
	}
}

func TestFromOptional(t *testing.T) {
	f, err := FromOptional("", "", "")
	require.NoError(t, err)
	assert.Nil(t, f)

	partial := [][3]string{
		{"24-04-2025-10:00:00", "", ""},
		{"", "25-04-2025-10:00:00", "4"},
		{"24-04-2025-10:00:00", "25-04-2025-10:00:00", ""},
	}
	for _, p := range partial {
		_, err := FromOptional(p[0], p[1], p[2])
		assert.ErrorIs(t, err, exporterr.ErrPartialFilter)
	}

	f, err = FromOptional("24-04-2025-10:00:00", "25-04-2025-10:00:00", "4")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, int64(24*60*60*1000), f.EndMillis-f.StartMillis)
	assert.Equal(t, "4", f.PartitionKey)
}

func TestNewMalformedEnd(t *testing.T) {
	_, err := New("24-04-2025-10:00:00", "tomorrow", "4")
	assert.ErrorIs(t, err, exporterr.ErrMalformedTimestamp)
	assert.Contains(t, err.Error(), `"tomorrow"`)
}

func TestExpressionAndValues(t *testing.T) {
	f := &ScanFilter{StartMillis: 1714000000000, EndMillis: 1714100000000, PartitionKey: "4"}

	assert.Equal(t, "tstamp BETWEEN :ts_ini AND :ts_fin AND productId = :pid", f.Expression())
	assert.Equal(t,
		`{":ts_ini":{"N":"1714000000000"},":ts_fin":{"N":"1714100000000"},":pid":{"S":"4"}}`,
		f.AttributeValuesJSON())

	var decoded map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(f.AttributeValuesJSON()), &decoded))
	assert.Equal(t, map[string]map[string]string{
		":ts_ini": {"N": "1714000000000"},
		":ts_fin": {"N": "1714100000000"},
		":pid":    {"S": "4"},
	}, decoded)
}

func TestAttributeValuesJSONEscapes(t *testing.T) {
	f := &ScanFilter{StartMillis: 1, EndMillis: 2, PartitionKey: `a"b`}
	assert.Equal(t, `{":ts_ini":{"N":"1"},":ts_fin":{"N":"2"},":pid":{"S":"a\"b"}}`, f.AttributeValuesJSON())
}

func TestAttributeValuesSDK(t *testing.T) {
	f := &ScanFilter{StartMillis: 1714000000000, EndMillis: 1714100000000, PartitionKey: "4"}
	av := f.AttributeValues()

	require.Len(t, av, 3)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1714000000000"}, av[":ts_ini"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1714100000000"}, av[":ts_fin"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "4"}, av[":pid"])
}

func TestLogValue(t *testing.T) {
	var none *ScanFilter
	assert.Equal(t, "none", none.LogValue().String())

	f := &ScanFilter{StartMillis: 1, EndMillis: 2, PartitionKey: "4"}
	v := f.LogValue()
	assert.Equal(t, slog.KindGroup, v.Kind())
	assert.Len(t, v.Group(), 3)
}
