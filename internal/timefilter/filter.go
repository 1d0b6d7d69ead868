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
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cardinalhq/ddbexport/internal/exporterr"
)

// Layout is the accepted filter time format, interpreted in time.Local.
const Layout = "02-01-2006-15:04:05"

const (
	TimestampAttribute    = "tstamp"
	PartitionKeyAttribute = "productId"

	PlaceholderStart        = ":ts_ini"
	PlaceholderEnd          = ":ts_fin"
	PlaceholderPartitionKey = ":pid"
)

// ScanFilter restricts a scan to a time range on one partition key.
type ScanFilter struct {
	StartMillis  int64
	EndMillis    int64
	PartitionKey string
}

// ParseTimestamp converts a DD-MM-YYYY-HH:MM:SS string in the local
// timezone into milliseconds since the epoch.
func ParseTimestamp(s string) (int64, error) {
	t, err := time.ParseInLocation(Layout, s, time.Local)
	if err != nil {
		return 0, fmt.Errorf("%w: %q does not match DD-MM-YYYY-HH:MM:SS: %v", exporterr.ErrMalformedTimestamp, s, err)
	}
	return t.UnixMilli(), nil
}

// New builds a filter from its three inputs. All three must be present.
func New(start, end, partitionKey string) (*ScanFilter, error) {
	if start == "" || end == "" || partitionKey == "" {
		return nil, exporterr.ErrPartialFilter
	}
	startMs, err := ParseTimestamp(start)
	if err != nil {
		return nil, err
	}
	endMs, err := ParseTimestamp(end)
	if err != nil {
		return nil, err
	}
	if startMs > endMs {
		slog.Warn("Filter start is after filter end; the scan will match nothing",
			slog.String("start", start),
			slog.String("end", end))
	}
	return &ScanFilter{
		StartMillis:  startMs,
		EndMillis:    endMs,
		PartitionKey: partitionKey,
	}, nil
}

// FromOptional returns nil when no filter input is set, a filter when all
// three are set, and ErrPartialFilter otherwise.
func FromOptional(start, end, partitionKey string) (*ScanFilter, error) {
	set := 0
	for _, v := range []string{start, end, partitionKey} {
		if v != "" {
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case 3:
		return New(start, end, partitionKey)
	default:
		return nil, exporterr.ErrPartialFilter
	}
}

// Expression returns the provider filter expression using named placeholders.
func (f *ScanFilter) Expression() string {
	return TimestampAttribute + " BETWEEN " + PlaceholderStart + " AND " + PlaceholderEnd +
		" AND " + PartitionKeyAttribute + " = " + PlaceholderPartitionKey
}

// AttributeValuesJSON renders the bound placeholder values in the provider's
// type-tagged wire form. Keys keep a fixed order so the output is stable.
func (f *ScanFilter) AttributeValuesJSON() string {
	var b bytes.Buffer
	b.WriteByte('{')
	writePair(&b, PlaceholderStart, "N", strconv.FormatInt(f.StartMillis, 10))
	b.WriteByte(',')
	writePair(&b, PlaceholderEnd, "N", strconv.FormatInt(f.EndMillis, 10))
	b.WriteByte(',')
	writePair(&b, PlaceholderPartitionKey, "S", f.PartitionKey)
	b.WriteByte('}')
	return b.String()
}

func writePair(b *bytes.Buffer, placeholder, tag, value string) {
	k, _ := json.Marshal(placeholder)
	v, _ := json.Marshal(value)
	b.Write(k)
	b.WriteString(`:{"`)
	b.WriteString(tag)
	b.WriteString(`":`)
	b.Write(v)
	b.WriteByte('}')
}

// AttributeValues returns the bound placeholder values for the DynamoDB SDK.
func (f *ScanFilter) AttributeValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		PlaceholderStart:        &types.AttributeValueMemberN{Value: strconv.FormatInt(f.StartMillis, 10)},
		PlaceholderEnd:          &types.AttributeValueMemberN{Value: strconv.FormatInt(f.EndMillis, 10)},
		PlaceholderPartitionKey: &types.AttributeValueMemberS{Value: f.PartitionKey},
	}
}

func (f *ScanFilter) LogValue() slog.Value {
	if f == nil {
		return slog.StringValue("none")
	}
	return slog.GroupValue(
		slog.Int64("startMillis", f.StartMillis),
		slog.Int64("endMillis", f.EndMillis),
		slog.String("partitionKey", f.PartitionKey),
	)
}
