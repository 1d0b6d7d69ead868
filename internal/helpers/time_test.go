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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnixMillisToLocal(t *testing.T) {
	got := UnixMillisToLocal(1745488800000)
	assert.Equal(t, time.Local, got.Location())
	assert.True(t, got.Equal(time.Date(2025, 4, 24, 10, 0, 0, 0, time.UTC)))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero duration", 0, "0s"},
		{"30 seconds", 30 * time.Second, "30s"},
		{"59 seconds", 59 * time.Second, "59s"},
		{"exactly 1 minute", time.Minute, "1m"},
		{"1 minute 30 seconds", time.Minute + 30*time.Second, "1m30s"},
		{"5 minutes 45 seconds", 5*time.Minute + 45*time.Second, "5m45s"},
		{"exactly 1 hour", time.Hour, "1h"},
		{"1 hour 30 minutes", time.Hour + 30*time.Minute, "1h30m"},
		{"25 hours 30 minutes", 25*time.Hour + 30*time.Minute, "25h30m"},
		{"fractional seconds round", time.Duration(30.7 * float64(time.Second)), "31s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.duration), "FormatDuration(%v)", tt.duration)
		})
	}
}

func TestRowsPerSecond(t *testing.T) {
	assert.InDelta(t, 500.0, RowsPerSecond(1000, 2*time.Second), 0.001)
	assert.Zero(t, RowsPerSecond(1000, 0))
}
