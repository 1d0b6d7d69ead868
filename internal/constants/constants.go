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

package constants

const (
	// A DynamoDB scan page holds at most 1MB of item data; the JSON rendering
	// with type wrappers is larger, so leave generous headroom.
	MaxLineSizeBytes     = 32 * 1024 * 1024
	InitialLineBufBytes  = 64 * 1024
	DefaultTotalSegments = 1000
	DefaultConcurrency   = 32
	DefaultProgressEvery = int64(100_000)
	ScanProviderCommand  = "aws-dynamodb-parallel-scan"
)
