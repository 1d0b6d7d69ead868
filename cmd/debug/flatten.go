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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/ddbexport/internal/constants"
	"github.com/cardinalhq/ddbexport/internal/ddbitem"
)

func GetFlattenCmd() *cobra.Command {
	var policyName string

	cmd := &cobra.Command{
		Use:   "flatten",
		Short: "Flatten scan output lines from stdin into JSON records",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			policy, err := ddbitem.ParseWrapperPolicy(policyName)
			if err != nil {
				return err
			}
			return flattenLines(c.InOrStdin(), c.OutOrStdout(), policy)
		},
	}

	cmd.Flags().StringVar(&policyName, "wrapper-policy", "strict", "Type wrapper policy: strict or first")

	return cmd
}

func flattenLines(r io.Reader, w io.Writer, policy ddbitem.WrapperPolicy) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, constants.InitialLineBufBytes), constants.MaxLineSizeBytes)
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		page, err := ddbitem.ParseResponse(line, lineNo, policy)
		if err != nil {
			slog.Warn("Skipping malformed line", slog.Int("line", lineNo), slog.Any("error", err))
			continue
		}
		for _, rej := range page.Rejected {
			slog.Warn("Skipping malformed item", slog.Any("error", rej))
		}
		for _, it := range page.Items {
			if err := enc.Encode(ddbitem.Flatten(it)); err != nil {
				return fmt.Errorf("encode line %d: %w", lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input after line %d: %w", lineNo, err)
	}
	return bw.Flush()
}
