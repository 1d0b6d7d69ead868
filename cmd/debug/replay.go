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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/ddbexport/internal/ddbitem"
	"github.com/cardinalhq/ddbexport/internal/exporter"
	"github.com/cardinalhq/ddbexport/internal/helpers"
	"github.com/cardinalhq/ddbexport/internal/scan"
)

func GetReplayCmd() *cobra.Command {
	var input, output, policyName string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Write a CSV from a saved scan output file",
		Long: `Replay reads newline-delimited scan output saved with "export --raw-copy"
(plain or .zst) and runs it through the same flatten and CSV path as export.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			policy, err := ddbitem.ParseWrapperPolicy(policyName)
			if err != nil {
				return err
			}

			res, err := exporter.Run(c.Context(), exporter.Options{
				Table:         "replay",
				OutputPath:    output,
				Provider:      scan.NewReplayProvider(input),
				WrapperPolicy: policy,
			})
			if err != nil {
				return err
			}

			slog.Info("Replay finished",
				slog.Int64("rows", res.Rows),
				slog.Uint64("digest", res.Digest),
				slog.Float64("rowsPerSecond", helpers.RowsPerSecond(res.Rows, res.Duration)))
			if res.Empty() {
				fmt.Fprintln(c.OutOrStdout(), "[i] No items found.")
				return nil
			}
			fmt.Fprintf(c.OutOrStdout(), "[✔] %d items saved to %s\n", res.Rows, res.OutputPath)
			fmt.Fprintf(c.OutOrStdout(), "digest %016x\n", res.Digest)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Saved scan output file")
	cmd.Flags().StringVar(&output, "output", "", "CSV file to write")
	cmd.Flags().StringVar(&policyName, "wrapper-policy", "strict", "Type wrapper policy: strict or first")
	for _, name := range []string{"input", "output"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	return cmd
}
