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
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/ddbexport/internal/helpers"
	"github.com/cardinalhq/ddbexport/internal/timefilter"
)

func GetFilterCmd() *cobra.Command {
	var start, end, productID string

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show the scan filter built from a time range and product id",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			filter, err := timefilter.FromOptional(start, end, productID)
			if err != nil {
				return err
			}
			printFilter(c.OutOrStdout(), filter)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "fecha-inicio", "", "Start of the time range, DD-MM-YYYY-HH:MM:SS local time")
	cmd.Flags().StringVar(&end, "fecha-fin", "", "End of the time range, DD-MM-YYYY-HH:MM:SS local time")
	cmd.Flags().StringVar(&productID, "product-id", "", "Partition key value to match")

	return cmd
}

func printFilter(w io.Writer, f *timefilter.ScanFilter) {
	if f == nil {
		fmt.Fprintln(w, "No filter: the whole table is scanned.")
		return
	}
	fmt.Fprintf(w, "Filter expression:  %s\n", f.Expression())
	fmt.Fprintf(w, "Attribute values:   %s\n", f.AttributeValuesJSON())
	fmt.Fprintf(w, "Start (local):      %s\n", helpers.UnixMillisToLocal(f.StartMillis).Format(time.RFC3339))
	fmt.Fprintf(w, "End (local):        %s\n", helpers.UnixMillisToLocal(f.EndMillis).Format(time.RFC3339))
	if f.StartMillis > f.EndMillis {
		fmt.Fprintln(w, "Warning: start is after end, the scan will match nothing.")
	}
}
