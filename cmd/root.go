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
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/ddbexport/internal/exporterr"
)

const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitUnavailable = 3
	ExitScanAborted = 4
	ExitOutput      = 5
	ExitCanceled    = 130
)

// commandStarted is set when a command body begins to run. Errors cobra
// returns before that point (flags, args, required flags) are usage errors.
var (
	commandStarted bool
	trackOnce      sync.Once
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ddbexport",
	Short: "Export a DynamoDB table to CSV",
	Long: `Scan a DynamoDB table with a segment-parallel scan, flatten every item and
write the rows to a CSV file as they arrive. An optional time range and
product id narrow the scan.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.AddCommand(debugCmd)
}

// usageError marks a bad invocation that cobra itself did not catch.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error, started bool) int {
	var ue *usageError
	switch {
	case err == nil:
		return ExitOK
	case !started, errors.As(err, &ue),
		errors.Is(err, exporterr.ErrPartialFilter),
		errors.Is(err, exporterr.ErrMalformedTimestamp):
		return ExitUsage
	case errors.Is(err, exporterr.ErrCanceled):
		return ExitCanceled
	case errors.Is(err, exporterr.ErrProviderUnavailable):
		return ExitUnavailable
	case errors.Is(err, exporterr.ErrScanAborted):
		return ExitScanAborted
	case errors.Is(err, exporterr.ErrOutput):
		return ExitOutput
	default:
		return ExitFailure
	}
}

func printFailure(w io.Writer, err error) {
	fmt.Fprintf(w, "[✘] Error: %s\n", err.Error())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// trackStart wraps the body of every command in the tree so that
// commandStarted is set only after cobra has finished validation.
func trackStart(c *cobra.Command) {
	switch {
	case c.RunE != nil:
		runE := c.RunE
		c.RunE = func(cmd *cobra.Command, args []string) error {
			commandStarted = true
			return runE(cmd, args)
		}
	case c.Run != nil:
		runFn := c.Run
		c.Run = func(cmd *cobra.Command, args []string) {
			commandStarted = true
			runFn(cmd, args)
		}
	}
	for _, sub := range c.Commands() {
		trackStart(sub)
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	trackOnce.Do(func() { trackStart(rootCmd) })
	commandStarted = false
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	c, err := rootCmd.ExecuteC()
	if err == nil {
		return ExitOK
	}
	printFailure(stdout, err)
	code := exitCode(err, commandStarted)
	if code == ExitUsage && c != nil {
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", c.CommandPath())
	}
	return code
}
