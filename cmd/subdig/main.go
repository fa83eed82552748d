// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"os"
)

// errInterrupted signals that a run has been interrupted, after writing the
// partial results.
var errInterrupted = errors.New("interrupted")

func main() {
	// This is cobra boilerplate documentation, except for the missing call to
	// fmt.Println(err) which in the original boilerplate is just plain wrong:
	// it renders the error message twice, see also:
	// https://github.com/spf13/cobra/issues/304
	if err := newRootCmd().Execute(); err != nil {
		osExit(exitCode(err))
	}
}

// exitCode returns the process exit code for the specified error: 130 for
// interrupted runs, as is customary for SIGINT, and 1 for everything else.
func exitCode(err error) int {
	if errors.Is(err, errInterrupted) {
		return 130
	}
	return 1
}

// For CLI unit tests...
var osExit = os.Exit
