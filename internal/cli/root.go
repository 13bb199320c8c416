// Package cli implements the qrsheet command-line interface.
//
// This package provides commands for generating QR code label sheets,
// merging existing page documents, previewing a page layout and managing
// the tile cache. The CLI is built using cobra and logs via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - generate: Render, pack, write and merge a range of identifiers
//   - merge: Concatenate existing page documents
//   - layout: Print the grid and page ranges for a geometry
//   - cache: Manage the local tile cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// reports per-page, cache and upload events.
//
// # Example
//
//	c := cli.New(os.Stderr, cli.LogInfo)
//	if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	    os.Exit(cli.ExitCode(err))
//	}
package cli

import (
	"context"
	stderrors "errors"

	"github.com/matzehuels/qrsheet/pkg/errors"
)

// Exit codes returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130 // shell convention for SIGINT
)

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case stderrors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, errors.ErrCodeConfig), errors.Is(err, errors.ErrCodeInvalidInput):
		return ExitUsage
	default:
		return ExitFailure
	}
}
