// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"io"

	"go.uber.org/multierr"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// AppendClose closes c and merges a failure into *errp.
// Use in teardown paths that close several resources and must report
// every failure rather than the first:
//
//	iox.AppendClose(&err, stdout)
//	iox.AppendClose(&err, stdin)
func AppendClose(errp *error, c io.Closer) {
	*errp = multierr.Append(*errp, c.Close())
}
