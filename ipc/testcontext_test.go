package ipc

import (
	"context"
	"testing"
)

// testContext returns a context that is canceled when the test ends. It
// stands in for testing.T.Context, which needs a newer toolchain than the
// go directive targets.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
