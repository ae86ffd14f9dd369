// Package hg provides typed adapters for common Mercurial subcommands,
// driven over a command-server session.
//
// Every adapter builds an argument vector (subcommand first, flags next,
// positionals last behind a "--" separator), runs it through the session,
// and interprets the captured bytes. Exit codes convert per command rules:
// most verbs treat nonzero as a *session.CommandError; verbs with a
// meaningful "ran but did nothing" outcome (add, pull, push, merge, ...)
// return false for exit 1 and error only beyond that.
//
// Adapters hold no state of their own; all caching and serialization live
// in the session.
package hg

import (
	"bytes"
	"context"

	"github.com/justapithecus/cinnabar/ipc"
	"github.com/justapithecus/cinnabar/session"
)

// Runner is the slice of the session surface the adapters consume.
// *session.Session implements it.
type Runner interface {
	RunCommand(ctx context.Context, args []string, sinks session.Sinks, providers session.Providers) (int, error)
	GetCommandOutput(ctx context.Context, args []string, providers session.Providers) (*session.CommandResult, error)
}

// Client exposes the subcommand adapters over one session.
type Client struct {
	r Runner
}

// New creates a Client driving the given session.
func New(r Runner) *Client {
	return &Client{r: r}
}

// run executes args and requires exit 0; any other exit code becomes a
// *session.CommandError described by msg.
func (c *Client) run(ctx context.Context, msg string, args []string) (*session.CommandResult, error) {
	res, err := c.r.GetCommandOutput(ctx, args, nil)
	if err != nil {
		return nil, err
	}
	if err := session.CheckExit(res, 0, msg); err != nil {
		return nil, err
	}
	return res, nil
}

// runBool executes args under the 0/1 exit policy: 0 reports true, 1
// reports false ("ran, nothing to do" or "ran, conflicts"), anything else
// is a *session.CommandError.
func (c *Client) runBool(ctx context.Context, msg string, args []string) (bool, error) {
	res, err := c.r.GetCommandOutput(ctx, args, nil)
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	}
	return false, &session.CommandError{Msg: msg, Result: res}
}

// runRaw executes args and returns the raw output bytes without text
// decoding. Used by verbs whose output is file content, not text (cat,
// diff).
func (c *Client) runRaw(ctx context.Context, msg string, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	sinks := session.Sinks{
		ipc.ChannelOutput: &stdout,
		ipc.ChannelError:  &stderr,
	}
	code, err := c.r.RunCommand(ctx, args, sinks, nil)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, &session.CommandError{
			Msg:    msg,
			Result: &session.CommandResult{Stderr: stderr.String(), ExitCode: code},
		}
	}
	return stdout.Bytes(), nil
}
