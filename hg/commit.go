package hg

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/justapithecus/cinnabar/session"
)

// CommitOpts adjusts commit behavior. Message is a separate parameter
// because nearly every commit carries one.
type CommitOpts struct {
	// AddRemove runs an addremove pass before committing.
	AddRemove bool
	// CloseBranch marks the branch head closed.
	CloseBranch bool
	// Amend folds the changes into the working copy's parent.
	Amend bool
	// User records the given author instead of the configured one.
	User string
	// Date records the given timestamp instead of now.
	Date time.Time
	// Logfile reads the commit message from a file; mutually exclusive
	// with a non-empty message.
	Logfile string
	// Files restricts the commit to the named files.
	Files []string
}

// committedRe matches the changeset announcement in --debug output.
var committedRe = regexp.MustCompile(`(?m)^committed changeset (\d+):([0-9a-f]+)`)

// Commit records the working copy changes and returns the new changeset.
// The commit runs with --debug so the server announces the revision and
// full node of what it committed.
func (c *Client) Commit(ctx context.Context, message string, opts *CommitOpts) (Changeset, error) {
	if opts == nil {
		opts = &CommitOpts{}
	}
	if message == "" && opts.Logfile == "" && !opts.Amend {
		return Changeset{}, &session.ArgumentError{Msg: "commit requires a message or logfile"}
	}
	if message != "" && opts.Logfile != "" {
		return Changeset{}, &session.ArgumentError{Msg: "commit message and logfile are mutually exclusive"}
	}

	args := newArgs("commit").
		flag(true, "--debug").
		pair("--message", message).
		pair("--logfile", opts.Logfile).
		flag(opts.AddRemove, "--addremove").
		flag(opts.CloseBranch, "--close-branch").
		flag(opts.Amend, "--amend").
		pair("--user", opts.User).
		date("--date", opts.Date).
		positional(opts.Files...).
		build()

	res, err := c.run(ctx, "commit failed", args)
	if err != nil {
		return Changeset{}, err
	}

	// --debug output goes to stdout; the announcement is one line of it.
	m := committedRe.FindStringSubmatch(res.Stdout)
	if m == nil {
		return Changeset{}, fmt.Errorf("no changeset in commit output %q", res.Stdout)
	}
	rev, err := strconv.Atoi(m[1])
	if err != nil {
		return Changeset{}, fmt.Errorf("bad revision in commit output %q: %v", m[1], err)
	}
	return Changeset{Rev: rev, Node: m[2]}, nil
}
