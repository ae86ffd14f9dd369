package hg

import (
	"context"
	"fmt"

	"github.com/justapithecus/cinnabar/session"
)

// LogOpts filters log output.
type LogOpts struct {
	// Revs restricts the log to the given revisions or revsets.
	Revs []string
	// Files restricts the log to changesets touching the named files.
	Files []string
	// Follow traces history across copies and renames.
	Follow bool
	// Limit caps the number of entries returned.
	Limit int
	// Keyword matches case-insensitively against commit text.
	Keyword string
	// User restricts entries to the given author.
	User string
	// Branch restricts entries to the named branch.
	Branch string
	// Date is an hg date spec such as "2024-01-01 to 2024-02-01".
	Date string
	// NoMerges drops merge changesets.
	NoMerges bool
}

// Log returns history entries, newest first.
func (c *Client) Log(ctx context.Context, opts *LogOpts) ([]Revision, error) {
	if opts == nil {
		opts = &LogOpts{}
	}
	args := newArgs("log").
		pair("--style", "xml").
		repeat("--rev", opts.Revs).
		flag(opts.Follow, "--follow").
		pairInt("--limit", opts.Limit).
		pair("--keyword", opts.Keyword).
		pair("--user", opts.User).
		pair("--branch", opts.Branch).
		pair("--date", opts.Date).
		flag(opts.NoMerges, "--no-merges").
		positional(opts.Files...).
		build()
	res, err := c.run(ctx, "log failed", args)
	if err != nil {
		return nil, err
	}
	return parseLogXML([]byte(res.Stdout))
}

// Tip returns the repository's tip revision.
func (c *Client) Tip(ctx context.Context) (Revision, error) {
	args := newArgs("tip").pair("--style", "xml").build()
	res, err := c.run(ctx, "tip failed", args)
	if err != nil {
		return Revision{}, err
	}
	revs, err := parseLogXML([]byte(res.Stdout))
	if err != nil {
		return Revision{}, err
	}
	if len(revs) != 1 {
		return Revision{}, fmt.Errorf("tip reported %d entries, want 1", len(revs))
	}
	return revs[0], nil
}

// Heads returns the open branch heads, or the heads reachable from the
// given revisions when any are named.
func (c *Client) Heads(ctx context.Context, revs ...string) ([]Revision, error) {
	args := newArgs("heads").pair("--style", "xml").positional(revs...).build()

	// heads exits 1 when the repository has none; that is an empty
	// result, not a failure.
	res, err := c.r.GetCommandOutput(ctx, args, nil)
	if err != nil {
		return nil, err
	}
	if res.ExitCode == 1 {
		return nil, nil
	}
	if res.ExitCode != 0 {
		return nil, &session.CommandError{Msg: "heads failed", Result: res}
	}
	return parseLogXML([]byte(res.Stdout))
}

// ParentsOpts selects whose parents to report.
type ParentsOpts struct {
	// Rev reports the parents of the given revision instead of the
	// working copy.
	Rev string
	// File reports the last changeset touching the named file.
	File string
}

// Parents returns the working copy's parent revisions: one normally, two
// mid-merge, none in an empty repository.
func (c *Client) Parents(ctx context.Context, opts *ParentsOpts) ([]Revision, error) {
	if opts == nil {
		opts = &ParentsOpts{}
	}
	b := newArgs("parents").pair("--style", "xml").pair("--rev", opts.Rev)
	if opts.File != "" {
		b.positional(opts.File)
	}
	res, err := c.run(ctx, "parents failed", b.build())
	if err != nil {
		return nil, err
	}
	return parseLogXML([]byte(res.Stdout))
}
