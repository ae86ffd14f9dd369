package hg

import (
	"context"
	"strings"
)

// Init creates a new repository at dest.
func (c *Client) Init(ctx context.Context, dest string) error {
	args := newArgs("init").positional(dest).build()
	_, err := c.run(ctx, "init failed", args)
	return err
}

// CloneOpts adjusts how a repository is cloned.
type CloneOpts struct {
	// NoUpdate clones without checking out a working copy.
	NoUpdate bool
	// UpdateRev checks out the given revision instead of tip.
	UpdateRev string
	// Pull uses pull protocol to copy metadata even for local sources.
	Pull bool
	// Uncompressed transfers without compression.
	Uncompressed bool
	// Insecure skips server certificate verification.
	Insecure bool
}

// Clone copies the repository at source to dest. A nil opts clones with
// defaults.
func (c *Client) Clone(ctx context.Context, source, dest string, opts *CloneOpts) error {
	if opts == nil {
		opts = &CloneOpts{}
	}
	args := newArgs("clone").
		flag(opts.NoUpdate, "--noupdate").
		pair("--updaterev", opts.UpdateRev).
		flag(opts.Pull, "--pull").
		flag(opts.Uncompressed, "--uncompressed").
		flag(opts.Insecure, "--insecure").
		positional(source, dest).
		build()
	_, err := c.run(ctx, "clone failed", args)
	return err
}

// Root returns the working copy's repository root.
func (c *Client) Root(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "failed to resolve repository root", []string{"root"})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(res.Stdout, "\n"), nil
}

// IdentifyOpts selects which facts identify reports.
type IdentifyOpts struct {
	// Rev identifies the given revision instead of the working copy.
	Rev       string
	Num       bool
	ID        bool
	Branch    bool
	Tags      bool
	Bookmarks bool
}

// Identify returns the identify summary line, trimmed.
func (c *Client) Identify(ctx context.Context, opts *IdentifyOpts) (string, error) {
	if opts == nil {
		opts = &IdentifyOpts{}
	}
	args := newArgs("identify").
		pair("--rev", opts.Rev).
		flag(opts.Num, "--num").
		flag(opts.ID, "--id").
		flag(opts.Branch, "--branch").
		flag(opts.Tags, "--tags").
		flag(opts.Bookmarks, "--bookmarks").
		build()
	res, err := c.run(ctx, "identify failed", args)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
