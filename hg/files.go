package hg

import "context"

// Add schedules files for tracking. With no files, everything untracked
// is added. Reports false when some files could not be added.
func (c *Client) Add(ctx context.Context, files ...string) (bool, error) {
	args := newArgs("add").positional(files...).build()
	return c.runBool(ctx, "add failed", args)
}

// AddRemove adds new files and marks missing ones removed in a single
// pass. Reports false when some files could not be processed.
func (c *Client) AddRemove(ctx context.Context, files ...string) (bool, error) {
	args := newArgs("addremove").positional(files...).build()
	return c.runBool(ctx, "addremove failed", args)
}

// Forget stops tracking files without deleting them from disk.
func (c *Client) Forget(ctx context.Context, files ...string) (bool, error) {
	args := newArgs("forget").positional(files...).build()
	return c.runBool(ctx, "forget failed", args)
}

// Remove schedules files for removal from the repository and deletes
// them from disk. Reports false when some files could not be removed.
func (c *Client) Remove(ctx context.Context, files ...string) (bool, error) {
	args := newArgs("remove").positional(files...).build()
	return c.runBool(ctx, "remove failed", args)
}

// CopyOpts adjusts copy and rename behavior.
type CopyOpts struct {
	// After records a copy that already happened on disk.
	After bool
	// Force copies over an existing managed file.
	Force bool
}

// Copy marks dest as a copy of source.
func (c *Client) Copy(ctx context.Context, source, dest string, opts *CopyOpts) (bool, error) {
	if opts == nil {
		opts = &CopyOpts{}
	}
	args := newArgs("copy").
		flag(opts.After, "--after").
		flag(opts.Force, "--force").
		positional(source, dest).
		build()
	return c.runBool(ctx, "copy failed", args)
}

// Rename moves source to dest, preserving history.
func (c *Client) Rename(ctx context.Context, source, dest string, opts *CopyOpts) (bool, error) {
	if opts == nil {
		opts = &CopyOpts{}
	}
	args := newArgs("rename").
		flag(opts.After, "--after").
		flag(opts.Force, "--force").
		positional(source, dest).
		build()
	return c.runBool(ctx, "rename failed", args)
}

// RevertOpts adjusts revert behavior.
type RevertOpts struct {
	// Rev reverts to the given revision instead of the checked-out parent.
	Rev string
	// All reverts every changed file; required when no files are given.
	All bool
	// NoBackup skips the .orig backup copies.
	NoBackup bool
}

// Revert restores files to their checked-in state.
func (c *Client) Revert(ctx context.Context, files []string, opts *RevertOpts) (bool, error) {
	if opts == nil {
		opts = &RevertOpts{}
	}
	args := newArgs("revert").
		pair("--rev", opts.Rev).
		flag(opts.All, "--all").
		flag(opts.NoBackup, "--no-backup").
		positional(files...).
		build()
	return c.runBool(ctx, "revert failed", args)
}
