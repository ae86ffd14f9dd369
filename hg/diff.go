package hg

import "context"

// DiffOpts adjusts diff generation.
type DiffOpts struct {
	// Revs selects the revisions to compare; empty diffs the working
	// copy against its parent.
	Revs []string
	// Change shows the changes made by one revision.
	Change string
	// Files restricts the diff to the named paths.
	Files []string
	// Text treats all files as text.
	Text bool
	// Git emits git-style extended diffs.
	Git bool
	// ShowFunction shows the enclosing function in hunk headers.
	ShowFunction bool
	// Reverse swaps the comparison direction.
	Reverse bool
	// IgnoreAllSpace ignores whitespace when comparing lines.
	IgnoreAllSpace bool
	// IgnoreSpaceChange ignores changes in the amount of whitespace.
	IgnoreSpaceChange bool
	// IgnoreBlankLines ignores changes whose lines are all blank.
	IgnoreBlankLines bool
	// Unified sets the number of context lines.
	Unified int
	// Stat emits a diffstat summary instead of the patch.
	Stat bool
}

// Diff returns the patch bytes. The output is raw: patches routinely
// carry bytes in whatever encoding the files use, so no text decoding is
// applied.
func (c *Client) Diff(ctx context.Context, opts *DiffOpts) ([]byte, error) {
	if opts == nil {
		opts = &DiffOpts{}
	}
	args := newArgs("diff").
		repeat("--rev", opts.Revs).
		pair("--change", opts.Change).
		flag(opts.Text, "--text").
		flag(opts.Git, "--git").
		flag(opts.ShowFunction, "--show-function").
		flag(opts.Reverse, "--reverse").
		flag(opts.IgnoreAllSpace, "--ignore-all-space").
		flag(opts.IgnoreSpaceChange, "--ignore-space-change").
		flag(opts.IgnoreBlankLines, "--ignore-blank-lines").
		pairInt("--unified", opts.Unified).
		flag(opts.Stat, "--stat").
		positional(opts.Files...).
		build()
	return c.runRaw(ctx, "diff failed", args)
}

// CatOpts selects which revision of the files to print.
type CatOpts struct {
	// Rev prints the files as of the given revision instead of the
	// working copy's parent.
	Rev string
}

// Cat returns the checked-in content of the named files, concatenated,
// as raw bytes.
func (c *Client) Cat(ctx context.Context, files []string, opts *CatOpts) ([]byte, error) {
	if opts == nil {
		opts = &CatOpts{}
	}
	args := newArgs("cat").
		pair("--rev", opts.Rev).
		positional(files...).
		build()
	return c.runRaw(ctx, "cat failed", args)
}
