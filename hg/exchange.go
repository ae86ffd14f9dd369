package hg

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/justapithecus/cinnabar/session"
)

// PullOpts adjusts pull behavior.
type PullOpts struct {
	// Update also updates the working copy to the new tip.
	Update bool
	// Force pulls from an unrelated repository.
	Force bool
	// Revs restricts the pull to the given remote revisions.
	Revs []string
	// Bookmarks pulls the named bookmarks.
	Bookmarks []string
	// Branches restricts the pull to the named branches.
	Branches []string
	// Insecure skips server certificate verification.
	Insecure bool
}

// Pull fetches changes from source, or from the default path when source
// is empty. Reports false when an update left unresolved files behind.
func (c *Client) Pull(ctx context.Context, source string, opts *PullOpts) (bool, error) {
	if opts == nil {
		opts = &PullOpts{}
	}
	b := newArgs("pull").
		flag(opts.Update, "--update").
		flag(opts.Force, "--force").
		repeat("--rev", opts.Revs).
		repeat("--bookmark", opts.Bookmarks).
		repeat("--branch", opts.Branches).
		flag(opts.Insecure, "--insecure")
	if source != "" {
		b.positional(source)
	}
	return c.runBool(ctx, "pull failed", b.build())
}

// PushOpts adjusts push behavior.
type PushOpts struct {
	// Revs restricts the push to the given revisions and ancestors.
	Revs []string
	// Force pushes despite new remote heads.
	Force bool
	// Bookmarks pushes the named bookmarks.
	Bookmarks []string
	// Branches restricts the push to the named branches.
	Branches []string
	// NewBranch allows creating branches on the remote.
	NewBranch bool
	// Insecure skips server certificate verification.
	Insecure bool
}

// Push sends changes to dest, or to the default path when dest is empty.
// Reports false when there was nothing to push.
func (c *Client) Push(ctx context.Context, dest string, opts *PushOpts) (bool, error) {
	if opts == nil {
		opts = &PushOpts{}
	}
	b := newArgs("push").
		repeat("--rev", opts.Revs).
		flag(opts.Force, "--force").
		repeat("--bookmark", opts.Bookmarks).
		repeat("--branch", opts.Branches).
		flag(opts.NewBranch, "--new-branch").
		flag(opts.Insecure, "--insecure")
	if dest != "" {
		b.positional(dest)
	}
	return c.runBool(ctx, "push failed", b.build())
}

// MergeOpts adjusts merge behavior.
type MergeOpts struct {
	// Rev merges the given revision instead of the other head.
	Rev string
	// Force merges with outstanding working copy changes.
	Force bool
	// Tool names the merge program to resolve conflicts with.
	Tool string
}

// Merge merges another head into the working copy. Reports false when
// the merge ran but left unresolved files.
func (c *Client) Merge(ctx context.Context, opts *MergeOpts) (bool, error) {
	if opts == nil {
		opts = &MergeOpts{}
	}
	args := newArgs("merge").
		pair("--rev", opts.Rev).
		flag(opts.Force, "--force").
		pair("--tool", opts.Tool).
		build()
	return c.runBool(ctx, "merge failed", args)
}

// UpdateOpts adjusts working copy updates.
type UpdateOpts struct {
	// Rev updates to the given revision instead of the branch tip.
	Rev string
	// Clean discards uncommitted changes.
	Clean bool
	// Check refuses to update with uncommitted changes.
	Check bool
}

// updateCountsRe matches the summary line update prints.
var updateCountsRe = regexp.MustCompile(`(?m)^(\d+) files updated, (\d+) files merged, (\d+) files removed, (\d+) files unresolved$`)

// Update checks out a revision and returns the reported file counts.
// Exit 1 (unresolved files remain) is not an error; the counts carry the
// unresolved total.
func (c *Client) Update(ctx context.Context, opts *UpdateOpts) (UpdateResult, error) {
	if opts == nil {
		opts = &UpdateOpts{}
	}
	args := newArgs("update").
		pair("--rev", opts.Rev).
		flag(opts.Clean, "--clean").
		flag(opts.Check, "--check").
		build()

	res, err := c.r.GetCommandOutput(ctx, args, nil)
	if err != nil {
		return UpdateResult{}, err
	}
	if res.ExitCode != 0 && res.ExitCode != 1 {
		return UpdateResult{}, &session.CommandError{Msg: "update failed", Result: res}
	}

	m := updateCountsRe.FindStringSubmatch(res.Stdout)
	if m == nil {
		return UpdateResult{}, fmt.Errorf("no file counts in update output %q", res.Stdout)
	}
	counts := make([]int, 4)
	for i := range counts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return UpdateResult{}, fmt.Errorf("bad count in update output %q: %v", m[i+1], err)
		}
		counts[i] = n
	}
	return UpdateResult{
		Updated:    counts[0],
		Merged:     counts[1],
		Removed:    counts[2],
		Unresolved: counts[3],
	}, nil
}
