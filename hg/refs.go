package hg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/justapithecus/cinnabar/session"
)

// Branch returns the working copy's branch name.
func (c *Client) Branch(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "branch failed", []string{"branch"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// SetBranch marks the working copy as belonging to the named branch. The
// branch comes into existence at the next commit. Force reuses a branch
// name that already exists.
func (c *Client) SetBranch(ctx context.Context, name string, force bool) error {
	args := newArgs("branch").
		flag(force, "--force").
		positional(name).
		build()
	_, err := c.run(ctx, "branch failed", args)
	return err
}

// Branches lists the repository's named branches and their heads.
func (c *Client) Branches(ctx context.Context) ([]BranchHead, error) {
	res, err := c.run(ctx, "branches failed", []string{"branches"})
	if err != nil {
		return nil, err
	}

	var heads []BranchHead
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		// Closed and inactive heads carry a trailing marker.
		line = strings.TrimSuffix(line, " (inactive)")
		line = strings.TrimSuffix(line, " (closed)")
		name, rev, node, err := splitNameRevNode(line)
		if err != nil {
			return nil, fmt.Errorf("branches: %w", err)
		}
		heads = append(heads, BranchHead{Name: name, Rev: rev, Node: node})
	}
	return heads, nil
}

// BookmarkOpts adjusts bookmark manipulation.
type BookmarkOpts struct {
	// Rev places the bookmark on the given revision instead of the
	// working copy's parent.
	Rev string
	// Force moves a bookmark that already exists.
	Force bool
	// Delete removes the bookmark.
	Delete bool
	// Inactive creates the bookmark without making it active.
	Inactive bool
}

// Bookmark creates, moves, or deletes the named bookmark.
func (c *Client) Bookmark(ctx context.Context, name string, opts *BookmarkOpts) error {
	if opts == nil {
		opts = &BookmarkOpts{}
	}
	args := newArgs("bookmark").
		pair("--rev", opts.Rev).
		flag(opts.Force, "--force").
		flag(opts.Delete, "--delete").
		flag(opts.Inactive, "--inactive").
		positional(name).
		build()
	_, err := c.run(ctx, "bookmark failed", args)
	return err
}

// Bookmarks lists the repository's bookmarks. At most one is active.
func (c *Client) Bookmarks(ctx context.Context) ([]Bookmark, error) {
	res, err := c.run(ctx, "bookmarks failed", []string{"bookmarks"})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Stdout) == "no bookmarks set" {
		return nil, nil
	}

	var marks []Bookmark
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		// The first column is a 3-character gutter: " * " marks the
		// active bookmark.
		if len(line) < 4 {
			return nil, fmt.Errorf("bookmarks: malformed line %q", line)
		}
		active := strings.HasPrefix(line, " * ")
		name, rev, node, err := splitNameRevNode(line[3:])
		if err != nil {
			return nil, fmt.Errorf("bookmarks: %w", err)
		}
		marks = append(marks, Bookmark{Name: name, Rev: rev, Node: node, Active: active})
	}
	return marks, nil
}

// TagOpts adjusts tag creation and removal.
type TagOpts struct {
	// Rev tags the given revision instead of the working copy's parent.
	Rev string
	// Message overrides the tag commit message.
	Message string
	// Local makes the tag repository-private instead of versioned.
	Local bool
	// Remove deletes the named tags.
	Remove bool
	// Force replaces existing tags.
	Force bool
}

// Tag names one or more tags for the selected revision.
func (c *Client) Tag(ctx context.Context, names []string, opts *TagOpts) error {
	if len(names) == 0 {
		return &session.ArgumentError{Msg: "tag requires at least one name"}
	}
	if opts == nil {
		opts = &TagOpts{}
	}
	args := newArgs("tag").
		pair("--rev", opts.Rev).
		pair("--message", opts.Message).
		flag(opts.Local, "--local").
		flag(opts.Remove, "--remove").
		flag(opts.Force, "--force").
		positional(names...).
		build()
	_, err := c.run(ctx, "tag failed", args)
	return err
}

// Tags lists the repository's tags, tip included.
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	res, err := c.run(ctx, "tags failed", []string{"tags"})
	if err != nil {
		return nil, err
	}

	var tags []Tag
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		local := strings.HasSuffix(line, " local")
		line = strings.TrimSuffix(line, " local")
		name, rev, node, err := splitNameRevNode(line)
		if err != nil {
			return nil, fmt.Errorf("tags: %w", err)
		}
		tags = append(tags, Tag{Name: name, Rev: rev, Node: node, Local: local})
	}
	return tags, nil
}

// Paths returns the configured path aliases as a name to URL map.
func (c *Client) Paths(ctx context.Context) (map[string]string, error) {
	res, err := c.run(ctx, "paths failed", []string{"paths"})
	if err != nil {
		return nil, err
	}

	paths := make(map[string]string)
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		name, url, ok := strings.Cut(line, " = ")
		if !ok {
			return nil, fmt.Errorf("paths: malformed line %q", line)
		}
		paths[name] = url
	}
	return paths, nil
}

// PhaseOpts selects a phase to set. With none set, Phase reports the
// current phases instead.
type PhaseOpts struct {
	Public bool
	Draft  bool
	Secret bool
	// Force allows moving to an earlier phase.
	Force bool
}

// Phase reports or sets the phase of the given revisions. When opts
// requests a phase change, the returned slice is empty.
func (c *Client) Phase(ctx context.Context, revs []string, opts *PhaseOpts) ([]PhaseStatus, error) {
	if opts == nil {
		opts = &PhaseOpts{}
	}
	args := newArgs("phase").
		flag(opts.Public, "--public").
		flag(opts.Draft, "--draft").
		flag(opts.Secret, "--secret").
		flag(opts.Force, "--force").
		positional(revs...).
		build()
	res, err := c.run(ctx, "phase failed", args)
	if err != nil {
		return nil, err
	}
	if opts.Public || opts.Draft || opts.Secret {
		return nil, nil
	}

	var phases []PhaseStatus
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" {
			continue
		}
		revStr, phase, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("phase: malformed line %q", line)
		}
		rev, err := strconv.Atoi(revStr)
		if err != nil {
			return nil, fmt.Errorf("phase: malformed revision in line %q", line)
		}
		phases = append(phases, PhaseStatus{Rev: rev, Phase: phase})
	}
	return phases, nil
}
