package hg

import (
	"context"
	"fmt"
	"strings"
)

// StatusOpts filters which file states are reported.
type StatusOpts struct {
	// All reports every state including clean and ignored files.
	All      bool
	Modified bool
	Added    bool
	Removed  bool
	// Deleted reports files missing from disk but still tracked.
	Deleted bool
	Clean   bool
	Unknown bool
	Ignored bool
	// Copies traces copy and rename origins; origins attach to the
	// destination entries.
	Copies bool
	// Revs compares two revisions instead of the working copy.
	Revs []string
	// Change reports the files changed by one revision.
	Change string
	// Files restricts the report to the named paths.
	Files []string
}

// Status reports file states, one entry per path.
func (c *Client) Status(ctx context.Context, opts *StatusOpts) ([]FileStatus, error) {
	if opts == nil {
		opts = &StatusOpts{}
	}
	args := newArgs("status").
		flag(opts.All, "--all").
		flag(opts.Modified, "--modified").
		flag(opts.Added, "--added").
		flag(opts.Removed, "--removed").
		flag(opts.Deleted, "--deleted").
		flag(opts.Clean, "--clean").
		flag(opts.Unknown, "--unknown").
		flag(opts.Ignored, "--ignored").
		flag(opts.Copies, "--copies").
		repeat("--rev", opts.Revs).
		pair("--change", opts.Change).
		positional(opts.Files...).
		build()
	res, err := c.run(ctx, "status failed", args)
	if err != nil {
		return nil, err
	}
	return parseStatusLines(res.Stdout)
}

// knownStatusKinds is the letter set status can emit.
const knownStatusKinds = "MARC!?I"

// parseStatusLines parses "X path" lines. A line opening with a space is
// a copy origin belonging to the entry above it.
func parseStatusLines(out string) ([]FileStatus, error) {
	var statuses []FileStatus
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if len(line) < 3 || line[1] != ' ' {
			return nil, fmt.Errorf("malformed status line %q", line)
		}
		kind, path := line[0], line[2:]
		if kind == ' ' {
			if len(statuses) == 0 {
				return nil, fmt.Errorf("copy origin %q with no preceding entry", path)
			}
			statuses[len(statuses)-1].Origin = path
			continue
		}
		if !strings.ContainsRune(knownStatusKinds, rune(kind)) {
			return nil, fmt.Errorf("unknown status kind %q in line %q", kind, line)
		}
		statuses = append(statuses, FileStatus{Kind: StatusKind(kind), Path: path})
	}
	return statuses, nil
}
