package hg

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Changeset identifies one committed revision.
type Changeset struct {
	Rev  int
	Node string
}

func (c Changeset) String() string {
	return fmt.Sprintf("%d:%s", c.Rev, c.Node)
}

// Revision is one log entry as reported by --style xml.
type Revision struct {
	Rev     int
	Node    string
	Tags    []string
	Branch  string
	Author  string
	Email   string
	Date    time.Time
	Message string
}

// StatusKind is the single-letter state hg reports for a file.
type StatusKind byte

const (
	StatusModified  StatusKind = 'M'
	StatusAdded     StatusKind = 'A'
	StatusRemoved   StatusKind = 'R'
	StatusClean     StatusKind = 'C'
	StatusMissing   StatusKind = '!'
	StatusUntracked StatusKind = '?'
	StatusIgnored   StatusKind = 'I'
)

func (k StatusKind) String() string {
	switch k {
	case StatusModified:
		return "modified"
	case StatusAdded:
		return "added"
	case StatusRemoved:
		return "removed"
	case StatusClean:
		return "clean"
	case StatusMissing:
		return "missing"
	case StatusUntracked:
		return "untracked"
	case StatusIgnored:
		return "ignored"
	}
	return fmt.Sprintf("invalid(%q)", byte(k))
}

// FileStatus is one line of status output. Origin is set only for copied
// or renamed files when status ran with copy tracing.
type FileStatus struct {
	Kind   StatusKind
	Path   string
	Origin string
}

// BranchHead is one line of `hg branches` output.
type BranchHead struct {
	Name string
	Rev  int
	Node string
}

// Bookmark is one line of `hg bookmarks` output.
type Bookmark struct {
	Name   string
	Rev    int
	Node   string
	Active bool
}

// Tag is one line of `hg tags` output.
type Tag struct {
	Name  string
	Rev   int
	Node  string
	Local bool
}

// PhaseStatus is one line of `hg phase` output.
type PhaseStatus struct {
	Rev   int
	Phase string
}

// UpdateResult carries the file counts `hg update` reports.
type UpdateResult struct {
	Updated    int
	Merged     int
	Removed    int
	Unresolved int
}

// splitNameRevNode parses a "name  rev:node" listing line. The name may
// contain spaces, so the split anchors on the final field.
func splitNameRevNode(line string) (string, int, string, error) {
	i := strings.LastIndexByte(line, ' ')
	if i < 0 {
		return "", 0, "", fmt.Errorf("malformed listing line %q", line)
	}
	name := strings.TrimSpace(line[:i])
	revStr, node, ok := strings.Cut(line[i+1:], ":")
	if !ok {
		return "", 0, "", fmt.Errorf("malformed listing line %q", line)
	}
	rev, err := strconv.Atoi(revStr)
	if err != nil {
		return "", 0, "", fmt.Errorf("malformed listing line %q: %v", line, err)
	}
	return name, rev, node, nil
}
