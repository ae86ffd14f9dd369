package session

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ConfigItem is one line of effective server configuration.
type ConfigItem struct {
	Section string
	Key     string
	Value   string
}

// Version is the server's version as reported by `version -q`.
type Version struct {
	Major int
	Minor int
	Patch int
	// Extra carries any suffix after the numeric components, such as
	// "rc1" or "+hg20.1a2b3c".
	Extra string
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Extra)
}

// Root returns the repository root path, fetched once via `root` and
// memoized for the session's lifetime.
func (s *Session) Root(ctx context.Context) (string, error) {
	s.lazyMu.Lock()
	defer s.lazyMu.Unlock()
	if s.haveRoot {
		return s.root, nil
	}

	res, err := s.GetCommandOutput(ctx, []string{"root"}, nil)
	if err != nil {
		return "", err
	}
	if err := CheckExit(res, 0, "failed to resolve repository root"); err != nil {
		return "", err
	}

	s.root = strings.TrimRight(res.Stdout, "\n")
	s.haveRoot = true
	return s.root, nil
}

// ConfigItems returns the server's effective configuration, fetched once
// via `showconfig` and memoized. The returned slice is a copy.
func (s *Session) ConfigItems(ctx context.Context) ([]ConfigItem, error) {
	s.lazyMu.Lock()
	defer s.lazyMu.Unlock()
	if s.configItems != nil {
		return append([]ConfigItem(nil), s.configItems...), nil
	}

	res, err := s.GetCommandOutput(ctx, []string{"showconfig"}, nil)
	if err != nil {
		return nil, err
	}
	if err := CheckExit(res, 0, "failed to read configuration"); err != nil {
		return nil, err
	}

	s.configItems = parseConfigItems(res.Stdout)
	return append([]ConfigItem(nil), s.configItems...), nil
}

// Version returns the server's version, fetched once via `version -q` and
// memoized.
func (s *Session) Version(ctx context.Context) (Version, error) {
	s.lazyMu.Lock()
	defer s.lazyMu.Unlock()
	if s.version != nil {
		return *s.version, nil
	}

	res, err := s.GetCommandOutput(ctx, []string{"version", "-q"}, nil)
	if err != nil {
		return Version{}, err
	}
	if err := CheckExit(res, 0, "failed to read version"); err != nil {
		return Version{}, err
	}

	v, err := parseVersion(res.Stdout)
	if err != nil {
		return Version{}, err
	}
	s.version = v
	return *v, nil
}

// parseConfigItems parses showconfig output: one section.key=value per
// line. The section split is on the first dot, the value split on the
// first equals sign; values keep any further equals signs.
func parseConfigItems(out string) []ConfigItem {
	items := []ConfigItem{}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		section, key, ok := strings.Cut(name, ".")
		if !ok {
			section, key = "", name
		}
		items = append(items, ConfigItem{Section: section, Key: key, Value: value})
	}
	return items
}

var versionRe = regexp.MustCompile(`\(version (\d+)(?:\.(\d+))?(?:\.(\d+))?([^)]*)\)`)

// parseVersion extracts the version from `version -q` output, e.g.
// "Mercurial Distributed SCM (version 6.5.3)".
func parseVersion(out string) (*Version, error) {
	m := versionRe.FindStringSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("unrecognized version output %q", strings.TrimSpace(out))
	}
	v := &Version{Extra: m[4]}
	v.Major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		v.Minor, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		v.Patch, _ = strconv.Atoi(m[3])
	}
	return v, nil
}
