package hg

import (
	"strconv"
	"time"
)

// dateLayout is the timestamp form Mercurial accepts for --date and -d.
const dateLayout = "2006-01-02 15:04:05"

// argBuilder assembles an argument vector with stable ordering: the
// subcommand first, flags in call order, positionals last behind a "--"
// separator so file names starting with a dash are never read as flags.
type argBuilder struct {
	sub   string
	flags []string
	pos   []string
}

func newArgs(subcommand string) *argBuilder {
	return &argBuilder{sub: subcommand}
}

// flag appends a boolean switch when cond is true.
func (b *argBuilder) flag(cond bool, name string) *argBuilder {
	if cond {
		b.flags = append(b.flags, name)
	}
	return b
}

// pair appends a key/value flag as two tokens, skipped entirely when the
// value is empty.
func (b *argBuilder) pair(name, value string) *argBuilder {
	if value != "" {
		b.flags = append(b.flags, name, value)
	}
	return b
}

// pairInt appends a key/value flag for a positive integer value.
func (b *argBuilder) pairInt(name string, value int) *argBuilder {
	if value > 0 {
		b.flags = append(b.flags, name, strconv.Itoa(value))
	}
	return b
}

// date appends a timestamp flag, skipped when t is the zero time.
func (b *argBuilder) date(name string, t time.Time) *argBuilder {
	if !t.IsZero() {
		b.flags = append(b.flags, name, t.Format(dateLayout))
	}
	return b
}

// repeat appends one key/value flag per value.
func (b *argBuilder) repeat(name string, values []string) *argBuilder {
	for _, v := range values {
		b.flags = append(b.flags, name, v)
	}
	return b
}

// positional appends trailing arguments.
func (b *argBuilder) positional(args ...string) *argBuilder {
	b.pos = append(b.pos, args...)
	return b
}

// build produces the final argument vector.
func (b *argBuilder) build() []string {
	args := make([]string, 0, 1+len(b.flags)+1+len(b.pos))
	args = append(args, b.sub)
	args = append(args, b.flags...)
	if len(b.pos) > 0 {
		args = append(args, "--")
		args = append(args, b.pos...)
	}
	return args
}
