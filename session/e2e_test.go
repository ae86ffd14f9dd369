// E2E tests that drive a real Mercurial command server end to end
// through the session layer.
//
// Test gating:
//   - Live E2E tests require CINNABAR_E2E=1 and an hg binary on PATH.

package session

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/justapithecus/cinnabar/iox"
)

func requireE2E(t *testing.T) {
	t.Helper()
	if os.Getenv("CINNABAR_E2E") != "1" {
		t.Skip("CINNABAR_E2E=1 not set, skipping live E2E test")
	}
	if _, err := exec.LookPath("hg"); err != nil {
		t.Skip("hg not available, skipping E2E test")
	}
}

func openE2E(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Encoding == "" {
		opts.Encoding = "UTF-8"
	}
	s, err := Open(testContext(t), opts)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(iox.CloseFunc(s))
	return s
}

func samePath(t *testing.T, got, want string) {
	t.Helper()
	gotReal, err := filepath.EvalSymlinks(got)
	if err != nil {
		t.Fatalf("EvalSymlinks(%q) failed: %v", got, err)
	}
	wantReal, err := filepath.EvalSymlinks(want)
	if err != nil {
		t.Fatalf("EvalSymlinks(%q) failed: %v", want, err)
	}
	if gotReal != wantReal {
		t.Errorf("path = %q, want %q", gotReal, wantReal)
	}
}

// TestE2E_InitAndRoot creates a repository through a repo-less session,
// then opens a second session inside it and resolves the root.
func TestE2E_InitAndRoot(t *testing.T) {
	requireE2E(t)

	dir := t.TempDir()
	bootstrap := openE2E(t, Options{})
	code, err := bootstrap.RunCommand(testContext(t), []string{"init", dir}, nil, nil)
	if err != nil {
		t.Fatalf("init RunCommand() error: %v", err)
	}
	if code != 0 {
		t.Fatalf("init exit code = %d, want 0", code)
	}

	s := openE2E(t, Options{Repo: dir})
	if !s.HasCapability(CapRunCommand) {
		t.Fatalf("server capabilities %v missing runcommand", s.Capabilities())
	}
	root, err := s.Root(testContext(t))
	if err != nil {
		t.Fatalf("Root() error: %v", err)
	}
	samePath(t, root, dir)
	t.Logf("session %s: root %q, encoding %q", s.ID(), root, s.Encoding())
}

// TestE2E_AddStatus adds a file and reads it back from status.
func TestE2E_AddStatus(t *testing.T) {
	requireE2E(t)

	dir := t.TempDir()
	bootstrap := openE2E(t, Options{})
	if _, err := bootstrap.RunCommand(testContext(t), []string{"init", dir}, nil, nil); err != nil {
		t.Fatalf("init RunCommand() error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	s := openE2E(t, Options{Repo: dir})
	res, err := s.GetCommandOutput(testContext(t), []string{"add", "notes.txt"}, nil)
	if err != nil {
		t.Fatalf("add error: %v", err)
	}
	if err := CheckExit(res, 0, "add failed"); err != nil {
		t.Fatal(err)
	}

	res, err = s.GetCommandOutput(testContext(t), []string{"status"}, nil)
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if got, want := res.Stdout, "A notes.txt\n"; got != want {
		t.Errorf("status = %q, want %q", got, want)
	}
}

// TestE2E_ServerProperties exercises the memoized property getters against
// a live server.
func TestE2E_ServerProperties(t *testing.T) {
	requireE2E(t)

	dir := t.TempDir()
	bootstrap := openE2E(t, Options{})
	if _, err := bootstrap.RunCommand(testContext(t), []string{"init", dir}, nil, nil); err != nil {
		t.Fatalf("init RunCommand() error: %v", err)
	}

	s := openE2E(t, Options{Repo: dir, Config: []string{"cinnabar.marker=e2e"}})

	v, err := s.Version(testContext(t))
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v.Major == 0 {
		t.Errorf("Version() = %v, want a nonzero major version", v)
	}
	t.Logf("server version %s", v)

	items, err := s.ConfigItems(testContext(t))
	if err != nil {
		t.Fatalf("ConfigItems() error: %v", err)
	}
	found := false
	for _, item := range items {
		if item.Section == "cinnabar" && item.Key == "marker" && item.Value == "e2e" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("config override missing from %d reported items", len(items))
	}
}

// TestE2E_ParallelSessions opens several sessions against one repository
// and runs commands concurrently; every session self-reports the same
// root.
func TestE2E_ParallelSessions(t *testing.T) {
	requireE2E(t)

	dir := t.TempDir()
	bootstrap := openE2E(t, Options{})
	if _, err := bootstrap.RunCommand(testContext(t), []string{"init", dir}, nil, nil); err != nil {
		t.Fatalf("init RunCommand() error: %v", err)
	}

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			s, err := Open(testContext(t), Options{Repo: dir, Encoding: "UTF-8"})
			if err != nil {
				return err
			}
			defer iox.DiscardClose(s)
			root, err := s.Root(testContext(t))
			if err != nil {
				return err
			}
			samePath(t, root, dir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("parallel session error: %v", err)
	}
}

// TestE2E_BadRepoHandshake points the server at a directory that is not a
// repository; the launch succeeds but the server dies before the hello,
// and its stderr lands in the handshake error.
func TestE2E_BadRepoHandshake(t *testing.T) {
	requireE2E(t)

	_, err := Open(testContext(t), Options{Repo: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatal("Open() against a missing repository succeeded")
	}
	if !IsHandshakeError(err) {
		t.Fatalf("Open() = %v, want handshake ServerError", err)
	}
	if !strings.Contains(err.Error(), "abort") {
		t.Errorf("handshake error %q does not carry the server's abort diagnostics", err)
	}
}
