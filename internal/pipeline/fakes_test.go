package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lockwhz/secregress/internal/git"
	"github.com/lockwhz/secregress/internal/scan"
	"github.com/lockwhz/secregress/models"
)

// fakeGit keeps one "checked out" revision per working tree.
type fakeGit struct {
	mu        sync.Mutex
	history   map[string][]string // dir -> most-recent-first commits.
	head      map[string]string
	bad       map[string]bool // commits that fail to check out.
	cloneErr  error
	clones    []string
	checkouts []string
	scanning  map[string]int // dir -> analyzer runs in flight.
	clashes   int            // checkouts issued while the tree was being analyzed.
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		history:  make(map[string][]string),
		head:     make(map[string]string),
		bad:      make(map[string]bool),
		scanning: make(map[string]int),
	}
}

func (g *fakeGit) Clone(_ context.Context, repo models.Repository, dir string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cloneErr != nil {
		return g.cloneErr
	}
	g.clones = append(g.clones, repo.Name)
	if _, ok := g.head[dir]; !ok {
		g.head[dir] = "main"
	}
	return nil
}

func (g *fakeGit) ListCommits(_ context.Context, dir, _ string, n int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.history[dir]
	if !ok {
		return nil, fmt.Errorf("no repository at %s", dir)
	}
	if n > 0 && len(h) > n {
		h = h[:n]
	}
	return append([]string(nil), h...), nil
}

func (g *fakeGit) Checkout(_ context.Context, dir, rev string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bad[rev] {
		return fmt.Errorf("%w: %s", git.ErrCheckout, rev)
	}
	if g.scanning[dir] > 0 {
		g.clashes++
	}
	g.head[dir] = rev
	g.checkouts = append(g.checkouts, rev)
	return nil
}

func (g *fakeGit) Head(dir string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.head[dir]
	if !ok {
		return "", errors.New("not a repository")
	}
	return h, nil
}

func (g *fakeGit) beginScan(dir string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scanning[dir]++
}

func (g *fakeGit) endScan(dir string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scanning[dir]--
}

func (g *fakeGit) clashCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clashes
}

func (g *fakeGit) current(dir string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.head[dir]
}

// fakeScanner writes a canned report for whatever commit is checked out.
type fakeScanner struct {
	mu      sync.Mutex
	git     *fakeGit
	reports map[string]string // commit -> JSON body.
	fail    map[string]bool
	delay   time.Duration // Simulated analyzer run time.
	calls   []string
}

func (s *fakeScanner) Run(_ context.Context, dir, reportPath string) error {
	commit := s.git.current(dir)
	if s.delay > 0 {
		s.git.beginScan(dir)
		time.Sleep(s.delay)
		s.git.endScan(dir)
	}

	s.mu.Lock()
	s.calls = append(s.calls, commit)
	fail := s.fail[commit]
	body, ok := s.reports[commit]
	s.mu.Unlock()

	if fail {
		return fmt.Errorf("%w: exit status 2", scan.ErrAnalyzer)
	}
	if !ok {
		body = `{"results": []}`
	}
	return os.WriteFile(reportPath, []byte(body), 0o644)
}

func (s *fakeScanner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
