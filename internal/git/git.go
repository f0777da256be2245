// Package git lists history, checks out commits and clones repositories.
// Every operation takes the repository root explicitly; nothing changes the
// process working directory.
package git

import (
	"context"
	"errors"
	"strings"

	"github.com/lockwhz/secregress/models"
)

var (
	// ErrCheckout wraps every failure to move a working tree to a revision.
	ErrCheckout = errors.New("checkout failed")
	// ErrClone wraps clone and open failures.
	ErrClone = errors.New("clone failed")
)

// Client is the history, checkout and clone collaborator of the pipeline.
type Client interface {
	// Clone makes dir a working copy of repo. An existing repository at dir
	// is left untouched.
	Clone(ctx context.Context, repo models.Repository, dir string) error
	// ListCommits returns up to n commit ids reachable from ref (HEAD when
	// empty), most recent first, merge commits excluded.
	ListCommits(ctx context.Context, dir, ref string, n int) ([]string, error)
	// Checkout moves the working tree to rev, discarding local changes.
	// A branch name re-attaches HEAD; anything else detaches it.
	Checkout(ctx context.Context, dir, rev string) error
	// Head returns the checked-out branch name, or the commit id when detached.
	Head(dir string) (string, error)
}

// ShortID trims a commit id for log lines.
func ShortID(commit string) string {
	commit = strings.TrimSpace(commit)
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
