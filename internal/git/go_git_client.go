package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	httpAuth "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/lockwhz/secregress/internal/logger"
	"github.com/lockwhz/secregress/internal/vault"
	"github.com/lockwhz/secregress/models"
)

// GoGitClient implements Client using go-git.
type GoGitClient struct {
	Vault    vault.CredentialProvider
	Progress io.Writer // Clone progress; nil discards it.
}

func (c *GoGitClient) Clone(ctx context.Context, repo models.Repository, dir string) error {
	start := time.Now()
	defer logger.Trace("CloneRepo", start)

	_, err := git.PlainOpen(dir)
	if err == nil {
		return nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return fmt.Errorf("%w: open %s: %v", ErrClone, dir, err)
	}

	opts := &git.CloneOptions{
		URL:      repo.URL,
		Progress: c.Progress,
	}
	if c.Vault != nil {
		creds, err := c.Vault.Credentials(repo)
		if err != nil {
			return fmt.Errorf("%w: credentials for %s: %v", ErrClone, repo.Name, err)
		}
		if creds != nil {
			opts.Auth = &httpAuth.BasicAuth{
				Username: creds.Username,
				Password: creds.Token,
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %v", ErrClone, err)
	}
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("%w: %s: %v", ErrClone, repo.URL, err)
	}
	return nil
}

func (c *GoGitClient) ListCommits(ctx context.Context, dir, ref string, n int) ([]string, error) {
	start := time.Now()
	defer logger.Trace("ListCommits", start)

	r, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dir, err)
	}

	var from plumbing.Hash
	if ref == "" {
		head, err := r.Head()
		if err != nil {
			return nil, fmt.Errorf("resolve HEAD: %w", err)
		}
		from = head.Hash()
	} else {
		h, err := r.ResolveRevision(plumbing.Revision(ref))
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ref, err)
		}
		from = *h
	}

	iter, err := r.Log(&git.LogOptions{From: from, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	defer iter.Close()

	var commits []string
	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n > 0 && len(commits) >= n {
			return storer.ErrStop
		}
		if commit.NumParents() > 1 {
			return nil
		}
		commits = append(commits, commit.Hash.String())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk history: %w", err)
	}
	return commits, nil
}

func (c *GoGitClient) Checkout(ctx context.Context, dir, rev string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrCheckout, dir, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return fmt.Errorf("%w: worktree: %v", ErrCheckout, err)
	}

	opts := &git.CheckoutOptions{Force: true}
	branch := plumbing.NewBranchReferenceName(rev)
	if _, err := r.Reference(branch, true); err == nil {
		opts.Branch = branch
	} else {
		h, err := r.ResolveRevision(plumbing.Revision(rev))
		if err != nil {
			return fmt.Errorf("%w: resolve %s: %v", ErrCheckout, ShortID(rev), err)
		}
		opts.Hash = *h
	}

	if err := wt.Checkout(opts); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCheckout, ShortID(rev), err)
	}
	return nil
}

func (c *GoGitClient) Head(dir string) (string, error) {
	r, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", dir, err)
	}
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String(), nil
}
