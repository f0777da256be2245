package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lockwhz/secregress/internal/logger"
)

const (
	reportPrefix = "bandit_results_"
	reportSuffix = ".json"
	dirPerm      = 0o755
	filePerm     = 0o644
)

// FileStore lays reports out as <Root>/<repo>/bandit_results_<commit>.json.
type FileStore struct {
	Root string
}

// FileName is the report file name for a commit; the commit is recoverable
// from it with CommitFromFileName.
func FileName(commit string) string {
	return reportPrefix + commit + reportSuffix
}

// CommitFromFileName reverses FileName.
func CommitFromFileName(name string) (string, bool) {
	if !strings.HasPrefix(name, reportPrefix) || !strings.HasSuffix(name, reportSuffix) {
		return "", false
	}
	commit := strings.TrimSuffix(strings.TrimPrefix(name, reportPrefix), reportSuffix)
	return commit, commit != ""
}

// Path is where the report for (repo, commit) lives.
func (s *FileStore) Path(repo, commit string) string {
	return filepath.Join(s.Root, repo, FileName(commit))
}

func (s *FileStore) Exists(repo, commit string) (bool, error) {
	info, err := os.Stat(s.Path(repo, commit))
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat report %s/%s: %w", repo, commit, err)
}

func (s *FileStore) Get(repo, commit string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(repo, commit))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read report %s/%s: %w", repo, commit, err)
	}
	return data, nil
}

// Put writes through a temp file in the same directory and renames it into place.
func (s *FileStore) Put(repo, commit string, data []byte) error {
	start := time.Now()
	defer logger.Trace("FileStore.Put", start)

	dir := filepath.Join(s.Root, repo)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+commit+"-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("chmod temp report: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(repo, commit)); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// List returns commits in directory-read order. A missing repository
// directory yields an empty list.
func (s *FileStore) List(repo string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, repo))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list reports for %s: %w", repo, err)
	}

	var commits []string
	for _, e := range entries {
		commit, ok := CommitFromFileName(e.Name())
		if !ok {
			continue
		}
		// Symlinks count when they resolve to a regular file, as in Exists.
		if !e.Type().IsRegular() {
			ok, err := s.Exists(repo, commit)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		commits = append(commits, commit)
	}
	return commits, nil
}
