package store_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockwhz/secregress/internal/store"
)

func exerciseStore(t *testing.T, s store.ArtifactStore) {
	t.Helper()

	ok, err := s.Exists("repo", "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get("repo", "abc")
	require.ErrorIs(t, err, store.ErrNotFound)

	commits, err := s.List("repo")
	require.NoError(t, err)
	assert.Empty(t, commits)

	require.NoError(t, s.Put("repo", "abc", []byte(`{"results": []}`)))
	require.NoError(t, s.Put("repo", "def", []byte(`{}`)))
	require.NoError(t, s.Put("other", "abc", []byte(`{"x": 1}`)))

	ok, err = s.Exists("repo", "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Get("repo", "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"results": []}`, string(data))

	commits, err = s.List("repo")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"abc", "def"}, commits)

	// Overwrite keeps a single entry.
	require.NoError(t, s.Put("repo", "abc", []byte(`{"results": [1]}`)))
	commits, err = s.List("repo")
	require.NoError(t, err)
	assert.Len(t, commits, 2)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	exerciseStore(t, s)
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := &store.FileStore{Root: root}
	exerciseStore(t, s)

	_, err := os.Stat(filepath.Join(root, "repo", "bandit_results_abc.json"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "repo", "bandit_results_def.json"), s.Path("repo", "def"))
}

func TestFileStore_ListIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bandit_results_sub.json"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "commit_list.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-abc-123"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bandit_results_.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bandit_results_c1.json"), []byte("{}"), 0o644))

	s := &store.FileStore{Root: root}
	commits, err := s.List("repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, commits)

	ok, err := s.Exists("repo", "sub")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_SymlinkedReportIsListedAndExists(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "repo")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	target := filepath.Join(root, "elsewhere.json")
	require.NoError(t, os.WriteFile(target, []byte(`{"results": []}`), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, store.FileName("linked"))))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing.json"), filepath.Join(dir, store.FileName("dangling"))))

	s := &store.FileStore{Root: root}
	commits, err := s.List("repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"linked"}, commits)

	for _, commit := range []string{"linked", "dangling"} {
		exists, err := s.Exists("repo", commit)
		require.NoError(t, err)
		assert.Equal(t, slices.Contains(commits, commit), exists, commit)
	}
}

func TestCommitFromFileName(t *testing.T) {
	t.Parallel()

	commit, ok := store.CommitFromFileName(store.FileName("0123abcd"))
	assert.True(t, ok)
	assert.Equal(t, "0123abcd", commit)

	_, ok = store.CommitFromFileName("summary.csv")
	assert.False(t, ok)
}
