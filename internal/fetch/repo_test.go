package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initLocalRepo creates a throwaway git repository on disk with the given
// path->content files committed, and returns a file:// URL to it.
func initLocalRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for relPath, content := range files {
		full := filepath.Join(dir, relPath)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err := wt.Add(relPath)
		require.NoError(t, err)
	}

	_, err = wt.Commit("seed", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return "file://" + dir
}

func TestRepoFetcher_Fetch_PrefersDocumentationPaths(t *testing.T) {
	// Given a repo with both a docs/ file and an unrelated top-level file
	url := initLocalRepo(t, map[string]string{
		"docs/guide.md": "# Guide\n\nHow to use this project.",
		"README.md":     "top level readme content",
	})
	f := NewRepoFetcher(DefaultRepoFetcherConfig())

	// When fetching
	doc, err := f.Fetch(context.Background(), url)

	// Then the docs/ content is present and a commit id was captured
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "How to use this project")
	assert.Equal(t, "repo", doc.Kind)
	assert.NotEmpty(t, doc.Validators.CommitID)
}

func TestRepoFetcher_Fetch_FallsBackToFullTreeWhenNoDocPaths(t *testing.T) {
	// Given a repo with no docs/src/examples-shaped directories
	url := initLocalRepo(t, map[string]string{
		"NOTES.txt": "just some project notes with no recognized directory",
	})
	f := NewRepoFetcher(DefaultRepoFetcherConfig())

	// When fetching
	doc, err := f.Fetch(context.Background(), url)

	// Then the fallback full-tree pass still surfaces the file
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "just some project notes")
}

func TestRepoFetcher_Fetch_SkipsExcludedAndBinaryPaths(t *testing.T) {
	// Given a repo with a vendored dependency and a binary-shaped file
	url := initLocalRepo(t, map[string]string{
		"docs/guide.md":          "# Guide\n\nReal content lives here.",
		"vendor/lib/ignored.go":  "package lib // should never appear in output",
		"docs/image.png":         "not-really-png-bytes",
	})
	f := NewRepoFetcher(DefaultRepoFetcherConfig())

	// When fetching
	doc, err := f.Fetch(context.Background(), url)

	// Then vendor/ and image assets are excluded
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Real content lives here")
	assert.NotContains(t, doc.Text, "should never appear")
	assert.NotContains(t, doc.Text, "not-really-png-bytes")
}
