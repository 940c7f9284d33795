package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"

	weberrors "github.com/Aman-CERP/webkb/internal/errors"
)

// RepoFetcherConfig tunes RepoFetcher behavior (spec §4.4, REDESIGN FLAG RF-1).
type RepoFetcherConfig struct {
	PartialTimeout time.Duration
	FullTimeout    time.Duration
	AcquireCeiling time.Duration
	MaxFileBytes   int64
}

// DefaultRepoFetcherConfig returns the spec's default timing budget.
func DefaultRepoFetcherConfig() RepoFetcherConfig {
	return RepoFetcherConfig{
		PartialTimeout: DefaultPartialCloneTimeout,
		FullTimeout:    DefaultFullCloneTimeout,
		AcquireCeiling: DefaultRepoAcquireCeiling,
		MaxFileBytes:   DefaultMaxRepoFileBytes,
	}
}

// RepoFetcher shallow-clones a git repository to a scratch directory and
// reads its text files into a single FetchedDocument. go-git has no
// server-side partial clone, so the "partial" attempt is emulated by
// walking the checked-out tree restricted to RepoIncludeDirs first; only
// when that yields nothing does it fall back to the full tree, still
// skipping RepoExcludeDirs and binary-shaped files.
type RepoFetcher struct {
	cfg RepoFetcherConfig
}

// NewRepoFetcher builds a RepoFetcher with cfg.
func NewRepoFetcher(cfg RepoFetcherConfig) *RepoFetcher {
	return &RepoFetcher{cfg: cfg}
}

// Fetch clones rawURL and concatenates its interesting text files.
func (f *RepoFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.AcquireCeiling)
	defer cancel()

	localPath, err := os.MkdirTemp("", "webkb-repo-*")
	if err != nil {
		return nil, weberrors.Transient("failed to create scratch directory", err)
	}
	defer os.RemoveAll(localPath)

	repo, err := f.clone(ctx, rawURL, localPath)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, weberrors.Transient("failed to resolve HEAD", err)
	}

	partialCtx, partialCancel := context.WithTimeout(ctx, f.cfg.PartialTimeout)
	text, fileCount, err := f.extract(partialCtx, localPath, true)
	partialCancel()
	if err != nil {
		return nil, err
	}

	if fileCount == 0 {
		fullCtx, fullCancel := context.WithTimeout(ctx, f.cfg.FullTimeout)
		text, fileCount, err = f.extract(fullCtx, localPath, false)
		fullCancel()
		if err != nil {
			return nil, err
		}
	}

	if fileCount == 0 {
		return nil, weberrors.Permanent("repo contained no readable text files", nil)
	}

	return &FetchedDocument{
		Text:      text,
		Kind:      "repo",
		SourceURL: rawURL,
		Validators: Validators{
			CommitID: head.Hash().String(),
		},
	}, nil
}

func (f *RepoFetcher) clone(ctx context.Context, rawURL, localPath string) (*git.Repository, error) {
	repo, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
		URL:          rawURL,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, weberrors.Transient("repo clone exceeded time budget", err)
		}
		return nil, weberrors.Transient("repo clone failed", err)
	}
	return repo, nil
}

// extract walks localPath's checked-out tree, optionally restricted to
// RepoIncludeDirs, skipping RepoExcludeDirs/.git and oversized or
// binary-shaped files, and returns the concatenated text with per-file
// headers plus the number of files included.
func (f *RepoFetcher) extract(ctx context.Context, localPath string, includeOnly bool) (string, int, error) {
	var b strings.Builder
	count := 0

	err := filepath.Walk(localPath, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries, don't abort the whole walk
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(localPath, p)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if isExcludedPath(relPath) {
			return nil
		}
		if includeOnly && !isIncludedPath(relPath) {
			return nil
		}
		if isLikelyBinaryPath(relPath) {
			return nil
		}
		if info.Size() > f.cfg.MaxFileBytes {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil || !looksLikeText(data) {
			return nil
		}

		fmt.Fprintf(&b, "## %s\n\n", relPath)
		b.Write(data)
		b.WriteString("\n\n")
		count++
		return nil
	})
	if err != nil {
		return b.String(), count, weberrors.Transient("repo extraction exceeded time budget", err)
	}

	return b.String(), count, nil
}

func isExcludedPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".git" {
			return true
		}
		for _, ex := range RepoExcludeDirs {
			if seg == ex {
				return true
			}
		}
	}
	return false
}

func isIncludedPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		for _, inc := range RepoIncludeDirs {
			if seg == inc {
				return true
			}
		}
	}
	return false
}

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".pdf": true,
	".zip": true, ".tar": true, ".gz": true, ".so": true, ".dylib": true,
	".dll": true, ".exe": true, ".bin": true, ".wasm": true, ".mp4": true,
	".mp3": true, ".webm": true, ".svg": true,
}

func isLikelyBinaryPath(p string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(p))]
}

func looksLikeText(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	n := len(b)
	if n > 512 {
		n = 512
	}
	for _, c := range b[:n] {
		if c == 0 {
			return false
		}
	}
	return true
}
