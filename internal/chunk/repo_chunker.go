package chunk

import (
	"context"
	"regexp"
	"strings"

	"github.com/Aman-CERP/webkb/internal/store"
)

// fileHeader matches the "## <relpath>\n\n" markers RepoFetcher inserts
// before each file's content (internal/fetch/repo.go).
var fileHeader = regexp.MustCompile(`(?m)^## (\S.*)$`)

// RepoChunker splits repo documents on file boundaries first, then
// within a file by blank-line-separated blocks, falling back to
// fixed-size packing (spec §4.6). Every file contributes at least one
// chunk carrying its path in the chunk text.
type RepoChunker struct{}

// NewRepoChunker builds a RepoChunker.
func NewRepoChunker() *RepoChunker {
	return &RepoChunker{}
}

// ChunkDocument implements Chunker.
func (c *RepoChunker) ChunkDocument(_ context.Context, in Input) ([]*store.Chunk, error) {
	files := splitByFile(in.Text)
	if len(files) == 0 {
		files = []repoFile{{Path: "", Body: in.Text}}
	}

	var units []string
	for _, f := range files {
		header := f.Path
		blocks := splitOnBlankLines(f.Body)
		for i, b := range blocks {
			b = strings.TrimSpace(b)
			if b == "" {
				continue
			}
			if header != "" && i == 0 {
				units = append(units, "## "+header+"\n\n"+b)
			} else if header != "" {
				// Carry the path forward so every unit is self-identifying
				// even after further splitting/packing.
				units = append(units, "## "+header+" (cont.)\n\n"+b)
			} else {
				units = append(units, b)
			}
		}
	}

	return accumulate(in, units), nil
}

type repoFile struct {
	Path string
	Body string
}

// splitByFile splits concatenated repo text on "## <path>" headers.
func splitByFile(text string) []repoFile {
	locs := fileHeader.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	var files []repoFile
	for i, loc := range locs {
		pathStart, pathEnd := loc[2], loc[3]
		bodyStart := loc[1]
		bodyEnd := len(text)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		files = append(files, repoFile{
			Path: strings.TrimSpace(text[pathStart:pathEnd]),
			Body: strings.TrimSpace(text[bodyStart:bodyEnd]),
		})
	}
	return files
}
