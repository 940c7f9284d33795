package chunk

import (
	"context"
	"regexp"
	"strings"

	"github.com/Aman-CERP/webkb/internal/store"
)

var headingLine = regexp.MustCompile(`(?m)^(#{1,6})\s+\S`)

// WebChunker splits web_page/doc_site_page markdown on heading
// boundaries, then paragraph, then sentence (spec §4.6). A heading is
// kept attached to the paragraph that follows it so a heading never
// becomes an orphaned trailing chunk.
type WebChunker struct{}

// NewWebChunker builds a WebChunker.
func NewWebChunker() *WebChunker {
	return &WebChunker{}
}

// ChunkDocument implements Chunker.
func (c *WebChunker) ChunkDocument(_ context.Context, in Input) ([]*store.Chunk, error) {
	units := paragraphUnits(in.Text)
	chunks := accumulate(in, units)
	return chunks, nil
}

// paragraphUnits splits content into heading/paragraph blocks separated
// by blank lines, merging an isolated heading line into the following
// paragraph. A heading followed directly by another heading, or at the
// end of the content, is emitted as a unit of its own.
func paragraphUnits(content string) []string {
	blocks := splitOnBlankLines(content)

	var units []string
	pendingHeading := ""
	for _, b := range blocks {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if isLoneHeading(b) {
			if pendingHeading != "" {
				units = append(units, pendingHeading)
			}
			pendingHeading = b
			continue
		}
		if pendingHeading != "" {
			units = append(units, pendingHeading+"\n\n"+b)
			pendingHeading = ""
			continue
		}
		units = append(units, b)
	}
	if pendingHeading != "" {
		units = append(units, pendingHeading)
	}
	return units
}

// splitOnBlankLines splits content on blank-line boundaries, but keeps a
// fenced code block (```...```) intact even if it contains blank lines.
func splitOnBlankLines(content string) []string {
	lines := strings.Split(content, "\n")

	var blocks []string
	var cur strings.Builder
	inFence := false

	flush := func() {
		if cur.Len() > 0 {
			blocks = append(blocks, cur.String())
			cur.Reset()
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if trimmed == "" && !inFence {
			flush()
			continue
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(line)
	}
	flush()
	return blocks
}

func isLoneHeading(block string) bool {
	if !headingLine.MatchString(block) {
		return false
	}
	return len(strings.Split(strings.TrimSpace(block), "\n")) == 1
}
