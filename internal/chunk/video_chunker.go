package chunk

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/webkb/internal/fetch"
	"github.com/Aman-CERP/webkb/internal/store"
)

// VideoChunker aggregates transcript segments until reaching
// MinChunkTokens, preserving the first segment's timestamp at the head
// of each chunk's text (spec §4.6). When a FetchedDocument carries no
// structured segments (e.g. older cached documents), it falls back to
// treating each line of the flattened transcript text as a segment with
// an unknown timestamp.
type VideoChunker struct{}

// NewVideoChunker builds a VideoChunker.
func NewVideoChunker() *VideoChunker {
	return &VideoChunker{}
}

// ChunkDocument implements Chunker.
func (c *VideoChunker) ChunkDocument(_ context.Context, in Input) ([]*store.Chunk, error) {
	segments := in.TranscriptSegments
	if len(segments) == 0 {
		segments = segmentsFromLines(in.Text)
	}
	if len(segments) == 0 {
		return nil, nil
	}

	var units []string
	i := 0
	for i < len(segments) {
		var b strings.Builder
		startSeconds := segments[i].StartSeconds
		tokens := 0
		j := i
		for j < len(segments) && (tokens < MinChunkTokens || j == i) {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(strings.TrimSpace(segments[j].Text))
			tokens += estimateTokens(segments[j].Text)
			j++
			if tokens >= MaxChunkTokens {
				break
			}
		}
		units = append(units, fmt.Sprintf("[t=%.0fs] %s", startSeconds, b.String()))
		i = j
	}

	return accumulate(in, units), nil
}

// segmentsFromLines treats each non-empty line as one untimed segment.
func segmentsFromLines(text string) []fetch.TranscriptSegment {
	var out []fetch.TranscriptSegment
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, fetch.TranscriptSegment{StartSeconds: 0, Text: line})
	}
	return out
}
