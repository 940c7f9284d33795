package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/store"
)

// estimateTokens counts whitespace-delimited terms, matching spec §4.6's
// definition of "token" for sizing purposes.
func estimateTokens(s string) int {
	return len(strings.Fields(s))
}

// contentHash returns the content validator shared by every chunk of a
// document (spec §3's Content Validators).
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// newChunk builds one store.Chunk, leaving Embedding and enrichment
// fields for internal/queue to attach later.
func newChunk(in Input, text string, index int) *store.Chunk {
	return &store.Chunk{
		ID:               uuid.NewString(),
		DocumentID:       catalog.Hash(in.SourceURL),
		ChunkIndex:       index,
		Text:             strings.TrimSpace(text),
		SourceURL:        in.SourceURL,
		Kind:             in.Kind,
		Domain:           in.Domain,
		ContentHash:      contentHash(in.Text),
		HTTPLastModified: in.Validators.HTTPLastModified,
		HTTPETag:         in.Validators.HTTPETag,
		CommitID:         in.Validators.CommitID,
		FetchedAt:        in.FetchedAt,
	}
}

// finalize stamps TotalChunks across a finished chunk set. A document
// that produced no chunks is not finalized; callers treat that as an
// empty result.
func finalize(chunks []*store.Chunk) []*store.Chunk {
	for _, c := range chunks {
		c.TotalChunks = len(chunks)
	}
	return chunks
}

var sentenceBoundary = regexp.MustCompile(`(?s)([.!?])(\s+)`)

// splitSentences breaks text at sentence-ending punctuation followed by
// whitespace. It is the leaf-level fallback so a chunk split never lands
// mid-sentence (spec §4.6).
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	idxs := sentenceBoundary.FindAllStringSubmatchIndex(text, -1)
	if len(idxs) == 0 {
		return []string{text}
	}
	var out []string
	start := 0
	for _, m := range idxs {
		end := m[3] // end of the punctuation group; trailing whitespace is trimmed below
		out = append(out, strings.TrimSpace(text[start:end]))
		start = end
	}
	if start < len(text) {
		out = append(out, strings.TrimSpace(text[start:]))
	}
	result := out[:0]
	for _, s := range out {
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

// takeOverlapTail returns the trailing words of text, at most n tokens,
// used to seed the next chunk's leading overlap.
func takeOverlapTail(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return text
	}
	return strings.Join(fields[len(fields)-n:], " ")
}

// splitByWordCount hard-splits s into groups of at most n whitespace
// terms. Last resort for a single sentence too long to fit one chunk.
func splitByWordCount(s string, n int) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	var out []string
	for i := 0; i < len(fields); i += n {
		end := i + n
		if end > len(fields) {
			end = len(fields)
		}
		out = append(out, strings.Join(fields[i:end], " "))
	}
	return out
}

// expandToFragments recursively splits unit until every fragment is at
// most MaxChunkTokens: paragraph/block first, sentence next, then a hard
// word-count split as the final leaf (spec §4.6's "never splitting
// mid-sentence" applies down to the sentence split; the word split only
// triggers for a single run-on sentence that alone exceeds the bound).
func expandToFragments(unit string) []string {
	if estimateTokens(unit) <= MaxChunkTokens {
		return []string{unit}
	}
	sentences := splitSentences(unit)
	if len(sentences) > 1 {
		var out []string
		for _, s := range sentences {
			out = append(out, expandToFragments(s)...)
		}
		return out
	}
	return splitByWordCount(unit, MaxChunkTokens)
}

// accumulate packs units (already ordered, each logically indivisible)
// into chunks sized between MinChunkTokens and MaxChunkTokens, carrying
// an OverlapTokens-sized tail of the previous chunk into the next one.
// Units larger than MaxChunkTokens are expanded into sentence- or
// word-level fragments before packing.
func accumulate(in Input, rawUnits []string) []*store.Chunk {
	var units []string
	for _, u := range rawUnits {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		units = append(units, expandToFragments(u)...)
	}
	if len(units) == 0 {
		return nil
	}

	var chunks []*store.Chunk
	var buf strings.Builder
	bufTokens := 0

	flush := func() {
		if bufTokens == 0 {
			return
		}
		chunks = append(chunks, newChunk(in, buf.String(), len(chunks)))
		buf.Reset()
		bufTokens = 0
	}

	for _, u := range units {
		ut := estimateTokens(u)
		if bufTokens > 0 && bufTokens+ut > MaxChunkTokens && bufTokens >= MinChunkTokens {
			tail := takeOverlapTail(buf.String(), OverlapTokens)
			flush()
			if tail != "" {
				buf.WriteString(tail)
				bufTokens = estimateTokens(tail)
			}
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(u)
		bufTokens += ut
	}
	flush()

	return finalize(chunks)
}
