package retrieval

import (
	"strings"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// Chunker splits document text into overlapping passages sized for embedding.
// It prefers paragraph and sentence boundaries, falling back to word and rune
// splits for text with no structure.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
	separators   []string
}

func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &Chunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
		separators:   []string{"\n\n", "\n", ". ", " "},
	}
}

// Split returns the passages of text, each at most ChunkSize runes, with
// ChunkOverlap runes carried between consecutive passages.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := c.split(text, c.separators)
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

func (c *Chunker) split(text string, separators []string) []string {
	if len([]rune(text)) <= c.ChunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return c.splitByLength(text)
	}

	sep := separators[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return c.split(text, separators[1:])
	}

	var (
		result  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			result = append(result, current.String())
			current.Reset()
		}
	}
	for _, part := range parts {
		piece := part
		if current.Len() > 0 {
			piece = sep + part
		}
		if len([]rune(current.String()))+len([]rune(piece)) > c.ChunkSize {
			flush()
			if len([]rune(part)) > c.ChunkSize {
				result = append(result, c.split(part, separators[1:])...)
				continue
			}
			piece = part
		}
		current.WriteString(piece)
	}
	flush()
	return c.applyOverlap(result)
}

func (c *Chunker) splitByLength(text string) []string {
	runes := []rune(text)
	step := c.ChunkSize - c.ChunkOverlap
	var result []string
	for start := 0; start < len(runes); start += step {
		end := start + c.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		result = append(result, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return result
}

// applyOverlap prefixes each chunk after the first with the tail of its
// predecessor so context survives chunk boundaries.
func (c *Chunker) applyOverlap(chunks []string) []string {
	if c.ChunkOverlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		start := len(prev) - c.ChunkOverlap
		if start < 0 {
			start = 0
		}
		out[i] = string(prev[start:]) + chunks[i]
	}
	return out
}
