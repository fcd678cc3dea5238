package textproc

import "strings"

// ChunkOptions controls Split behavior. Zero values fall back to the
// defaults used across the ingestion pipeline.
type ChunkOptions struct {
	// ChunkSize is the maximum chunk length in bytes of normalized text.
	ChunkSize int
	// Overlap is how many bytes consecutive chunks share, preserving
	// context across chunk boundaries.
	Overlap int
}

const (
	// DefaultChunkSize matches the embedding model's comfortable input size.
	DefaultChunkSize = 1000
	// DefaultOverlap keeps a fifth of each chunk as shared context.
	DefaultOverlap = 200
)

func (o ChunkOptions) withDefaults() ChunkOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Overlap < 0 || o.Overlap >= o.ChunkSize {
		o.Overlap = DefaultOverlap
		if o.Overlap >= o.ChunkSize {
			o.Overlap = o.ChunkSize / 5
		}
	}
	return o
}

// Split normalizes text and cuts it into overlapping chunks. Chunks
// end on sentence boundaries where one exists anywhere in the window,
// so embeddings are not fed mid-sentence fragments.
//
// Every byte of the normalized text appears in at least one window, no
// chunk exceeds opts.ChunkSize, and each chunk is trimmed and
// non-empty. Empty or whitespace-only input yields an empty slice.
func Split(text string, opts ChunkOptions) []string {
	opts = opts.withDefaults()

	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	if len(normalized) <= opts.ChunkSize {
		return []string{normalized}
	}

	var chunks []string
	start := 0
	for start < len(normalized) {
		end := start + opts.ChunkSize
		if end >= len(normalized) {
			chunks = appendChunk(chunks, normalized[start:])
			break
		}

		end = adjustToSentenceBoundary(normalized, start, end)
		chunks = appendChunk(chunks, normalized[start:end])

		// Step back by the overlap, but always make forward progress:
		// a boundary found very early in the window could otherwise
		// move the cursor backwards and loop forever.
		newStart := end - opts.Overlap
		if newStart <= start {
			newStart = end
		}
		start = newStart
	}

	return chunks
}

// appendChunk trims a window slice and appends it, dropping slices that
// are empty after trimming. A window starting just before a space would
// otherwise produce a chunk with leading whitespace.
func appendChunk(chunks []string, c string) []string {
	c = strings.TrimSpace(c)
	if c == "" {
		return chunks
	}
	return append(chunks, c)
}

// adjustToSentenceBoundary searches backwards from end for the last
// sentence terminator anywhere in the window. On a hit the cut lands
// just after the terminator and any following whitespace; otherwise
// the chunk cuts at end as-is.
func adjustToSentenceBoundary(text string, start, end int) int {
	for i := end - 1; i > start; i-- {
		switch text[i] {
		case '.', '!', '?':
			cut := i + 1
			for cut < end && (text[cut] == ' ' || text[cut] == '\t' || text[cut] == '\n') {
				cut++
			}
			return cut
		}
	}
	return end
}
