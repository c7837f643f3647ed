// Package chunk splits extracted text into overlapping passages sized for
// embedding and retrieval.
package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/HandsomeSB/Askit/internal/model"
)

const (
	// DefaultTargetSize is the chunk size in characters.
	DefaultTargetSize = 1024
	// DefaultOverlap is the character overlap between consecutive chunks.
	DefaultOverlap = 200
)

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?\n]+[.!?\n]+|[^.!?\n]+$)`)

// Chunker splits text into sentence-aligned chunks with character overlap.
// Splitting is deterministic: identical text and parameters always yield
// identical chunk boundaries, which keeps re-indexing idempotent.
type Chunker struct {
	targetSize int
	overlap    int
}

// NewChunker creates a Chunker. Overlap must be strictly less than the
// target size.
func NewChunker(targetSize, overlap int) (*Chunker, error) {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		return nil, fmt.Errorf("overlap (%d) must be smaller than target size (%d)", overlap, targetSize)
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}, nil
}

// Split breaks text into chunks for the given file. Empty or
// whitespace-only text yields zero chunks. Chunk IDs are "<fileID>:<n>"
// so a re-index of unchanged content reproduces the same IDs.
func (c *Chunker) Split(text string, fileID string, meta model.ChunkMetadata) []model.Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []model.Chunk
	i := 0
	for i < len(sentences) {
		// Greedily take sentences until the chunk reaches the target size.
		end := i
		size := 0
		for end < len(sentences) {
			sentLen := len(sentences[end]) + 1
			if size > 0 && size+sentLen > c.targetSize {
				break
			}
			size += sentLen
			end++
		}

		chunkText := strings.Join(sentences[i:end], " ")
		chunks = append(chunks, model.Chunk{
			ID:       fmt.Sprintf("%s:%d", fileID, len(chunks)),
			FileID:   fileID,
			Text:     chunkText,
			Metadata: meta,
		})

		if end >= len(sentences) {
			break
		}

		// Back up whole sentences until the requested overlap is covered.
		next := end
		if c.overlap > 0 {
			overlapChars := 0
			for next > i+1 {
				overlapChars += len(sentences[next-1]) + 1
				if overlapChars >= c.overlap {
					next--
					break
				}
				next--
			}
			if next <= i {
				next = i + 1
			}
		}
		i = next
	}
	return chunks
}

func splitSentences(text string) []string {
	raw := sentenceSplitter.FindAllString(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
