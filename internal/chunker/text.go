package chunker

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"pdfrag/internal/domain"
)

// Text reads a directory of plain-text files and emits sentence-window
// chunks per file, sequence numbers starting at 1 within each file.
// Non-.txt entries are skipped with a notice.
type Text struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
	logger            *log.Logger
}

func NewText(sentencesPerChunk, overlapSentences int, logger *log.Logger) *Text {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	// The window must advance by at least one sentence per chunk.
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Text{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		logger:            logger,
	}
}

func (c *Text) Chunk(dir string) ([]domain.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.ExtractionError{File: dir, Err: err}
	}
	var chunks []domain.Chunk
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".txt") {
			c.logger.Printf("skipping %s: not a text file", name)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, &domain.ExtractionError{File: name, Err: err}
		}
		chunks = append(chunks, c.chunkFile(name, string(data))...)
	}
	return chunks, nil
}

func (c *Text) chunkFile(name, content string) []domain.Chunk {
	sentences := c.splitter.FindAllString(content, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return nil
		}
		sentences = []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	var chunks []domain.Chunk
	i := 0
	seq := 1
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, domain.Chunk{
			Source:   name,
			Sequence: seq,
			Text:     strings.Join(sentences[i:end], " "),
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
		if i < 0 {
			i = 0
		}
		seq++
	}
	return chunks
}
