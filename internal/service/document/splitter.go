package document

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter cuts text into fragments of at most size runes. It tries
// paragraph, line and word boundaries before a hard cut, and merges small
// pieces back up to the size with up to overlap runes carried between
// fragments.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter validates the window. overlap must be smaller than size so
// every step advances.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("fragment size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("fragment overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}, nil
}

// Split returns the ordered fragments of text. Whitespace-only fragments are
// dropped.
func (s *Splitter) Split(text string) ([]string, error) {
	pieces, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	fragments := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) != "" {
			fragments = append(fragments, piece)
		}
	}
	return fragments, nil
}
