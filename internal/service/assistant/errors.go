package assistant

import (
	"errors"

	"github.com/zhouzirui/research-assistant/backend/internal/service/document"
)

// Request failures. Callers match them with errors.Is; the wrapped message
// carries the collaborator's detail.
var (
	ErrUnsupportedFormat   = document.ErrUnsupportedFormat
	ErrExtractionFailed    = errors.New("error extracting text")
	ErrEmptyDocument       = errors.New("document text is empty or could not be extracted")
	ErrSummarizationFailed = errors.New("summarization failed")
	ErrUpstreamModel       = errors.New("LLM error")
)
