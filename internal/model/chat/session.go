package chat

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// Session captures the transient conversational state behind one identifier.
//
// DocChunks and DocVectors are either both nil or index-aligned with equal
// length. Vectors are kept for a later retrieval step and are not consulted
// when assembling chat context.
type Session struct {
	ID         string            `json:"id"`
	History    []*schema.Message `json:"history"`
	DocSummary string            `json:"docSummary,omitempty"`
	DocChunks  []string          `json:"docChunks,omitempty"`
	DocVectors [][]float64       `json:"docVectors,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// HasDocument reports whether a document summary is stored.
func (s *Session) HasDocument() bool {
	return s.DocSummary != ""
}

// Clone returns a deep copy safe to read without holding the session lock.
func (s *Session) Clone() Session {
	out := Session{
		ID:         s.ID,
		DocSummary: s.DocSummary,
		CreatedAt:  s.CreatedAt,
	}

	if s.History != nil {
		out.History = make([]*schema.Message, len(s.History))
		for i, msg := range s.History {
			copied := *msg
			out.History[i] = &copied
		}
	}
	if s.DocChunks != nil {
		out.DocChunks = append([]string(nil), s.DocChunks...)
	}
	if s.DocVectors != nil {
		out.DocVectors = make([][]float64, len(s.DocVectors))
		for i, vec := range s.DocVectors {
			out.DocVectors[i] = append([]float64(nil), vec...)
		}
	}
	return out
}
