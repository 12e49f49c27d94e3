// Package assistant runs the document and chat pipelines against the session
// store.
//
// Session locks are held only while session fields are read or written.
// Extraction, summarization, embedding, web research and the chat model are
// always called with no lock held.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/research-assistant/backend/internal/logging"
	"github.com/zhouzirui/research-assistant/backend/internal/metrics"
	modelchat "github.com/zhouzirui/research-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/research-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/research-assistant/backend/internal/service/ai"
	chatService "github.com/zhouzirui/research-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/research-assistant/backend/internal/service/document"
	"github.com/zhouzirui/research-assistant/backend/internal/service/research"
)

// Extractor converts an uploaded file to text.
type Extractor interface {
	Extract(ctx context.Context, ext string, data []byte) (string, error)
}

// Summarizer condenses ordered fragments into one summary.
type Summarizer interface {
	Summarize(ctx context.Context, chunks []string) (string, error)
}

// Responder answers an assembled conversation.
type Responder interface {
	GenerateResponse(ctx context.Context, messages []*schema.Message, temperature float32) (*schema.Message, error)
}

// Researcher returns a web search digest for a query.
type Researcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Deps are the collaborators of the pipeline. Embedder and Researcher are
// optional; a nil value disables the feature for the process lifetime.
type Deps struct {
	Sessions   *chatService.Service
	Personas   persona.Store
	Extractor  Extractor
	Splitter   *document.Splitter
	Summarizer Summarizer
	Responder  Responder
	Embedder   embedding.Embedder
	Researcher Researcher
}

// Options tunes the pipeline.
type Options struct {
	// CallTimeout bounds each outbound collaborator call. Zero disables it.
	CallTimeout time.Duration
	// HistoryLimit bounds replayed history messages. Zero replays all.
	HistoryLimit int
}

// Service implements set-personality, upload and chat.
type Service struct {
	sessions   *chatService.Service
	personas   persona.Store
	extractor  Extractor
	splitter   *document.Splitter
	summarizer Summarizer
	responder  Responder
	embedder   embedding.Embedder
	researcher Researcher

	researchEnabled bool
	opts            Options
	logger          *zerolog.Logger
}

// NewService validates deps and builds the pipeline.
func NewService(deps Deps, opts Options, logger *zerolog.Logger) (*Service, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("assistant: session store is required")
	case deps.Personas == nil:
		return nil, errors.New("assistant: persona store is required")
	case deps.Extractor == nil:
		return nil, errors.New("assistant: extractor is required")
	case deps.Splitter == nil:
		return nil, errors.New("assistant: splitter is required")
	case deps.Summarizer == nil:
		return nil, errors.New("assistant: summarizer is required")
	case deps.Responder == nil:
		return nil, errors.New("assistant: responder is required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Service{
		sessions:        deps.Sessions,
		personas:        deps.Personas,
		extractor:       deps.Extractor,
		splitter:        deps.Splitter,
		summarizer:      deps.Summarizer,
		responder:       deps.Responder,
		embedder:        deps.Embedder,
		researcher:      deps.Researcher,
		researchEnabled: deps.Researcher != nil,
		opts:            opts,
		logger:          logger,
	}, nil
}

// ResearchEnabled reports whether web research is available.
func (s *Service) ResearchEnabled() bool { return s.researchEnabled }

// EmbeddingEnabled reports whether uploaded documents are embedded.
func (s *Service) EmbeddingEnabled() bool { return s.embedder != nil }

// SessionCount reports how many sessions the store holds.
func (s *Service) SessionCount() int { return s.sessions.Count() }

// PersonalityResult is the outcome of SetPersonality.
type PersonalityResult struct {
	SessionID   string
	Personality string
}

// SetPersonality always creates a new session seeded with one persona
// directive. Any label is accepted.
func (s *Service) SetPersonality(ctx context.Context, label string) PersonalityResult {
	session := s.sessions.CreateSession(ctx, schema.SystemMessage(persona.Directive(label)))
	metrics.SessionCreated("set_personality")

	s.logger.Info().Str("session_id", session.ID).Str("personality", label).Msg("session seeded with personality")
	return PersonalityResult{SessionID: session.ID, Personality: persona.Normalize(label)}
}

// UploadInput describes one uploaded file.
type UploadInput struct {
	Filename  string
	Data      []byte
	SessionID string
}

// UploadResult is the outcome of Upload.
type UploadResult struct {
	SessionID string
	Summary   string
}

// Upload extracts, splits, summarizes and optionally embeds a document, then
// stores the result on the session. On any error no session is created or
// changed.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	ext, err := document.Extension(in.Filename)
	if err != nil {
		metrics.Upload("unsupported", "rejected")
		return UploadResult{}, err
	}
	format := strings.TrimPrefix(ext, ".")

	logger := s.logger.With().Str("filename", in.Filename).Logger()

	text, err := s.extract(ctx, ext, in.Data)
	if err != nil {
		metrics.Upload(format, "extraction_failed")
		logger.Error().Err(err).Msg("text extraction failed")
		return UploadResult{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		metrics.Upload(format, "empty")
		return UploadResult{}, ErrEmptyDocument
	}

	chunks, err := s.splitter.Split(text)
	if err != nil {
		metrics.Upload(format, "extraction_failed")
		logger.Error().Err(err).Msg("text splitting failed")
		return UploadResult{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if len(chunks) == 0 {
		metrics.Upload(format, "empty")
		return UploadResult{}, ErrEmptyDocument
	}

	summary, err := s.summarize(ctx, chunks)
	if err != nil {
		metrics.Upload(format, "summarization_failed")
		logger.Error().Err(err).Int("chunks", len(chunks)).Msg("summarization failed")
		return UploadResult{}, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	vectors, embedded := s.embed(ctx, chunks, &logger)

	// Resolved only once the document is ready, so a failed upload never
	// leaves an empty session behind.
	sessionID := s.resolve(ctx, in.SessionID, "upload")
	err = s.sessions.Update(ctx, sessionID, func(session *modelchat.Session) error {
		session.DocSummary = summary
		switch {
		case embedded:
			session.DocChunks = chunks
			session.DocVectors = vectors
		case s.embedder == nil:
			session.DocChunks = chunks
			session.DocVectors = nil
		default:
			session.DocChunks = nil
			session.DocVectors = nil
		}
		session.History = append(session.History, schema.AssistantMessage(summary, nil))
		return nil
	})
	if err != nil {
		return UploadResult{}, err
	}

	metrics.Upload(format, "ok")
	logger.Info().
		Str("session_id", sessionID).
		Int("chars", len(text)).
		Int("chunks", len(chunks)).
		Bool("embedded", embedded).
		Msg("document summarized")
	return UploadResult{SessionID: sessionID, Summary: summary}, nil
}

// ChatInput is one user turn.
type ChatInput struct {
	Question    string
	SessionID   string
	Personality string
	Research    bool
}

// ChatResult is the outcome of Chat.
type ChatResult struct {
	SessionID string
	Answer    string
}

// Chat answers a question in the context of the session's document summary,
// optional web research and prior turns. The question and answer are
// recorded only when the model answers.
func (s *Service) Chat(ctx context.Context, in ChatInput) (ChatResult, error) {
	sessionID := s.resolve(ctx, in.SessionID, "chat")
	temperature := s.personas.Temperature(in.Personality)
	logger := s.logger.With().Str("session_id", sessionID).Logger()

	snapshot, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		metrics.ChatTurn("failed")
		return ChatResult{}, err
	}

	webContext := ""
	if in.Research && s.researchEnabled {
		webContext = s.research(ctx, in.Question, &logger)
	}

	system := ai.BuildSystemPrompt(snapshot.DocSummary, webContext)
	messages := ai.BuildMessages(system, snapshot.History, in.Question, s.opts.HistoryLimit)

	answer, err := s.respond(ctx, messages, temperature)
	if err != nil {
		metrics.ChatTurn("upstream_error")
		logger.Error().Err(err).Msg("chat model failed")
		return ChatResult{}, fmt.Errorf("%w: %v", ErrUpstreamModel, err)
	}

	if err := s.sessions.AppendMessages(ctx, sessionID, schema.UserMessage(in.Question), answer); err != nil {
		metrics.ChatTurn("failed")
		return ChatResult{}, err
	}

	metrics.ChatTurn("ok")
	logger.Info().
		Str("question", logging.Preview(in.Question, 80)).
		Float32("temperature", temperature).
		Bool("document", snapshot.HasDocument()).
		Bool("web", webContext != "").
		Int("messages", len(messages)).
		Msg("chat turn answered")
	return ChatResult{SessionID: sessionID, Answer: answer.Content}, nil
}

func (s *Service) resolve(ctx context.Context, id, origin string) string {
	sessionID, created := s.sessions.Resolve(ctx, id)
	if created {
		metrics.SessionCreated(origin)
		s.logger.Debug().Str("session_id", sessionID).Str("origin", origin).Msg("session created")
	}
	return sessionID
}

func (s *Service) extract(ctx context.Context, ext string, data []byte) (string, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	start := time.Now()
	text, err := s.extractor.Extract(ctx, ext, data)
	metrics.ObserveUpstream("extractor", start, err == nil)
	return text, err
}

// summarize is not bounded by CallTimeout; the summarizer runs many model
// calls and applies its own per-call deadline.
func (s *Service) summarize(ctx context.Context, chunks []string) (string, error) {
	start := time.Now()
	summary, err := s.summarizer.Summarize(ctx, chunks)
	if err == nil && strings.TrimSpace(summary) == "" {
		err = errors.New("empty summary")
	}
	metrics.ObserveUpstream("summarizer", start, err == nil)
	return summary, err
}

// embed returns the chunk vectors and whether they are usable. Failures are
// logged and absorbed.
func (s *Service) embed(ctx context.Context, chunks []string, logger *zerolog.Logger) ([][]float64, bool) {
	if s.embedder == nil {
		return nil, false
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	start := time.Now()
	vectors, err := s.embedder.EmbedStrings(ctx, chunks)
	if err == nil && len(vectors) != len(chunks) {
		err = fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	metrics.ObserveUpstream("embedder", start, err == nil)
	if err != nil {
		metrics.Degraded("embedding")
		logger.Warn().Err(err).Msg("document embeddings failed, keeping summary only")
		return nil, false
	}
	return vectors, true
}

// research returns a usable web digest or "" when the search failed or had
// nothing to offer.
func (s *Service) research(ctx context.Context, question string, logger *zerolog.Logger) string {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	start := time.Now()
	digest, err := s.researcher.Search(ctx, question)
	metrics.ObserveUpstream("researcher", start, err == nil)
	if err != nil {
		metrics.Degraded("web_research")
		logger.Warn().Err(err).Msg("web research failed, continuing without web context")
		return ""
	}
	if !research.Usable(digest) {
		logger.Debug().Msg("web research returned no usable result")
		return ""
	}
	return digest
}

func (s *Service) respond(ctx context.Context, messages []*schema.Message, temperature float32) (*schema.Message, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	start := time.Now()
	answer, err := s.responder.GenerateResponse(ctx, messages, temperature)
	if err == nil && answer == nil {
		err = errors.New("no answer returned")
	}
	metrics.ObserveUpstream("responder", start, err == nil)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(answer.Content, nil), nil
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}
