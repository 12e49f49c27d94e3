package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/research-assistant/backend/internal/model/persona"
	chatService "github.com/zhouzirui/research-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/research-assistant/backend/internal/service/document"
)

type stubExtractor struct {
	text  string
	err   error
	calls int
}

func (s *stubExtractor) Extract(context.Context, string, []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubSummarizer struct {
	summary string
	err     error
	chunks  []string
	delay   time.Duration
}

func (s *stubSummarizer) Summarize(ctx context.Context, chunks []string) (string, error) {
	s.chunks = chunks
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.summary, s.err
}

type stubEmbedder struct {
	err   error
	short bool
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	n := len(texts)
	if s.short {
		n--
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = []float64{float64(i), 1}
	}
	return out, nil
}

type stubResearcher struct {
	digest string
	err    error
	calls  int
}

func (s *stubResearcher) Search(context.Context, string) (string, error) {
	s.calls++
	return s.digest, s.err
}

type stubResponder struct {
	mu           sync.Mutex
	err          error
	calls        [][]*schema.Message
	temperatures []float32
}

func (s *stubResponder) GenerateResponse(_ context.Context, messages []*schema.Message, temperature float32) (*schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, messages)
	s.temperatures = append(s.temperatures, temperature)
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage("answer to "+messages[len(messages)-1].Content, nil), nil
}

type fixture struct {
	svc        *Service
	sessions   *chatService.Service
	extractor  *stubExtractor
	summarizer *stubSummarizer
	responder  *stubResponder
}

type fixtureOption func(*Deps, *Options)

func withEmbedder(e embedding.Embedder) fixtureOption {
	return func(d *Deps, _ *Options) { d.Embedder = e }
}

func withResearcher(r Researcher) fixtureOption {
	return func(d *Deps, _ *Options) { d.Researcher = r }
}

func withCallTimeout(timeout time.Duration) fixtureOption {
	return func(_ *Deps, o *Options) { o.CallTimeout = timeout }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	splitter, err := document.NewSplitter(1000, 100)
	require.NoError(t, err)

	f := &fixture{
		sessions:   chatService.NewService(),
		extractor:  &stubExtractor{text: strings.Repeat("word ", 600)},
		summarizer: &stubSummarizer{summary: "the summary"},
		responder:  &stubResponder{},
	}
	deps := Deps{
		Sessions:   f.sessions,
		Personas:   persona.NewMemoryStore(persona.Seed()),
		Extractor:  f.extractor,
		Splitter:   splitter,
		Summarizer: f.summarizer,
		Responder:  f.responder,
	}
	var options Options
	for _, opt := range opts {
		opt(&deps, &options)
	}

	f.svc, err = NewService(deps, options, nil)
	require.NoError(t, err)
	return f
}

func (f *fixture) session(t *testing.T, id string) chatSession {
	t.Helper()
	s, err := f.sessions.GetSession(context.Background(), id)
	require.NoError(t, err)
	return chatSession{History: s.History, DocSummary: s.DocSummary, DocChunks: s.DocChunks, DocVectors: s.DocVectors}
}

type chatSession struct {
	History    []*schema.Message
	DocSummary string
	DocChunks  []string
	DocVectors [][]float64
}

func TestSetPersonalityAlwaysCreatesSeededSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.svc.SetPersonality(ctx, "Humorous")
	second := f.svc.SetPersonality(ctx, "Humorous")

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, "humorous", first.Personality)

	s := f.session(t, first.SessionID)
	require.Len(t, s.History, 1)
	assert.Equal(t, schema.System, s.History[0].Role)
	assert.Equal(t, "You are a Humorous assistant.", s.History[0].Content)
}

func TestUploadStoresSummaryChunksAndVectors(t *testing.T) {
	f := newFixture(t, withEmbedder(&stubEmbedder{}))
	f.extractor.text = strings.Repeat("abcdefghi ", 300) // 3000 characters

	res, err := f.svc.Upload(context.Background(), UploadInput{Filename: "paper.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "the summary", res.Summary)
	assert.NotEmpty(t, res.SessionID)

	s := f.session(t, res.SessionID)
	assert.Equal(t, "the summary", s.DocSummary)
	require.NotEmpty(t, s.DocChunks)
	assert.Len(t, s.DocVectors, len(s.DocChunks))
	assert.Equal(t, f.summarizer.chunks, s.DocChunks)
	for _, c := range s.DocChunks {
		assert.LessOrEqual(t, len([]rune(c)), 1000)
	}

	require.Len(t, s.History, 1)
	assert.Equal(t, schema.Assistant, s.History[0].Role)
	assert.Equal(t, "the summary", s.History[0].Content)
}

func TestUploadEmbeddingFailureClearsChunksAndVectors(t *testing.T) {
	for name, embedder := range map[string]*stubEmbedder{
		"error":    {err: errors.New("embedding quota exceeded")},
		"mismatch": {short: true},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, withEmbedder(embedder))

			res, err := f.svc.Upload(context.Background(), UploadInput{Filename: "paper.docx"})
			require.NoError(t, err)

			s := f.session(t, res.SessionID)
			assert.Equal(t, "the summary", s.DocSummary)
			assert.Nil(t, s.DocChunks)
			assert.Nil(t, s.DocVectors)
			assert.Len(t, s.History, 1)
		})
	}
}

func TestUploadWithoutEmbedderKeepsChunksOnly(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Upload(context.Background(), UploadInput{Filename: "paper.doc"})
	require.NoError(t, err)

	s := f.session(t, res.SessionID)
	assert.NotEmpty(t, s.DocChunks)
	assert.Nil(t, s.DocVectors)
}

func TestUploadRejectsUnsupportedExtensionBeforeWork(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Upload(context.Background(), UploadInput{Filename: "notes.txt", SessionID: ""})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.svc.SessionCount())
}

func TestFailedUploadCreatesNoSession(t *testing.T) {
	for name, id := range map[string]string{"absent": "", "unknown": "made-up"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.summarizer.err = errors.New("model down")

			_, err := f.svc.Upload(context.Background(), UploadInput{Filename: "a.pdf", SessionID: id})
			require.ErrorIs(t, err, ErrSummarizationFailed)
			assert.Zero(t, f.svc.SessionCount())
		})
	}
}

func TestUploadSummaryIsNotBoundByCallTimeout(t *testing.T) {
	f := newFixture(t, withCallTimeout(20*time.Millisecond))
	f.summarizer.delay = 100 * time.Millisecond

	res, err := f.svc.Upload(context.Background(), UploadInput{Filename: "long.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "the summary", res.Summary)
	assert.Equal(t, 1, f.svc.SessionCount())
}

func TestUploadFailuresLeaveSessionUntouched(t *testing.T) {
	cases := map[string]struct {
		setup func(f *fixture)
		want  error
	}{
		"extraction": {
			setup: func(f *fixture) { f.extractor.err = errors.New("corrupt file") },
			want:  ErrExtractionFailed,
		},
		"empty": {
			setup: func(f *fixture) { f.extractor.text = " \n\t " },
			want:  ErrEmptyDocument,
		},
		"summarization": {
			setup: func(f *fixture) { f.summarizer.err = errors.New("model down") },
			want:  ErrSummarizationFailed,
		},
		"empty summary": {
			setup: func(f *fixture) { f.summarizer.summary = "  " },
			want:  ErrSummarizationFailed,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, withEmbedder(&stubEmbedder{}))
			ctx := context.Background()

			first, err := f.svc.Upload(ctx, UploadInput{Filename: "a.pdf"})
			require.NoError(t, err)
			before := f.session(t, first.SessionID)

			tc.setup(f)
			_, err = f.svc.Upload(ctx, UploadInput{Filename: "b.pdf", SessionID: first.SessionID})
			require.ErrorIs(t, err, tc.want)

			assert.Equal(t, before, f.session(t, first.SessionID))
		})
	}
}

func TestUploadOverwritesSummaryOnSameSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, UploadInput{Filename: "a.pdf"})
	require.NoError(t, err)

	f.summarizer.summary = "second summary"
	second, err := f.svc.Upload(ctx, UploadInput{Filename: "b.pdf", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	s := f.session(t, first.SessionID)
	assert.Equal(t, "second summary", s.DocSummary)
	require.Len(t, s.History, 2)
	assert.Equal(t, "second summary", s.History[1].Content)
}

func TestChatAppendsAlternatingTurns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seeded := f.svc.SetPersonality(ctx, "friendly")
	const turns = 4
	for i := 0; i < turns; i++ {
		res, err := f.svc.Chat(ctx, ChatInput{Question: fmt.Sprintf("q%d", i), SessionID: seeded.SessionID, Personality: "friendly"})
		require.NoError(t, err)
		assert.Equal(t, seeded.SessionID, res.SessionID)
		assert.Equal(t, fmt.Sprintf("answer to q%d", i), res.Answer)
	}

	s := f.session(t, seeded.SessionID)
	require.Len(t, s.History, 1+2*turns)
	for i := 0; i < turns; i++ {
		user, assistant := s.History[1+2*i], s.History[2+2*i]
		assert.Equal(t, schema.User, user.Role)
		assert.Equal(t, fmt.Sprintf("q%d", i), user.Content)
		assert.Equal(t, schema.Assistant, assistant.Role)
		assert.Equal(t, fmt.Sprintf("answer to q%d", i), assistant.Content)
	}

	// The last call replays seed plus three earlier turns.
	last := f.responder.calls[turns-1]
	assert.Len(t, last, 1+1+2*(turns-1)+1)
}

func TestChatResponderFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seeded := f.svc.SetPersonality(ctx, "factual")
	f.responder.err = errors.New("503 from upstream")

	_, err := f.svc.Chat(ctx, ChatInput{Question: "hello", SessionID: seeded.SessionID})
	require.ErrorIs(t, err, ErrUpstreamModel)
	assert.Contains(t, err.Error(), "503 from upstream")

	s := f.session(t, seeded.SessionID)
	assert.Len(t, s.History, 1)
}

func TestChatComposesDocumentThenWebContext(t *testing.T) {
	researcher := &stubResearcher{digest: "W"}
	f := newFixture(t, withResearcher(researcher))
	ctx := context.Background()

	f.summarizer.summary = "S"
	up, err := f.svc.Upload(ctx, UploadInput{Filename: "a.pdf"})
	require.NoError(t, err)

	_, err = f.svc.Chat(ctx, ChatInput{Question: "what?", SessionID: up.SessionID, Research: true})
	require.NoError(t, err)
	assert.Equal(t, 1, researcher.calls)

	msgs := f.responder.calls[0]
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "You are an AI assistant.\nRelevant document information:\nS\nWeb research information:\nW", msgs[0].Content)
	assert.Equal(t, "S", msgs[1].Content)
	assert.Equal(t, schema.User, msgs[2].Role)
	assert.Equal(t, "what?", msgs[2].Content)
}

func TestChatWithoutContextUsesBasePromptOnly(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Chat(context.Background(), ChatInput{Question: "hi", SessionID: "undefined", Research: true})
	require.NoError(t, err)
	assert.NotEqual(t, "undefined", res.SessionID)

	msgs := f.responder.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "You are an AI assistant.", msgs[0].Content)
	assert.False(t, f.svc.ResearchEnabled())
}

func TestChatDiscardsUnusableOrFailedResearch(t *testing.T) {
	cases := map[string]*stubResearcher{
		"sentinel": {digest: "No good search result found"},
		"unknown":  {digest: "I don't know."},
		"error":    {err: errors.New("timeout")},
	}
	for name, researcher := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, withResearcher(researcher))

			_, err := f.svc.Chat(context.Background(), ChatInput{Question: "q", Research: true})
			require.NoError(t, err)
			assert.Equal(t, 1, researcher.calls)
			assert.Equal(t, "You are an AI assistant.", f.responder.calls[0][0].Content)
		})
	}
}

func TestChatSkipsResearchWhenNotRequested(t *testing.T) {
	researcher := &stubResearcher{digest: "W"}
	f := newFixture(t, withResearcher(researcher))

	_, err := f.svc.Chat(context.Background(), ChatInput{Question: "q"})
	require.NoError(t, err)
	assert.Zero(t, researcher.calls)
}

func TestChatMapsPersonalityToTemperature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, label := range []string{"Factual", "HUMOROUS", "friendly", "unknown-label", ""} {
		_, err := f.svc.Chat(ctx, ChatInput{Question: "q", Personality: label})
		require.NoError(t, err)
	}
	assert.Equal(t, []float32{0, 0.7, 0.5, 0.3, 0.3}, f.responder.temperatures)
}

func TestChatUnknownSessionGetsFreshID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Chat(ctx, ChatInput{Question: "q", SessionID: "made-up"})
	require.NoError(t, err)
	b, err := f.svc.Chat(ctx, ChatInput{Question: "q", SessionID: "made-up"})
	require.NoError(t, err)

	assert.NotEqual(t, "made-up", a.SessionID)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestConcurrentChatsOnOneSessionKeepPairsTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.svc.SetPersonality(ctx, "factual")

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Chat(ctx, ChatInput{Question: fmt.Sprintf("q%d", i), SessionID: seeded.SessionID})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s := f.session(t, seeded.SessionID)
	require.Len(t, s.History, 1+2*turns)
	for i := 1; i < len(s.History); i += 2 {
		assert.Equal(t, schema.User, s.History[i].Role)
		assert.Equal(t, "answer to "+s.History[i].Content, s.History[i+1].Content)
	}
}

func TestNewServiceRequiresEssentialCollaborators(t *testing.T) {
	_, err := NewService(Deps{}, Options{}, nil)
	require.Error(t, err)
}
