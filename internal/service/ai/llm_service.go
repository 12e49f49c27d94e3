package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const summaryPrompt = `Write a concise summary of the following:


"{text}"


CONCISE SUMMARY:`

const (
	defaultSummaryMaxTokens = 500
	// defaultReduceBudget bounds the joined partial summaries fed to one
	// reduce call, in characters.
	defaultReduceBudget = 12000
	mapConcurrency      = 4
)

// Options tunes the AI service.
type Options struct {
	SummaryMaxTokens int
	ReduceBudget     int
	// CallTimeout bounds each summarize model call, not the whole
	// map-reduce run. Zero disables it.
	CallTimeout time.Duration
}

// Service wraps the chat model for answering and summarizing.
type Service struct {
	chatModel model.BaseChatModel
	summarize compose.Runnable[map[string]any, *schema.Message]
	opts      Options
	logger    *zerolog.Logger
}

// NewService creates a new AI service instance
func NewService(ctx context.Context, chatModel model.BaseChatModel, opts Options, logger *zerolog.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if opts.SummaryMaxTokens <= 0 {
		opts.SummaryMaxTokens = defaultSummaryMaxTokens
	}
	if opts.ReduceBudget <= 0 {
		opts.ReduceBudget = defaultReduceBudget
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage(summaryPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summarize chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		summarize: runnable,
		opts:      opts,
		logger:    logger,
	}, nil
}

// GenerateResponse sends an assembled conversation at the given temperature.
func (s *Service) GenerateResponse(ctx context.Context, messages []*schema.Message, temperature float32) (*schema.Message, error) {
	response, err := s.chatModel.Generate(ctx, messages, model.WithTemperature(temperature))
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, errors.New("chat model returned no message")
	}

	out := schema.AssistantMessage(strings.TrimSpace(response.Content), nil)
	s.logger.Debug().
		Int("messages", len(messages)).
		Float32("temperature", temperature).
		Int("length", len(out.Content)).
		Msg("generated response")
	return out, nil
}

// Summarize condenses ordered document fragments into one summary using a
// map-reduce pass: each fragment is summarized on its own, then the partial
// summaries are combined. Partials that exceed the reduce budget are
// collapsed in groups first.
func (s *Service) Summarize(ctx context.Context, chunks []string) (string, error) {
	if len(chunks) == 0 {
		return "", errors.New("nothing to summarize")
	}

	partials, err := s.mapSummaries(ctx, chunks)
	if err != nil {
		return "", err
	}
	if len(partials) == 1 {
		return partials[0], nil
	}

	for totalLen(partials) > s.opts.ReduceBudget {
		groups := groupByBudget(partials, s.opts.ReduceBudget)
		if len(groups) == len(partials) {
			break
		}

		collapsed := make([]string, 0, len(groups))
		for _, group := range groups {
			summary, err := s.summarizeText(ctx, strings.Join(group, "\n\n"))
			if err != nil {
				return "", err
			}
			collapsed = append(collapsed, summary)
		}
		s.logger.Debug().Int("from", len(partials)).Int("to", len(collapsed)).Msg("collapsed partial summaries")
		partials = collapsed
	}

	return s.summarizeText(ctx, strings.Join(partials, "\n\n"))
}

func (s *Service) mapSummaries(ctx context.Context, chunks []string) ([]string, error) {
	partials := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mapConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			summary, err := s.summarizeText(gctx, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			partials[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return partials, nil
}

func (s *Service) summarizeText(ctx context.Context, text string) (string, error) {
	if s.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CallTimeout)
		defer cancel()
	}

	msg, err := s.summarize.Invoke(ctx, map[string]any{"text": text},
		compose.WithChatModelOption(
			model.WithTemperature(0),
			model.WithMaxTokens(s.opts.SummaryMaxTokens),
		),
	)
	if err != nil {
		return "", fmt.Errorf("failed to run summarize chain: %w", err)
	}

	summary := ""
	if msg != nil {
		summary = strings.TrimSpace(msg.Content)
	}
	if summary == "" {
		return "", errors.New("model returned an empty summary")
	}
	return summary, nil
}

func totalLen(parts []string) int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	return n
}

// groupByBudget packs consecutive parts into groups whose joined length stays
// within budget. A single oversized part forms its own group.
func groupByBudget(parts []string, budget int) [][]string {
	var (
		groups  [][]string
		current []string
		size    int
	)
	for _, p := range parts {
		if len(current) > 0 && size+len(p) > budget {
			groups = append(groups, current)
			current, size = nil, 0
		}
		current = append(current, p)
		size += len(p)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}
