package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/research-assistant/backend/internal/config"
	"github.com/zhouzirui/research-assistant/backend/internal/handler"
	"github.com/zhouzirui/research-assistant/backend/internal/logging"
	"github.com/zhouzirui/research-assistant/backend/internal/metrics"
	"github.com/zhouzirui/research-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/research-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/research-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/research-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/research-assistant/backend/internal/service/document"
	"github.com/zhouzirui/research-assistant/backend/internal/service/research"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log)
	log.Logger = *logger
	metrics.MustRegister()

	// Initialize persona store and session store
	personaStore := persona.NewMemoryStore(persona.Seed())
	sessions := chat.NewService()

	// Initialize AI service
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.AI.Provider).Msg("failed to create chat model")
	}
	aiService, err := ai.NewService(ctx, chatModel, ai.Options{
		SummaryMaxTokens: cfg.AI.SummaryMaxTokens,
		CallTimeout:      cfg.AI.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize AI service")
	}
	logger.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.ModelName()).Msg("AI service initialized")

	var embedder embedding.Embedder
	if cfg.AI.EmbeddingEnabled() {
		embedder, err = cfg.AI.NewEmbedder()
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize embedder, documents will not be embedded")
			embedder = nil
		}
	} else {
		logger.Info().Str("provider", cfg.AI.Provider).Msg("embeddings unavailable for provider, skipping")
	}

	// Initialize web research
	var researcher assistant.Researcher
	if cfg.Research.Enabled {
		serp, err := research.NewSerpAPI(research.Config{
			APIKey:  cfg.Research.APIKey,
			Engine:  cfg.Research.Engine,
			BaseURL: cfg.Research.BaseURL,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize web research, continuing without it")
		} else {
			researcher = serp
			logger.Info().Str("engine", cfg.Research.Engine).Msg("web research enabled")
		}
	} else {
		logger.Info().Msg("SERP_API_KEY not set, web research disabled")
	}

	splitter, err := document.NewSplitter(cfg.Document.ChunkSize, cfg.Document.ChunkOverlap)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid document splitter configuration")
	}

	svc, err := assistant.NewService(assistant.Deps{
		Sessions:   sessions,
		Personas:   personaStore,
		Extractor:  document.NewExtractor(cfg.Document.AntiwordPath),
		Splitter:   splitter,
		Summarizer: aiService,
		Responder:  aiService,
		Embedder:   embedder,
		Researcher: researcher,
	}, assistant.Options{
		CallTimeout:  cfg.AI.Timeout,
		HistoryLimit: cfg.AI.HistoryLimit,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize assistant service")
	}

	router := handler.NewRouter(personaStore, svc, handler.Options{
		MaxUploadBytes: cfg.Document.MaxUploadBytes,
		Health: handler.Health{
			Provider:  cfg.AI.Provider,
			Model:     cfg.AI.ModelName(),
			Research:  svc.ResearchEnabled(),
			Embedding: svc.EmbeddingEnabled(),
		},
	})

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("research assistant backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
