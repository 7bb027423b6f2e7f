package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/ai/gemini"
	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/requirements"
	"github.com/spigell/interviewer/internal/scoring"
	"github.com/spigell/interviewer/internal/secrets"
	"github.com/spigell/interviewer/internal/store"
)

const (
	strategyJudgment  = "judgment"
	strategyEmbedding = "embedding"
)

// newStore opens the configured backend. The returned close func is never nil.
func newStore(ctx context.Context, cfg *StoreConfig, logger *zap.Logger) (interview.Store, func(), error) {
	noop := func() {}

	switch backend := strings.ToLower(strings.TrimSpace(cfg.Backend)); backend {
	case "", store.BackendFile:
		s, err := store.NewFile(cfg.Dir, logger.Named("store"))
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case store.BackendMemory:
		return store.NewMemory(), noop, nil
	case store.BackendRedis:
		s, err := store.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("closing redis store", zap.Error(err))
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

// newService wires the interview service against Gemini and the configured store.
func newService(ctx context.Context, config *Config, logger *zap.Logger) (*interview.Service, func(), error) {
	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}

	gcfg := config.AI.Gemini
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  gcfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: gcfg.APIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, nil, err
	}

	genLogger := logger.Named("gemini").With(zap.Int("ai_retry_attempts", gcfg.MaxRetries))
	generator, err := gemini.NewGenerator(client, gcfg.Model, gcfg.MaxRetries, genLogger)
	if err != nil {
		return nil, nil, err
	}
	interviewer := gemini.NewInterviewer(generator, genLogger, gcfg.MaxLogLength)

	var scorer scoring.Scorer
	switch strategy := strings.ToLower(strings.TrimSpace(config.Scoring.Strategy)); strategy {
	case "", strategyJudgment:
		scorer = scoring.NewJudgment(interviewer)
	case strategyEmbedding:
		embedder, err := gemini.NewEmbedder(client, gcfg.EmbeddingModel, genLogger)
		if err != nil {
			return nil, nil, err
		}
		scorer = scoring.NewEmbedding(embedder, requirements.New(config.Scoring.Requirements), logger.Named("scoring"))
	default:
		return nil, nil, fmt.Errorf("unsupported scoring strategy: %s", config.Scoring.Strategy)
	}

	sessions, closeStore, err := newStore(ctx, config.Store, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}

	svc, err := interview.New(interview.Config{
		MaxQuestions:     config.Interview.MaxQuestions,
		FollowupEligible: config.Interview.FollowupEligible,
		GatewayTimeout:   config.AI.Timeout,
	}, interview.Deps{
		Store:     sessions,
		Questions: interviewer,
		Followups: interviewer,
		Answers:   interviewer,
		Scorer:    scorer,
		Logger:    logger.Named("interview"),
	})
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("create interview service: %w", err)
	}

	logger.Info("interview service ready",
		zap.String("model", generator.Model()),
		zap.String("scoring", scorer.Name()),
		zap.String("store", config.Store.Backend),
	)

	return svc, closeStore, nil
}
