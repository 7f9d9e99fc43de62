package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/tafsirnet/internal/adapter/auth"
	"github.com/eslsoft/tafsirnet/internal/adapter/cache"
	"github.com/eslsoft/tafsirnet/internal/adapter/llm"
	adapterrepo "github.com/eslsoft/tafsirnet/internal/adapter/repository"
	"github.com/eslsoft/tafsirnet/internal/adapter/rest"
	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/corpus"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/database"
	"github.com/eslsoft/tafsirnet/internal/repository"
	"github.com/eslsoft/tafsirnet/internal/usecase"
)

const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourceDatabase = "database"
)

// ProvideCorpusStore opens the corpus database when the corpus lives there.
// Other sources run without persistence and get a nil store.
func ProvideCorpusStore(cfg *config.Config) (repository.CorpusStore, func(), error) {
	if !strings.EqualFold(cfg.Corpus.Source, SourceDatabase) {
		return nil, func() {}, nil
	}
	db, dialect, cleanup, err := database.NewConnection(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open corpus database: %w", err)
	}
	store := adapterrepo.NewSQLStore(db, dialect, cleanup)
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// ProvideCorpus loads the startup corpus from the configured source.
func ProvideCorpus(cfg *config.Config, store repository.CorpusStore) ([]*entity.CommentaryEntry, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Corpus.Source)) {
	case SourceEmbedded, "":
		return corpus.Seed()
	case SourceFile:
		if strings.TrimSpace(cfg.Corpus.Path) == "" {
			return nil, errors.New("corpus.path is required for the file source")
		}
		return corpus.LoadFile(cfg.Corpus.Path)
	case SourceDatabase:
		if store == nil {
			return nil, errors.New("corpus store is not open")
		}
		return store.LoadAll(context.Background())
	default:
		return nil, fmt.Errorf("unsupported corpus source %q", cfg.Corpus.Source)
	}
}

// ProvideLLMClient returns nil when no API key is configured.
func ProvideLLMClient(cfg *config.Config, logger *logrus.Logger) *llm.Client {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Info("llm.api_key is empty, explanation generation is disabled")
		return nil
	}
	return llm.NewClient(llm.Options{
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		MaxTokens:     cfg.LLM.MaxTokens,
		MaxRetries:    cfg.LLM.MaxRetries,
		RatePerSecond: cfg.LLM.RatePerSecond,
		Timeout:       cfg.LLM.Timeout,
		SpeechModel:   cfg.Speech.Model,
		Voice:         cfg.Speech.Voice,
	}, logger)
}

// ProvideResponseCache builds the configured response cache.
func ProvideResponseCache(cfg *config.Config, logger *logrus.Logger) (usecase.ResponseCache, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Backend)) {
	case "memory", "":
		return cache.NewMemory(cfg.Cache.TTL), func() {}, nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		c := cache.NewRedis(rdb, cfg.Cache.TTL, logger)
		return c, func() { _ = c.Close() }, nil
	case "none", "off":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
}

// ProvideAuthorizer returns nil when the access gate is disabled.
func ProvideAuthorizer(cfg *config.Config) (rest.Authorizer, error) {
	if !cfg.Auth.Enabled {
		return nil, nil
	}
	gate, err := auth.NewGate(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}
	return gate, nil
}

// ProvideTafsirUsecase assembles the usecase. A nil client leaves generation
// and speech unconfigured.
func ProvideTafsirUsecase(index *adapterrepo.VerseIndex, store repository.CorpusStore, client *llm.Client, responses usecase.ResponseCache) (usecase.TafsirUsecase, error) {
	deps := usecase.TafsirDeps{
		Repo:  index,
		Store: store,
		Cache: responses,
	}
	if client != nil {
		deps.Generator = client
		deps.Synthesizer = client
	}
	return usecase.NewTafsirUsecase(deps)
}
