package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"rulesbot/internal/chunker"
	"rulesbot/internal/config"
	"rulesbot/internal/database"
	"rulesbot/internal/embedding"
	"rulesbot/internal/ingest"
	"rulesbot/internal/llm"
	"rulesbot/internal/qa"
	"rulesbot/internal/retriever"
	"rulesbot/internal/vectorindex"
)

// appContext wires the configured services together for one command run.
type appContext struct {
	Config config.Config
	DB     *database.DB

	Embedder  embedding.Embedder
	LLM       llm.Client
	BlobStore vectorindex.BlobStore

	redisClient *redis.Client
}

func newAppContext(envFile string) (*appContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	app := &appContext{Config: cfg, DB: db}

	switch cfg.EmbeddingProvider {
	case config.ProviderOllama:
		app.Embedder, err = embedding.NewOllamaEmbedder(cfg.OllamaHost, cfg.OllamaEmbeddingModel)
		if err != nil {
			db.Close()
			return nil, err
		}
	case config.ProviderOpenAI:
		app.Embedder = embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIEmbeddingModel)
	}

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		app.LLM, err = llm.NewOllama(cfg.OllamaHost, cfg.OllamaModel)
		if err != nil {
			db.Close()
			return nil, err
		}
	case config.ProviderOpenAI:
		app.LLM = llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	switch cfg.IndexStore {
	case config.IndexStoreFile:
		app.BlobStore = vectorindex.NewFileStore(cfg.IndexDir)
	case config.IndexStorePostgres:
		app.BlobStore = db.IndexBlobs()
	case config.IndexStoreRedis:
		app.redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		app.BlobStore = vectorindex.NewRedisStore(app.redisClient, "")
	}

	return app, nil
}

func (a *appContext) Close() {
	if a.redisClient != nil {
		a.redisClient.Close()
	}
	a.DB.Close()
}

func (a *appContext) index(gameID int64) *vectorindex.Index {
	return vectorindex.New(gameID, a.Embedder, a.BlobStore)
}

func (a *appContext) chunker() (*chunker.Chunker, error) {
	var opts []chunker.Option
	if a.Config.TokenEncoding != "" {
		length, err := chunker.TokenLength(a.Config.TokenEncoding)
		if err != nil {
			return nil, fmt.Errorf("invalid token encoding: %w", err)
		}
		opts = append(opts, chunker.WithLengthFunc(length))
	}
	return chunker.New(a.Config.ChunkSize, a.Config.ChunkOverlap, opts...), nil
}

func (a *appContext) ingestService() (*ingest.Service, error) {
	c, err := a.chunker()
	if err != nil {
		return nil, err
	}
	return ingest.NewService(a.DB, a.index, ingest.WithChunker(c)), nil
}

func (a *appContext) qaService() *qa.Service {
	retrievers := func(gameID int64) qa.Retriever {
		return retriever.New(a.index(gameID), a.Config.RetrieverK)
	}
	return qa.NewService(a.LLM, a.DB, retrievers,
		qa.WithHistoryWindow(a.Config.ChatHistoryWindow))
}
