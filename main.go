package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/ryanjzheng/Le-Coach/internal/api"
	"github.com/ryanjzheng/Le-Coach/internal/config"
	"github.com/ryanjzheng/Le-Coach/internal/credentials"
	"github.com/ryanjzheng/Le-Coach/internal/redis"
	"github.com/ryanjzheng/Le-Coach/internal/retrieval"
	"github.com/ryanjzheng/Le-Coach/internal/service/ai"
	"github.com/ryanjzheng/Le-Coach/internal/service/assistant"
	"github.com/ryanjzheng/Le-Coach/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("LECOACH_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("LECOACH_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: sessions, messages, documents, chunks
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Printf("redis unavailable, credential caching disabled: %v", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	providerName := os.Getenv("LECOACH_PROVIDER")
	if providerName == "" {
		providerName = "openai"
	}
	provCfg, ok := cfg.Providers[providerName]
	if !ok {
		log.Fatalf("provider %s not configured", providerName)
	}

	var credProvider credentials.Provider
	if cfg.Credentials.TokenEnv != "" {
		credProvider = credentials.NewEnv(cfg.Credentials.TokenEnv)
	} else {
		credProvider = credentials.NewStatic(provCfg.APIKey)
	}
	if cfg.Credentials.AllowFallback {
		credProvider = credentials.WithFallback(credProvider, cfg.Credentials.FallbackToken)
	}
	if rdb != nil {
		cacheTTL := time.Duration(cfg.Credentials.CacheTTLMin) * time.Minute
		credProvider = credentials.NewCached(credProvider, rdb, cacheTTL)
	}
	token, err := credProvider.Fetch(context.Background())
	if err != nil {
		log.Fatalf("resolve generation credential: %v", err)
	}
	log.Printf("generation credential resolved from %s", token.Source)

	chatModel, err := ai.NewChatModel(context.Background(), providerName, "", token.Value, provCfg)
	if err != nil {
		log.Fatalf("init chat model: %v", err)
	}
	aiService := ai.NewService(chatModel)

	embeddingKey := cfg.Retrieval.EmbeddingAPIKey
	if embeddingKey == "" {
		embeddingKey = token.Value
	}
	embedder, err := retrieval.NewOpenAIEmbedder(embeddingKey, cfg.Retrieval.EmbeddingBaseURL, cfg.Retrieval.EmbeddingModel)
	if err != nil {
		log.Fatalf("init embedder: %v", err)
	}

	store := retrieval.NewSQLStore(db)
	var web retrieval.WebSearcher
	if cfg.Retrieval.WebFallback {
		if ws := retrieval.NewEinoWebSearch(); ws != nil {
			web = ws
		}
	}
	retriever := retrieval.NewRetriever(store, embedder, cfg.Retrieval.TopK, cfg.Retrieval.ScoreThreshold, web)
	ingestor, err := retrieval.NewIngestor(store, embedder, nil)
	if err != nil {
		log.Fatalf("init ingestor: %v", err)
	}

	assistantService := assistant.NewService(db, aiService, retriever, cfg.Prompt, nil)

	uploadDir := cfg.BasicConfig.UploadDir
	if uploadDir == "" {
		uploadDir = "./data/uploads"
	}
	handlers := api.NewHandler(assistantService, ingestor, store, uploadDir)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
