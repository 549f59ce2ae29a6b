package retrieval

import (
	"context"
	"fmt"
	"log"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

// Retriever embeds the query, searches the index, and filters by score. When
// the index yields nothing and a web searcher is configured, the web result is
// returned as a single unscored passage.
type Retriever struct {
	store          VectorStore
	embedder       Embedder
	topK           int
	scoreThreshold float32
	web            WebSearcher
}

func NewRetriever(store VectorStore, embedder Embedder, topK int, scoreThreshold float32, web WebSearcher) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{
		store:          store,
		embedder:       embedder,
		topK:           topK,
		scoreThreshold: scoreThreshold,
		web:            web,
	}
}

// Retrieve returns the passages most similar to the query. topK overrides the
// configured default when positive.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = r.topK
	}
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	results, err := r.store.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if r.scoreThreshold > 0 {
		filtered := results[:0]
		for _, res := range results {
			if res.Score >= r.scoreThreshold {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}
	if len(results) > 0 {
		return results, nil
	}

	if r.web != nil {
		text, err := r.web.Search(ctx, query)
		if err != nil {
			log.Printf("web search fallback failed: %v", err)
			return nil, nil
		}
		return []SearchResult{{Document: "web", Chunk: models.Chunk{Content: text}}}, nil
	}
	return nil, nil
}
