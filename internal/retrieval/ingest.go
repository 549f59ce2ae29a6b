package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/google/uuid"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

// Ingestor turns source files into indexed, embedded chunks.
type Ingestor struct {
	store    VectorStore
	embedder Embedder
	chunker  *Chunker
	loader   *file.FileLoader
}

func NewIngestor(store VectorStore, embedder Embedder, chunker *Chunker) (*Ingestor, error) {
	parserExt, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(context.Background(), &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	if chunker == nil {
		chunker = NewChunker(defaultChunkSize, defaultChunkOverlap)
	}
	return &Ingestor{
		store:    store,
		embedder: embedder,
		chunker:  chunker,
		loader:   loader,
	}, nil
}

// IngestFile parses the file at path and indexes its text content.
func (ing *Ingestor) IngestFile(ctx context.Context, path, name, mimeType string) (int64, int, error) {
	docs, err := ing.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return 0, 0, fmt.Errorf("load file: %w", err)
	}
	var sb strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")
	}
	return ing.IngestText(ctx, name, mimeType, sb.String())
}

// IngestText chunks, embeds, and stores raw text as one document.
func (ing *Ingestor) IngestText(ctx context.Context, name, mimeType, text string) (int64, int, error) {
	passages := ing.chunker.Split(text)
	if len(passages) == 0 {
		return 0, 0, errors.New("document has no readable text content")
	}
	vectors, err := ing.embedder.Embed(ctx, passages)
	if err != nil {
		return 0, 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(passages) {
		return 0, 0, fmt.Errorf("embedding count mismatch: want %d, got %d", len(passages), len(vectors))
	}

	docID, err := ing.store.CreateDocument(ctx, name, mimeType)
	if err != nil {
		return 0, 0, err
	}
	chunks := make([]models.Chunk, len(passages))
	for i, content := range passages {
		chunks[i] = models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Content:    content,
			Vector:     vectors[i],
		}
	}
	if err := ing.store.AddChunks(ctx, chunks); err != nil {
		return 0, 0, err
	}
	return docID, len(chunks), nil
}
