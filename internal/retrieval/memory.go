package retrieval

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

// MemoryStore is an in-process VectorStore used by tests and small
// deployments that do not need persistence.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[int64]models.Document
	chunks map[string]models.Chunk
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[int64]models.Document),
		chunks: make(map[string]models.Chunk),
	}
}

func (s *MemoryStore) CreateDocument(ctx context.Context, name, mimeType string) (int64, error) {
	id := atomic.AddInt64(&s.nextID, 1)
	s.mu.Lock()
	s.docs[id] = models.Document{ID: id, Name: name, MimeType: mimeType, CreatedAt: time.Now().UTC()}
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID > docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		results = append(results, SearchResult{
			Chunk:    chunk,
			Document: s.docs[chunk.DocumentID].Name,
			Score:    cosineSimilarity(vector, chunk.Vector),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, documentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[documentID]; !ok {
		return sql.ErrNoRows
	}
	delete(s.docs, documentID)
	for id, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

var _ VectorStore = (*MemoryStore)(nil)
