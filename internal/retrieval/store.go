package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

// SearchResult is one scored passage from the index.
type SearchResult struct {
	Chunk    models.Chunk
	Document string
	Score    float32
}

// VectorStore persists document chunks and answers similarity queries.
type VectorStore interface {
	CreateDocument(ctx context.Context, name, mimeType string) (int64, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	AddChunks(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	DeleteDocument(ctx context.Context, documentID int64) error
	Count(ctx context.Context) (int, error)
}

// SQLStore keeps the index in the service database (sqlite or mysql) with
// embeddings stored as little-endian float32 blobs. Similarity is computed in
// process; the expected corpus is small enough that a linear scan is fine.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) CreateDocument(ctx context.Context, name, mimeType string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (name, mime_type, created_at) VALUES (?, ?, ?)`,
		name, mimeType, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("document id: %w", err)
	}
	return id, nil
}

func (s *SQLStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, mime_type, created_at FROM documents ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.MimeType, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLStore) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, content, embedding) VALUES (?, ?, ?, ?)`,
			chunk.ID, chunk.DocumentID, chunk.Content, encodeVector(chunk.Vector),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

func (s *SQLStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.content, c.embedding, d.name
		 FROM chunks c JOIN documents d ON d.id = c.document_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("scan index: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			chunk models.Chunk
			blob  []byte
			doc   string
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &blob, &doc); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Vector = decodeVector(blob)
		results = append(results, SearchResult{
			Chunk:    chunk,
			Document: doc,
			Score:    cosineSimilarity(vector, chunk.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *SQLStore) DeleteDocument(ctx context.Context, documentID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete chunks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("document rows affected: %w", err)
	}
	if affected == 0 {
		tx.Rollback()
		return sql.ErrNoRows
	}
	return tx.Commit()
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ VectorStore = (*SQLStore)(nil)
