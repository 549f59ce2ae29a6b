package models

import "time"

// Document is a source file ingested into the retrieval index.
type Document struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is one indexed passage of a document together with its embedding.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID int64     `json:"document_id"`
	Content    string    `json:"content"`
	Vector     []float32 `json:"-"`
}
