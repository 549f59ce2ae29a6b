package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

// Assistant is the chat surface the handlers need from the service layer.
type Assistant interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
	StreamChat(ctx context.Context, req models.ChatRequest, send func(models.StreamChunk) error) error
	ListSessions(ctx context.Context) ([]models.Session, error)
	GetSessionWithMessages(ctx context.Context, sessionID int64) (*models.Session, []models.Message, error)
	DeleteSession(ctx context.Context, sessionID int64) error
}

// Ingestor indexes uploaded documents.
type Ingestor interface {
	IngestFile(ctx context.Context, path, name, mimeType string) (int64, int, error)
}

// DocumentStore manages the indexed documents.
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, documentID int64) error
}

// Handler wires HTTP routes to the assistant service and the document index.
type Handler struct {
	assistant Assistant
	ingestor  Ingestor
	documents DocumentStore
	uploadDir string
}

// NewHandler constructs a Handler instance.
func NewHandler(assistant Assistant, ingestor Ingestor, documents DocumentStore, uploadDir string) *Handler {
	return &Handler{
		assistant: assistant,
		ingestor:  ingestor,
		documents: documents,
		uploadDir: uploadDir,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/chat", h.chat)
	api.POST("/chat/stream", h.chatStream)
	api.POST("/documents", h.uploadDocument)
	api.GET("/documents", h.listDocuments)
	api.DELETE("/documents/:document_id", h.deleteDocument)
	api.GET("/sessions", h.listSessions)
	api.GET("/sessions/:session_id/messages", h.getSessionMessages)
	api.DELETE("/sessions/:session_id", h.deleteSession)
}

func (h *Handler) chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.assistant.Chat(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// chatStream answers over newline-delimited JSON: one chunk object per line,
// flushed as it is produced. The final line has "done" set; when the client
// disconnects mid-stream the response simply ends with no partial line.
func (h *Handler) chatStream(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithTimeout(c.Request.Context(), streamTimeout)
	defer cancel()
	writeChunk := func(chunk models.StreamChunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "%s\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.assistant.StreamChat(ctx, req, writeChunk); err != nil {
		if ctx.Err() != nil {
			return
		}
		msg := err.Error()
		if errors.Is(err, sql.ErrNoRows) {
			msg = "session not found"
		}
		_ = writeChunk(models.StreamChunk{Done: true, Error: msg})
	}
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.assistant.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) getSessionMessages(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil || sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	session, messages, err := h.assistant.GetSessionWithMessages(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "messages": messages})
}

func (h *Handler) deleteSession(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil || sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	if err := h.assistant.DeleteSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

const streamTimeout = 2 * time.Minute

const maxUploadBytes = 10 << 20 // 10 MB

var allowedContentTypes = []string{
	"text/plain",
	"text/markdown",
	"text/html",
	"application/pdf",
	"application/json",
}

func isAllowedContentType(ct string) bool {
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(ct, allowed) {
			return true
		}
	}
	return false
}

func (h *Handler) uploadDocument(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	_ = f.Close()
	contentType := http.DetectContentType(buf[:n])
	if !isAllowedContentType(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	filename := filepath.Base(file.Filename)
	destDir, destPath, finalName := h.uniqueFilePath(filename)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create directory failed"})
		return
	}
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}

	docID, chunks, err := h.ingestor.IngestFile(c.Request.Context(), destPath, finalName, contentType)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"document_id": docID,
		"name":        finalName,
		"chunks":      chunks,
		"size":        file.Size,
		"mime":        contentType,
	})
}

func (h *Handler) listDocuments(c *gin.Context) {
	docs, err := h.documents.ListDocuments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) deleteDocument(c *gin.Context) {
	documentID, err := strconv.ParseInt(c.Param("document_id"), 10, 64)
	if err != nil || documentID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}
	if err := h.documents.DeleteDocument(c.Request.Context(), documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) uniqueFilePath(filename string) (string, string, string) {
	destPath := filepath.Join(h.uploadDir, filename)
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		return h.uploadDir, destPath, filename
	}
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for idx := 1; idx <= 1000; idx++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, idx, ext)
		path := filepath.Join(h.uploadDir, candidate)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return h.uploadDir, path, candidate
		}
	}
	fallback := fmt.Sprintf("%s-%d%s", base, time.Now().UnixNano(), ext)
	return h.uploadDir, filepath.Join(h.uploadDir, fallback), fallback
}
