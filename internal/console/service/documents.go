package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

const DefaultMaxResults = 5

// AllowedExtensions - форматы, которые принимает индексатор RAG.
var AllowedExtensions = []string{".pdf", ".txt", ".md", ".docx"}

// KnowledgeBase - клиент RAG.
type KnowledgeBase interface {
	Query(ctx context.Context, query string, maxResults int) (*domain.SearchResult, error)
	Upload(ctx context.Context, name string, content io.Reader) (*domain.UploadResult, error)
	Documents(ctx context.Context) (*domain.DocumentList, error)
	DeleteDocument(ctx context.Context, name string) (map[string]any, error)
	DeleteAll(ctx context.Context) (map[string]any, error)
	Stats(ctx context.Context) (map[string]any, error)
}

type DocumentService struct {
	rag    KnowledgeBase
	gate   Gate
	logger *zap.Logger
}

func NewDocumentService(rag KnowledgeBase, gate Gate, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		rag:    rag,
		gate:   gate,
		logger: logger.Named("document-service"),
	}
}

func (s *DocumentService) Search(ctx context.Context, query string, maxResults int) (*domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &domain.ValidationError{Field: "query", Message: "Please enter a search query"}
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if err := s.allow(); err != nil {
		return nil, err
	}
	return s.rag.Query(ctx, query, maxResults)
}

// Upload индексирует один файл. Формат проверяем до сети.
func (s *DocumentService) Upload(ctx context.Context, name string, content io.Reader) (*domain.UploadResult, error) {
	if err := CheckExtension(name); err != nil {
		return nil, err
	}
	if err := s.allow(); err != nil {
		return nil, err
	}

	res, err := s.rag.Upload(ctx, name, content)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &domain.ServiceError{Service: domain.ServiceRAG, Message: "Failed to index: " + name}
	}
	s.logger.Info("document indexed", zap.String("name", name), zap.Int("chunks", res.ChunksIndexed))
	return res, nil
}

func (s *DocumentService) List(ctx context.Context) (*domain.DocumentList, error) {
	return s.rag.Documents(ctx)
}

func (s *DocumentService) Delete(ctx context.Context, name string) (map[string]any, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &domain.ValidationError{Field: "name", Message: "document name is required"}
	}
	resp, err := s.rag.DeleteDocument(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document deleted", zap.String("name", name))
	return resp, nil
}

func (s *DocumentService) Purge(ctx context.Context) (map[string]any, error) {
	resp, err := s.rag.DeleteAll(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("knowledge base purged")
	return resp, nil
}

func (s *DocumentService) Stats(ctx context.Context) (map[string]any, error) {
	return s.rag.Stats(ctx)
}

func (s *DocumentService) allow() error {
	if s.gate == nil {
		return nil
	}
	return s.gate.Allow(domain.ServiceRAG)
}

// CheckExtension - регистр расширения не важен.
func CheckExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return &domain.ValidationError{
		Field:   "file",
		Message: fmt.Sprintf("%s: unsupported format, allowed %s", name, strings.Join(AllowedExtensions, " ")),
	}
}
