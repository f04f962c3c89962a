package connectors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

type retrievedDocument struct {
	Metadata struct {
		Source  string `json:"source"`
		Content string `json:"content"`
	} `json:"metadata"`
	Score float64 `json:"score"`
}

type ragQueryResponse struct {
	Answer             string              `json:"answer"`
	RetrievedDocuments []retrievedDocument `json:"retrieved_documents"`
	Confidence         float64             `json:"confidence"`
	QueryType          string              `json:"query_type"`
}

type uploadResponse struct {
	Success       bool `json:"success"`
	ChunksIndexed int  `json:"chunks_indexed"`
}

type RAGClient struct {
	*baseClient
}

func NewRAGClient(baseURL string, o Options) *RAGClient {
	return &RAGClient{baseClient: newBaseClient(domain.ServiceRAG, baseURL, o)}
}

// Query - поиск по базе знаний с ответом модели.
func (c *RAGClient) Query(ctx context.Context, query string, maxResults int) (*domain.SearchResult, error) {
	body := map[string]any{"query": query, "max_results": maxResults}

	var resp ragQueryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/rag/query", body, &resp, ""); err != nil {
		return nil, err
	}

	res := &domain.SearchResult{
		Query:      query,
		Answer:     resp.Answer,
		Confidence: resp.Confidence,
		QueryType:  resp.QueryType,
		Sources:    make([]domain.Source, 0, len(resp.RetrievedDocuments)),
	}
	for _, d := range resp.RetrievedDocuments {
		src := d.Metadata.Source
		if src == "" {
			src = "Unknown"
		}
		res.Sources = append(res.Sources, domain.Source{Source: src, Content: d.Metadata.Content, Score: d.Score})
	}
	return res, nil
}

// Upload отправляет файл multipart-формой в поле "file".
func (c *RAGClient) Upload(ctx context.Context, name string, content io.Reader) (*domain.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("%s: build form: %w", c.service, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", c.service, name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: build form: %w", c.service, err)
	}

	req := request{
		method:      http.MethodPost,
		path:        "/rag/upload",
		body:        &buf,
		contentType: mw.FormDataContentType(),
		fallback:    "Failed to upload document",
	}
	var resp uploadResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &domain.UploadResult{Name: name, Success: resp.Success, ChunksIndexed: resp.ChunksIndexed}, nil
}

func (c *RAGClient) Documents(ctx context.Context) (*domain.DocumentList, error) {
	var list domain.DocumentList
	if err := c.doJSON(ctx, http.MethodGet, "/rag/documents", nil, &list, ""); err != nil {
		return nil, err
	}
	if list.Sources == nil {
		list.Sources = []string{}
	}
	return &list, nil
}

func (c *RAGClient) DeleteDocument(ctx context.Context, name string) (map[string]any, error) {
	var resp map[string]any
	path := "/rag/documents/" + url.PathEscape(name)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &resp, "Failed to delete document"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *RAGClient) DeleteAll(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.doJSON(ctx, http.MethodDelete, "/rag/documents", nil, &resp, "Failed to delete all documents"); err != nil {
		return nil, err
	}
	return resp, nil
}

// Stats - статистика индекса RAG, форма не фиксирована.
func (c *RAGClient) Stats(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/rag/stats", nil, &resp, ""); err != nil {
		return nil, err
	}
	return resp, nil
}
