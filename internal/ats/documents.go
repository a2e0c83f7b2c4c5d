package ats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	DocumentsPath = "/api/cv/search"
	documentPath  = "/api/cv/%s"

	documentsKey = "documents"
	documentKey  = "document"

	// Max value for limit per page.
	maxPerPage = 100
)

// Document is a read-only snapshot of a résumé record. Typed fields cover the
// top level of the record; Raw keeps the whole record for normalization.
type Document struct {
	ID               string            `json:"id"`
	Status           string            `json:"status,omitempty"`
	RawText          string            `json:"raw_text,omitempty"`
	SignedURL        string            `json:"signed_url,omitempty"`
	OriginalFilePath string            `json:"original_file_path,omitempty"`
	OriginalFilename string            `json:"original_filename,omitempty"`
	CreatedAt        string            `json:"created_at,omitempty"`
	QualityScore     *float64          `json:"quality_score,omitempty"`
	EmbeddingPreview *EmbeddingPreview `json:"embedding_preview,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// EmbeddingPreview is the display-only head of the embedding vector.
type EmbeddingPreview struct {
	Dimension int       `json:"dimension"`
	First5    []float64 `json:"first_5,omitempty"`
}

type document Document

func (d *Document) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*d = Document(doc)
	d.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the record back as it was received.
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	return json.Marshal(document(d))
}

type DocumentPage struct {
	Results []*Document `json:"results"`
	Total   int         `json:"total"`
	Page    int         `json:"page,omitempty"`
	Limit   int         `json:"limit,omitempty"`
}

func (p *DocumentPage) Len() int {
	return len(p.Results)
}

func (p *DocumentPage) IDs() []string {
	ids := make([]string, 0, len(p.Results))
	for _, d := range p.Results {
		ids = append(ids, d.ID)
	}
	return ids
}

func (p *DocumentPage) FindByID(id string) *Document {
	for _, d := range p.Results {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// ListQuery selects a page of documents. A non-blank Q asks the server for
// a similarity-ordered listing of at most Limit documents instead.
type ListQuery struct {
	Page  int    `validate:"gte=1"`
	Limit int    `validate:"gte=1,lte=100"`
	Q     string
}

type DeleteResult struct {
	CVID   string `json:"cv_id"`
	Status string `json:"status"`
}

// List returns one page of documents in server order.
func (c *Client) List(ctx context.Context, page, limit int) (*DocumentPage, error) {
	return c.ListWith(ctx, ListQuery{Page: page, Limit: limit})
}

// ListWith is List with an optional text query.
func (c *Client) ListWith(ctx context.Context, query ListQuery) (*DocumentPage, error) {
	if err := c.validateParams(&query); err != nil {
		return nil, err
	}
	page, limit := query.Page, query.Limit

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if text := strings.TrimSpace(query.Q); text != "" {
		q.Set("q", text)
	}

	var result DocumentPage
	if err := c.getCached(ctx, cacheKey(documentsKey, q), DocumentsPath, q, &result); err != nil {
		return nil, err
	}

	if result.Page == 0 {
		result.Page = page
	}
	if result.Limit == 0 {
		result.Limit = limit
	}

	return &result, nil
}

// ListAll walks pages until total is reached or a page comes back empty.
func (c *Client) ListAll(ctx context.Context, limit int) (*DocumentPage, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}

	response, err := c.List(ctx, 1, limit)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("got documents page", zap.Int("total", response.Total), zap.Int("limit", limit))

	all := &DocumentPage{Results: response.Results, Total: response.Total, Page: 1, Limit: limit}

	for page := 2; all.Len() < response.Total && response.Len() > 0; page++ {
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"fetched (%d) < total (%d)", all.Len(), response.Total),
		))

		response, err = c.List(ctx, page, limit)
		if err != nil {
			return nil, err
		}

		all.Results = append(all.Results, response.Results...)
	}

	return all, nil
}

// Get returns a single document. A missing document matches ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (*Document, error) {
	if id == "" {
		return nil, &ValidationError{Kind: InvalidParams, Field: "id", Message: "document id is required"}
	}

	var doc Document
	path := fmt.Sprintf(documentPath, url.PathEscape(id))
	if err := c.getCached(ctx, cacheKey(documentKey+"/"+id, nil), path, nil, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// Delete removes a document and invalidates cached reads.
func (c *Client) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	if id == "" {
		return nil, &ValidationError{Kind: InvalidParams, Field: "id", Message: "document id is required"}
	}

	var result DeleteResult
	if err := c.deleteJSON(ctx, fmt.Sprintf(documentPath, url.PathEscape(id)), &result); err != nil {
		return nil, err
	}

	c.invalidate(ctx)

	return &result, nil
}
