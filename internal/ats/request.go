package ats

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/cache"
	"github.com/spigell/atsctl/internal/logger"
)

const (
	contentType    = "application/json"
	acceptEncoding = "gzip"
	requestIDKey   = "X-Request-ID"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(c.APIURL, "/"), path)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set(requestIDKey, uuid.NewString())

	return req
}

// do sends the request under the given timeout and returns the decoded body
// of a 2xx response. Anything else becomes a TransportError or ServerError.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, bodyType string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	if bodyType != "" {
		req.Header.Set("Content-Type", bodyType)
	}
	if len(q) > 0 {
		req.URL.RawQuery = q.Encode()
	}

	log := logger.WithFields(c.logger, logger.RequestFields(method, req.URL.String(), req.Header.Get(requestIDKey))...)
	log.Debug("make request", zap.Duration("timeout", timeout))

	started := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Debug("request failed", zap.Error(err))
		return nil, &TransportError{Op: fmt.Sprintf("%s %s", method, path), Err: err}
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &TransportError{Op: fmt.Sprintf("%s %s", method, path), Err: err}
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("%s %s", method, path), Err: err}
	}

	log.Debug("got response",
		zap.Int(logger.FieldStatus, resp.StatusCode),
		zap.Duration(logger.FieldDuration, time.Since(started)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     parseDetail(data),
		}
	}

	return data, nil
}

func decode(data []byte, target any) error {
	if target == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	data, err := c.do(ctx, http.MethodGet, path, q, nil, "", c.timeout())
	if err != nil {
		return err
	}
	return decode(data, target)
}

// getCached serves a GET from Cache when possible and fills it otherwise.
// Cache failures are logged and never fail the call.
func (c *Client) getCached(ctx context.Context, key, path string, q url.Values, target any) error {
	if c.Cache != nil {
		data, ok, err := c.Cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("reading query cache", zap.String("key", key), zap.Error(err))
		case ok:
			c.logger.Debug("query cache hit", zap.String("key", key))
			return decode(data, target)
		}
	}

	data, err := c.do(ctx, http.MethodGet, path, q, nil, "", c.timeout())
	if err != nil {
		return err
	}

	if c.Cache != nil {
		if err := c.Cache.Set(ctx, key, data, c.CacheTTL); err != nil {
			c.logger.Warn("writing query cache", zap.String("key", key), zap.Error(err))
		}
	}

	return decode(data, target)
}

// invalidate drops every cached read after a successful write.
func (c *Client) invalidate(ctx context.Context) {
	if c.Cache == nil {
		return
	}
	if err := c.Cache.Invalidate(ctx); err != nil {
		c.logger.Warn("invalidating query cache", zap.Error(err))
		return
	}
	c.logger.Debug("query cache invalidated")
}

func (c *Client) postQuery(ctx context.Context, path string, q url.Values, target any) error {
	data, err := c.do(ctx, http.MethodPost, path, q, nil, "", c.timeout())
	if err != nil {
		return err
	}
	return decode(data, target)
}

func (c *Client) postJSON(ctx context.Context, path string, q url.Values, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, path, q, bytes.NewReader(body), contentType, c.timeout())
	if err != nil {
		return err
	}
	return decode(data, target)
}

func (c *Client) deleteJSON(ctx context.Context, path string, target any) error {
	data, err := c.do(ctx, http.MethodDelete, path, nil, nil, "", c.timeout())
	if err != nil {
		return err
	}
	return decode(data, target)
}

// postMultipart sends the form fields and the file as one multipart body
// under the ingestion timeout.
func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, upload *Upload, target any) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(upload.Name)))
	header.Set("Content-Type", upload.ContentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, upload.Body); err != nil {
		return fmt.Errorf("read %s: %w", upload.Name, err)
	}

	for key, val := range fields {
		field, err := w.CreateFormField(key)
		if err != nil {
			return err
		}
		if _, err = io.Copy(field, strings.NewReader(val)); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	data, err := c.do(ctx, http.MethodPost, path, nil, &b, w.FormDataContentType(), c.ingestTimeout())
	if err != nil {
		return err
	}
	return decode(data, target)
}

func cacheKey(op string, q url.Values) string {
	return cache.Key(op, q)
}
