package ats

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	IngestPath = "/api/cv/ingest"

	// MaxUploadSize is 10 MiB.
	MaxUploadSize int64 = 10 * 1024 * 1024

	defaultSource = "upload"

	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// AcceptedTypes lists the MIME types the ingestion endpoint takes.
var AcceptedTypes = []string{MIMEPDF, MIMEJPEG, MIMEPNG, MIMEDOCX}

// Upload is a candidate file. ContentType and Size are what the
// preconditions are checked against.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	// Source tags where the file came from. Defaults to "upload".
	Source string
}

type IngestResult struct {
	CVID    string `json:"cv_id"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidateUpload checks the type first and the size second.
func ValidateUpload(u *Upload) error {
	if u == nil {
		return &ValidationError{Kind: InvalidParams, Field: "file", Message: "no file provided"}
	}

	if !slices.Contains(AcceptedTypes, u.ContentType) {
		return &ValidationError{Kind: UnsupportedType, Field: "file.type", Value: u.ContentType}
	}

	if u.Size > MaxUploadSize {
		return &ValidationError{Kind: TooLarge, Field: "file.size", Value: strconv.FormatInt(u.Size, 10)}
	}

	return nil
}

// Submit uploads a résumé. The call is made once; a failed call is not retried.
func (c *Client) Submit(ctx context.Context, u *Upload, consent bool) (*IngestResult, error) {
	if err := ValidateUpload(u); err != nil {
		return nil, err
	}

	source := u.Source
	if source == "" {
		source = defaultSource
	}

	fields := map[string]string{
		"source":       source,
		"gdpr_consent": strconv.FormatBool(consent),
	}

	var result IngestResult
	if err := c.postMultipart(ctx, IngestPath, fields, u, &result); err != nil {
		return nil, err
	}

	if result.CVID == "" {
		return nil, fmt.Errorf("ingest %s: server returned no cv_id", u.Name)
	}

	c.logger.Info("document ingested",
		zap.String("cv_id", result.CVID),
		zap.String("file", u.Name),
		zap.String("status", result.Status),
	)

	c.invalidate(ctx)

	return &result, nil
}

// OpenUpload prepares a local file for Submit. The content type comes from the
// file contents; the extension is used only when sniffing is inconclusive.
// The returned closer releases the file.
func OpenUpload(path string) (*Upload, io.Closer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	if stat.IsDir() {
		file.Close()
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("detect type of %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, nil, err
	}

	return &Upload{
		Name:        filepath.Base(path),
		ContentType: contentTypeOf(detected, path),
		Size:        stat.Size(),
		Body:        file,
	}, file, nil
}

func contentTypeOf(detected *mimetype.MIME, path string) string {
	for m := detected; m != nil; m = m.Parent() {
		if slices.Contains(AcceptedTypes, m.String()) {
			return m.String()
		}
	}

	if detected.Is("application/zip") || detected.Is("application/octet-stream") {
		if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
			if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
				return mediaType
			}
		}
	}

	mediaType, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return detected.String()
	}
	return mediaType
}
