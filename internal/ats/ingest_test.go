package ats

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/atsctl/internal/cache"
)

func pdfUpload(size int) *Upload {
	return &Upload{
		Name:        "resume.pdf",
		ContentType: MIMEPDF,
		Size:        int64(size),
		Body:        bytes.NewReader(bytes.Repeat([]byte("a"), size)),
	}
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name   string
		upload *Upload
		kind   ValidationKind
		msg    string
	}{
		{
			name:   "text file",
			upload: &Upload{Name: "notes.txt", ContentType: "text/plain", Size: 10},
			kind:   UnsupportedType,
			msg:    "unsupported type: text/plain",
		},
		{
			name:   "eleven megabytes",
			upload: &Upload{Name: "big.pdf", ContentType: MIMEPDF, Size: 11 * 1024 * 1024},
			kind:   TooLarge,
			msg:    "file too large (max 10 MB)",
		},
		{
			name:   "type is checked before size",
			upload: &Upload{Name: "big.txt", ContentType: "text/plain", Size: 11 * 1024 * 1024},
			kind:   UnsupportedType,
			msg:    "unsupported type: text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.upload)

			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.kind, validation.Kind)
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	assert.NoError(t, ValidateUpload(&Upload{ContentType: MIMEDOCX, Size: MaxUploadSize}))
	assert.NoError(t, ValidateUpload(&Upload{ContentType: MIMEPNG, Size: 1}))
	assert.Error(t, ValidateUpload(nil))
}

func TestSubmitRejectsLocallyWithoutRequest(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, `{"cv_id": "x"}`)
	})

	_, err := c.Submit(context.Background(), pdfUpload(int(MaxUploadSize)+1), true)
	require.Error(t, err)
	_, err = c.Submit(context.Background(), &Upload{Name: "a.txt", ContentType: "text/plain", Size: 1, Body: strings.NewReader("a")}, true)
	require.Error(t, err)

	assert.Zero(t, rec.count())
}

func TestSubmitSendsMultipart(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, IngestPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		require.NoError(t, r.ParseMultipartForm(MaxUploadSize))
		assert.Equal(t, "upload", r.FormValue("source"))
		assert.Equal(t, "true", r.FormValue("gdpr_consent"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "resume.pdf", header.Filename)
		assert.Equal(t, MIMEPDF, header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		assert.Len(t, data, 2048)

		writeJSON(w, http.StatusCreated, `{"cv_id": "cv-1", "status": "active", "message": "CV ingested successfully"}`)
	})

	result, err := c.Submit(context.Background(), pdfUpload(2048), true)
	require.NoError(t, err)
	assert.Equal(t, "cv-1", result.CVID)
	assert.Equal(t, "active", result.Status)
	assert.Equal(t, 1, rec.count())
}

func TestSubmitSurfacesServerDetail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"detail": "File too large (max 10 MB)"}`)
	})

	_, err := c.Submit(context.Background(), pdfUpload(16), false)
	require.Error(t, err)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusBadRequest, serverErr.StatusCode)
	assert.Equal(t, "File too large (max 10 MB)", Message(err, "Upload failed"))
}

func TestSubmitRequiresID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, `{"status": "active"}`)
	})

	_, err := c.Submit(context.Background(), pdfUpload(16), false)
	require.ErrorContains(t, err, "no cv_id")
}

func TestSubmitUsesIngestTimeout(t *testing.T) {
	c := New(nil, "")
	assert.Equal(t, IngestTimeout, c.ingestTimeout())

	c.Timeout = 3 * IngestTimeout
	assert.Equal(t, c.Timeout, c.ingestTimeout(), "never shorter than an ordinary call")

	c.IngestTimeout = 0
	assert.Equal(t, IngestTimeout, c.ingestTimeout())
}

func TestSubmitInvalidatesCache(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, `{"cv_id": "cv-1"}`)
	})
	store := cache.NewMemory()
	c.Cache = store
	require.NoError(t, store.Set(context.Background(), "documents:limit=20&page=1", []byte(`{}`), 0))

	_, err := c.Submit(context.Background(), pdfUpload(16), true)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestOpenUpload(t *testing.T) {
	dir := t.TempDir()

	pdfPath := filepath.Join(dir, "scan.bin")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4\n%%EOF\n"), 0o600))

	upload, closer, err := OpenUpload(pdfPath)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, "scan.bin", upload.Name)
	assert.Equal(t, MIMEPDF, upload.ContentType)
	assert.EqualValues(t, 15, upload.Size)

	data, err := io.ReadAll(upload.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "body starts at the beginning")

	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("plain notes"), 0o600))
	upload, closer, err = OpenUpload(txtPath)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, "text/plain", upload.ContentType)

	var validation *ValidationError
	assert.True(t, errors.As(ValidateUpload(upload), &validation))

	_, _, err = OpenUpload(dir)
	assert.Error(t, err)
}
