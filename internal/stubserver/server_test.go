package stubserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/atsctl/internal/ats"
	"github.com/spigell/atsctl/internal/pipeline"
)

func multipartBody(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	require.NoError(t, w.WriteField("source", "upload"))
	require.NoError(t, w.WriteField("gdpr_consent", "true"))
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func do(t *testing.T, s *Server, req *http.Request, target any) int {
	t.Helper()

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if target != nil {
		require.NoError(t, json.Unmarshal(data, target), string(data))
	}
	return resp.StatusCode
}

func ingest(t *testing.T, s *Server, filename, contentType string, content []byte, target any) int {
	t.Helper()
	body, ct := multipartBody(t, filename, contentType, content)
	req := httptest.NewRequest(http.MethodPost, "/api/cv/ingest", body)
	req.Header.Set("Content-Type", ct)
	return do(t, s, req, target)
}

func TestIngestRejectsUnsupportedType(t *testing.T) {
	s := New(Options{})

	var detail Error
	code := ingest(t, s, "notes.txt", "text/plain", []byte("hello"), &detail)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Unsupported type: text/plain", detail.Detail)
	assert.Zero(t, s.Store().Len())
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	s := New(Options{})

	var detail Error
	code := ingest(t, s, "big.pdf", ats.MIMEPDF, make([]byte, ats.MaxUploadSize+1), &detail)
	assert.Equal(t, http.StatusBadRequest, code, "the body limit leaves room for the size check")
	assert.Equal(t, "File too large (max 10 MB)", detail.Detail)
	assert.Zero(t, s.Store().Len())
}

func TestIngestRejectsUnreadablePDF(t *testing.T) {
	s := New(Options{})

	var detail Error
	code := ingest(t, s, "scan.pdf", ats.MIMEPDF, []byte("%PDF-1.4\n%%EOF"), &detail)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, detail.Detail, "no text layer found")
}

func TestIngestListGetDelete(t *testing.T) {
	s := New(Options{})

	var created ats.IngestResult
	code := ingest(t, s, "john.pdf", ats.MIMEPDF, pipeline.BuildPDF(samples[0].text, pipeline.PDFOptions{}), &created)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, created.CVID)
	assert.Equal(t, "active", created.Status)

	var page ats.DocumentPage
	code = do(t, s, httptest.NewRequest(http.MethodGet, "/api/cv/search?page=1&limit=50", nil), &page)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, []string{created.CVID}, page.IDs())

	var doc ats.Document
	code = do(t, s, httptest.NewRequest(http.MethodGet, "/api/cv/"+created.CVID, nil), &doc)
	require.Equal(t, http.StatusOK, code)
	view := ats.Normalize(&doc)
	assert.Equal(t, "John Doe", view.DisplayName())
	assert.Equal(t, ats.StatusActive, view.Status)
	assert.Equal(t, "john.pdf", view.Filename)
	require.NotNil(t, view.Embedding)
	assert.Len(t, view.Embedding.First5, 5)

	code = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/cv/"+created.CVID, nil), nil)
	require.Equal(t, http.StatusOK, code)

	var detail Error
	code = do(t, s, httptest.NewRequest(http.MethodGet, "/api/cv/"+created.CVID, nil), &detail)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "CV not found", detail.Detail)
}

func TestSearchValidatesPaging(t *testing.T) {
	s := New(Options{})

	var detail Error
	code := do(t, s, httptest.NewRequest(http.MethodGet, "/api/cv/search?page=0", nil), &detail)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.NotEmpty(t, detail.Detail)
}

func TestDemoLoad(t *testing.T) {
	for _, usePDFs := range []bool{false, true} {
		t.Run(fmt.Sprintf("use_pdfs=%t", usePDFs), func(t *testing.T) {
			s := New(Options{})

			var report ats.BootstrapReport
			code := do(t, s, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/demo/load?use_pdfs=%t", usePDFs), nil), &report)
			require.Equal(t, http.StatusOK, code)

			assert.Equal(t, 4, report.Total)
			assert.Len(t, report.CVIDs, 4)
			require.Len(t, report.Steps, 4)
			assert.Nil(t, report.Failures())
			for i, entry := range report.Steps {
				assert.Equal(t, i+1, entry.CVIndex)
				assert.Equal(t, ats.OutcomeSucceeded, entry.Outcome())

				stages := make([]ats.Stage, 0, len(entry.Steps))
				for _, step := range entry.Steps {
					stages = append(stages, step.Stage())
				}
				assert.Equal(t, []ats.Stage{ats.StageOCR, ats.StageStructuring, ats.StageEmbedding, ats.StageStorage}, stages)
			}

			if usePDFs {
				assert.Equal(t, "resume_john_doe.pdf", report.Steps[0].Filename)
				assert.Equal(t, ats.MIMEPDF, report.Steps[0].Steps[0].Note)
			} else {
				assert.Equal(t, "Text input", report.Steps[0].Steps[0].Note)
			}

			var status ats.DemoStatus
			do(t, s, httptest.NewRequest(http.MethodGet, "/api/demo/status", nil), &status)
			assert.Equal(t, 4, status.DemoCount)
		})
	}
}

func TestDemoRecordsAlternateShapes(t *testing.T) {
	s := New(Options{})
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/demo/load", nil), nil)

	var raw struct {
		Results []map[string]json.RawMessage `json:"results"`
	}
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/cv/search", nil), &raw)
	require.Len(t, raw.Results, 4)

	nested, flat := 0, 0
	for _, r := range raw.Results {
		if _, ok := r["structured_data"]; ok {
			nested++
		}
		if _, ok := r["candidate_info"]; ok {
			flat++
		}
	}
	assert.Equal(t, 2, nested)
	assert.Equal(t, 2, flat)

	var page ats.DocumentPage
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/cv/search", nil), &page)
	names := map[string]bool{}
	for _, v := range ats.NormalizeAll(page.Results) {
		names[v.DisplayName()] = true
		assert.NotEmpty(t, v.Skills, v.DisplayName())
	}
	assert.Equal(t, map[string]bool{"John Doe": true, "Marie Dupont": true, "Alex Smith": true, "Carlos García": true}, names)
}

func TestSemanticMatching(t *testing.T) {
	s := New(Options{})
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/demo/load", nil), nil)

	var detail Error
	code := do(t, s, httptest.NewRequest(http.MethodPost, "/api/matching/semantic?job_description=+", nil), &detail)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	q := url.Values{}
	q.Set("job_description", "Java Spring developer, SQL, Agile team lead in Paris")
	q.Set("top_n", "2")
	q.Add("required_skills", "Java")

	var outcome ats.SearchOutcome
	code = do(t, s, httptest.NewRequest(http.MethodPost, "/api/matching/semantic?"+q.Encode(), nil), &outcome)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, outcome.Results)
	assert.LessOrEqual(t, len(outcome.Results), 2)
	assert.Equal(t, len(outcome.Results), outcome.Total)
	assert.Equal(t, "Marie Dupont", ats.Normalize(outcome.Results[0].Document).DisplayName())
	for i := 1; i < len(outcome.Results); i++ {
		assert.GreaterOrEqual(t, outcome.Results[i-1].SimilarityScore, outcome.Results[i].SimilarityScore)
	}
	for _, r := range outcome.Results {
		assert.True(t, r.SimilarityScore >= 0 && r.SimilarityScore <= 1)
	}
}

func TestSearchWithTextQuery(t *testing.T) {
	s := New(Options{})
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/demo/load", nil), nil)

	q := url.Values{}
	q.Set("q", "Java Spring developer, SQL, Agile team lead in Paris")
	q.Set("limit", "2")

	var page ats.DocumentPage
	code := do(t, s, httptest.NewRequest(http.MethodGet, "/api/cv/search?"+q.Encode(), nil), &page)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, page.Results)
	assert.LessOrEqual(t, page.Len(), 2)
	assert.Equal(t, page.Len(), page.Total)
	assert.Equal(t, "Marie Dupont", ats.Normalize(page.Results[0]).DisplayName())

	code = do(t, s, httptest.NewRequest(http.MethodGet, "/api/cv/search?q=+&limit=50", nil), &page)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4, page.Total)
}

func TestScoring(t *testing.T) {
	s := New(Options{})

	var report ats.BootstrapReport
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/demo/load", nil), &report)

	body := strings.NewReader(fmt.Sprintf(`{"cv_ids": [%q, %q, "missing"]}`, report.CVIDs[0], report.CVIDs[2]))
	req := httptest.NewRequest(http.MethodPost, "/api/scoring/candidates?job_id=job-java-lead", body)
	req.Header.Set("Content-Type", "application/json")

	var response struct {
		Results []ats.CandidateScore `json:"results"`
		Total   int                  `json:"total"`
	}
	code := do(t, s, req, &response)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, response.Results, 2)
	assert.Equal(t, 2, response.Total)
	assert.GreaterOrEqual(t, response.Results[0].Score, response.Results[1].Score)

	top := response.Results[0]
	assert.Equal(t, report.CVIDs[0], top.CVID)
	assert.InDelta(t, top.Score, top.Breakdown.Skills+top.Breakdown.Experience+top.Breakdown.Education+top.Breakdown.Quality, 0.02)
}

func TestJobOffers(t *testing.T) {
	s := New(Options{})

	var response struct {
		JobOffers []ats.JobOffer `json:"job_offers"`
	}
	code := do(t, s, httptest.NewRequest(http.MethodGet, "/api/demo/job-offers", nil), &response)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, response.JobOffers, 3)
	assert.Contains(t, response.JobOffers[0].Query(), "Required skills: Python")
}

func TestDisabledStages(t *testing.T) {
	s := New(Options{DisabledStages: []string{"LLM"}})

	stages := s.Stages()
	require.Len(t, stages, 4)
	for _, stage := range stages {
		if stage.Name == "LLM" {
			assert.False(t, stage.Enabled)
			assert.Equal(t, "disabled by configuration", stage.Reason)
			continue
		}
		assert.True(t, stage.Enabled, stage.Name)
	}
}
