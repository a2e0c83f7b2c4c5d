package ats

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/spigell/atsctl/internal/cache"
)

const partialBatch = `{
	"message": "Demo data loaded",
	"cv_ids": ["id-1", "id-3"],
	"total": 3,
	"steps": [
		{"cv_index": 1, "cv_id": "id-1", "steps": [
			{"name": "OCR", "status": "completed", "note": "Text input"},
			{"name": "LLM", "status": "partial", "note": "groq"},
			{"name": "Embedding", "status": "completed", "dim": 384},
			{"name": "Storage", "status": "completed"}
		]},
		{"cv_index": 2, "cv_id": "id-2", "error": "ocr failed", "steps": [
			{"name": "OCR", "status": "failed"}
		]},
		{"cv_index": 3, "cv_id": "id-3", "steps": [
			{"name": "OCR", "status": "completed"},
			{"name": "LLM", "status": "completed"},
			{"name": "Embedding", "status": "pending"}
		]}
	]
}`

func TestLoadSamplesReportsEachDocument(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DemoLoadPath, r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("use_pdfs"))
		writeJSON(w, http.StatusOK, partialBatch)
	})

	report, err := c.LoadSamples(context.Background(), false)
	require.NoError(t, err, "a partial batch is still a successful call")

	require.Len(t, report.Steps, 3)
	assert.Equal(t, OutcomeSucceeded, report.Steps[0].Outcome())
	assert.Equal(t, OutcomeFailed, report.Steps[1].Outcome())
	assert.Equal(t, OutcomePending, report.Steps[2].Outcome())

	assert.Equal(t, 1, report.Count(OutcomeSucceeded))
	assert.Equal(t, 1, report.Count(OutcomeFailed))
	assert.Equal(t, "ocr failed", report.Steps[1].FailureReason())
	assert.Equal(t, 384, report.Steps[0].Steps[2].Dim)

	failures := multierr.Errors(report.Failures())
	require.Len(t, failures, 1)
	assert.EqualError(t, failures[0], "cv 2 (id-2): ocr failed")
}

func TestPipelineStepStage(t *testing.T) {
	tests := map[string]Stage{
		"OCR":          StageOCR,
		"Text extract": StageOCR,
		"LLM":          StageStructuring,
		"Structuring":  StageStructuring,
		"Embedding":    StageEmbedding,
		"Storage":      StageStorage,
		"Save to DB":   StageStorage,
		"Notify":       StageOther,
	}
	for name, want := range tests {
		assert.Equal(t, want, PipelineStep{Name: name}.Stage(), name)
	}
}

func TestFailureReasonFromStepNote(t *testing.T) {
	report := PipelineStepReport{CVIndex: 4, Steps: []PipelineStep{
		{Name: "OCR", Status: "completed"},
		{Name: "Embedding", Status: "error", Note: "model offline"},
	}}
	assert.Equal(t, OutcomeFailed, report.Outcome())
	assert.Equal(t, "Embedding: model offline", report.FailureReason())

	empty := PipelineStepReport{}
	assert.Equal(t, OutcomePending, empty.Outcome())
}

func TestLoadSamplesRejectsConcurrentCall(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		writeJSON(w, http.StatusOK, `{"total": 0, "steps": []}`)
	})

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = c.LoadSamples(context.Background(), true)
	}()

	<-started
	_, err := c.LoadSamples(context.Background(), true)
	require.ErrorIs(t, err, ErrBootstrapInFlight)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, 1, rec.count())
}

func TestLoadSamplesInvalidatesCache(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, partialBatch)
	})
	store := cache.NewMemory()
	c.Cache = store
	require.NoError(t, store.Set(context.Background(), "job-offers", []byte(`{}`), 0))

	_, err := c.LoadSamples(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestLoadSamplesKeepsServerFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"detail": "database unavailable"}`)
	})

	_, err := c.LoadSamples(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, "database unavailable", Message(err, "Demo load failed"))

	// The guard is released after a failure.
	_, err = c.LoadSamples(context.Background(), false)
	assert.NotErrorIs(t, err, ErrBootstrapInFlight)
}

func TestJobOffers(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, JobOffersPath, r.URL.Path)
		writeJSON(w, http.StatusOK, `{"job_offers": [
			{"id": "j1", "title": "Backend Engineer", "description": "Build APIs", "required_skills": ["Go", "SQL"]},
			{"id": "j2", "title": "Designer", "description": ""}
		]}`)
	})
	c.Cache = cache.NewMemory()

	offers, err := c.JobOffers(context.Background())
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "Backend Engineer\nBuild APIs\nRequired skills: Go, SQL", offers[0].Query())
	assert.Equal(t, "Designer", offers[1].Query())

	_, err = c.JobOffers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count())

	assert.Equal(t, "j2", FindJobOffer(offers, "j2").ID)
	assert.Nil(t, FindJobOffer(offers, "nope"))
}
