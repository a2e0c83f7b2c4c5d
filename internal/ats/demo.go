package ats

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	DemoLoadPath   = "/api/demo/load"
	DemoStatusPath = "/api/demo/status"
	JobOffersPath  = "/api/demo/job-offers"

	jobOffersKey = "job-offers"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Stage is the pipeline stage a step belongs to.
type Stage string

const (
	StageOCR         Stage = "ocr"
	StageStructuring Stage = "structuring"
	StageEmbedding   Stage = "embedding"
	StageStorage     Stage = "storage"
	StageOther       Stage = "other"
)

type PipelineStep struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Note   string     `json:"note,omitempty"`
	Dim    int        `json:"dim,omitempty"`
}

// State folds the raw step status into pending, completed or failed.
// "partial" means the stage produced a usable but incomplete result.
func (s PipelineStep) State() StepStatus {
	switch strings.ToLower(strings.TrimSpace(string(s.Status))) {
	case "completed", "done", "success", "partial":
		return StepCompleted
	case "failed", "error":
		return StepFailed
	default:
		return StepPending
	}
}

func (s PipelineStep) Stage() Stage {
	name := strings.ToLower(s.Name)
	switch {
	case strings.Contains(name, "ocr"), strings.Contains(name, "extract"):
		return StageOCR
	case strings.Contains(name, "llm"), strings.Contains(name, "struct"):
		return StageStructuring
	case strings.Contains(name, "embed"):
		return StageEmbedding
	case strings.Contains(name, "stor"), strings.Contains(name, "save"), strings.Contains(name, "persist"):
		return StageStorage
	default:
		return StageOther
	}
}

// PipelineStepReport is the per-document trace of one bootstrap.
type PipelineStepReport struct {
	CVIndex  int            `json:"cv_index"`
	CVID     string         `json:"cv_id,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Error    string         `json:"error,omitempty"`
	Steps    []PipelineStep `json:"steps"`
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
)

// Outcome is decided from this report alone.
func (r *PipelineStepReport) Outcome() Outcome {
	if strings.TrimSpace(r.Error) != "" {
		return OutcomeFailed
	}

	pending := len(r.Steps) == 0
	for _, step := range r.Steps {
		switch step.State() {
		case StepFailed:
			return OutcomeFailed
		case StepPending:
			pending = true
		}
	}

	if pending {
		return OutcomePending
	}
	return OutcomeSucceeded
}

// FailureReason is the per-document error, or the note of the first failed step.
func (r *PipelineStepReport) FailureReason() string {
	if reason := strings.TrimSpace(r.Error); reason != "" {
		return reason
	}
	for _, step := range r.Steps {
		if step.State() == StepFailed {
			if step.Note != "" {
				return fmt.Sprintf("%s: %s", step.Name, step.Note)
			}
			return fmt.Sprintf("%s failed", step.Name)
		}
	}
	return ""
}

type BootstrapReport struct {
	Message string               `json:"message,omitempty"`
	CVIDs   []string             `json:"cv_ids,omitempty"`
	Total   int                  `json:"total"`
	Steps   []PipelineStepReport `json:"steps"`
}

func (b *BootstrapReport) Count(outcome Outcome) int {
	n := 0
	for i := range b.Steps {
		if b.Steps[i].Outcome() == outcome {
			n++
		}
	}
	return n
}

// Failures combines every failed document into one error. A non-nil result
// does not make the bootstrap call itself a failure.
func (b *BootstrapReport) Failures() error {
	var err error
	for i := range b.Steps {
		report := &b.Steps[i]
		if report.Outcome() != OutcomeFailed {
			continue
		}
		err = multierr.Append(err, fmt.Errorf("cv %d (%s): %s", report.CVIndex, report.CVID, report.FailureReason()))
	}
	return err
}

type DemoStatus struct {
	DemoCount int `json:"demo_count"`
	Total     int `json:"total"`
}

type JobOffer struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	RequiredSkills []string `json:"required_skills,omitempty"`
	Location       string   `json:"location,omitempty"`
	Department     string   `json:"department,omitempty"`
}

// Query is the text used to pre-fill a semantic search.
func (o JobOffer) Query() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{o.Title, o.Description} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(o.RequiredSkills) > 0 {
		parts = append(parts, "Required skills: "+strings.Join(o.RequiredSkills, ", "))
	}
	return strings.Join(parts, "\n")
}

// LoadSamples runs the server-side batch ingestion of the sample set. Only one
// bootstrap runs at a time; a second call while one is pending gets
// ErrBootstrapInFlight.
func (c *Client) LoadSamples(ctx context.Context, usePDFs bool) (*BootstrapReport, error) {
	if !c.bootstrap.TryEnter() {
		return nil, ErrBootstrapInFlight
	}
	defer c.bootstrap.Leave()

	q := url.Values{}
	q.Set("use_pdfs", strconv.FormatBool(usePDFs))

	var report BootstrapReport
	if err := c.getJSON(ctx, DemoLoadPath, q, &report); err != nil {
		return nil, err
	}

	c.logger.Info("demo data loaded",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Count(OutcomeSucceeded)),
		zap.Int("failed", report.Count(OutcomeFailed)),
	)

	c.invalidate(ctx)

	return &report, nil
}

func (c *Client) DemoStatus(ctx context.Context) (*DemoStatus, error) {
	var status DemoStatus
	if err := c.getJSON(ctx, DemoStatusPath, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) JobOffers(ctx context.Context) ([]JobOffer, error) {
	var response struct {
		JobOffers []JobOffer `json:"job_offers"`
	}
	if err := c.getCached(ctx, cacheKey(jobOffersKey, nil), JobOffersPath, nil, &response); err != nil {
		return nil, err
	}
	return response.JobOffers, nil
}

// FindJobOffer returns nil when no offer has the id.
func FindJobOffer(offers []JobOffer, id string) *JobOffer {
	for i := range offers {
		if offers[i].ID == id {
			return &offers[i]
		}
	}
	return nil
}
