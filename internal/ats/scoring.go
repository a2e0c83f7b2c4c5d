package ats

import (
	"context"
	"net/url"
)

const ScoringPath = "/api/scoring/candidates"

type ScoreRequest struct {
	CVIDs    []string           `json:"cv_ids" validate:"required,min=1,dive,required"`
	JobID    string             `json:"-"`
	Criteria map[string]float64 `json:"criteria,omitempty"`
}

type ScoreBreakdown struct {
	Skills     float64 `json:"skills"`
	Experience float64 `json:"experience"`
	Education  float64 `json:"education"`
	Quality    float64 `json:"quality"`
}

type CandidateScore struct {
	CVID      string         `json:"cv_id"`
	Document  *Document      `json:"cv,omitempty"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// ScoreCandidates asks the server for a weighted score of each document.
// Results come back best first.
func (c *Client) ScoreCandidates(ctx context.Context, req ScoreRequest) ([]CandidateScore, error) {
	if err := c.validateParams(&req); err != nil {
		return nil, err
	}

	var q url.Values
	if req.JobID != "" {
		q = url.Values{"job_id": []string{req.JobID}}
	}

	var response struct {
		Results []CandidateScore `json:"results"`
	}
	if err := c.postJSON(ctx, ScoringPath, q, &req, &response); err != nil {
		return nil, err
	}

	return response.Results, nil
}
