package ats

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	MatchingPath = "/api/matching/semantic"

	DefaultTopN = 10
)

type MatchResult struct {
	Document        *Document `json:"cv"`
	SimilarityScore float64   `json:"similarity_score"`
}

type SearchRequest struct {
	JobDescription string   `json:"job_description"`
	TopN           int      `json:"top_n" validate:"gte=1,lte=100"`
	RequiredSkills []string `json:"required_skills" validate:"dive,required"`
}

// SearchOutcome holds one search invocation. Results keep the server order.
type SearchOutcome struct {
	Query   string        `json:"query"`
	Results []MatchResult `json:"results"`
	Total   int           `json:"total"`
}

type SearchState string

const (
	SearchNotRun    SearchState = "not_searched"
	SearchNoResults SearchState = "no_results"
	SearchFound     SearchState = "found"
	SearchFailed    SearchState = "failed"
)

// State tells a zero-result search apart from one that never ran.
func (o *SearchOutcome) State() SearchState {
	switch {
	case o == nil:
		return SearchNotRun
	case len(o.Results) == 0:
		return SearchNoResults
	default:
		return SearchFound
	}
}

// Search ranks documents against a job description.
func (c *Client) Search(ctx context.Context, jobDescription string, topN int) (*SearchOutcome, error) {
	return c.SearchWith(ctx, SearchRequest{JobDescription: jobDescription, TopN: topN})
}

// SearchWith rejects a blank description locally. A newer search cancels an
// older one that is still in flight.
func (c *Client) SearchWith(ctx context.Context, req SearchRequest) (*SearchOutcome, error) {
	if strings.TrimSpace(req.JobDescription) == "" {
		return nil, &ValidationError{Kind: EmptyQuery, Field: "job_description"}
	}
	if req.TopN == 0 {
		req.TopN = DefaultTopN
	}
	if err := c.validateParams(&req); err != nil {
		return nil, err
	}

	ctx, done := c.searches.Begin(ctx, searchKey)
	defer done()

	q := url.Values{}
	q.Set("job_description", req.JobDescription)
	q.Set("top_n", strconv.Itoa(req.TopN))
	for _, skill := range req.RequiredSkills {
		q.Add("required_skills", skill)
	}

	var outcome SearchOutcome
	if err := c.postQuery(ctx, MatchingPath, q, &outcome); err != nil {
		return nil, err
	}

	if outcome.Results == nil {
		outcome.Results = []MatchResult{}
	}
	if outcome.Query == "" {
		outcome.Query = req.JobDescription
	}

	c.logger.Debug("semantic search finished", zap.Int("results", len(outcome.Results)), zap.Int("top_n", req.TopN))

	return &outcome, nil
}

// SearchSession keeps the latest search of one consumer. A result that
// resolves after a newer search started is dropped.
type SearchSession struct {
	client *Client

	mu      sync.Mutex
	gen     uint64
	outcome *SearchOutcome
	err     error
}

func NewSearchSession(c *Client) *SearchSession {
	return &SearchSession{client: c}
}

// Run performs a search and records its result unless it was superseded.
func (s *SearchSession) Run(ctx context.Context, req SearchRequest) (*SearchOutcome, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	outcome, err := s.client.SearchWith(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		if err == nil {
			err = context.Canceled
		}
		return nil, err
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		// Local rejection leaves the previous state untouched.
		return nil, err
	}

	s.outcome, s.err = outcome, err
	return outcome, err
}

func (s *SearchSession) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return SearchFailed
	}
	return s.outcome.State()
}

func (s *SearchSession) Outcome() *SearchOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

func (s *SearchSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
