package ai

import "context"

// StructuredCV is the normalized representation of a résumé text.
type StructuredCV struct {
	CandidateInfo map[string]any   `json:"candidate_info"`
	Experiences   []map[string]any `json:"experiences"`
	Education     []map[string]any `json:"education"`
	Skills        []any            `json:"skills"`
	Model         string           `json:"-"`
}

// Structurer turns extracted text into a StructuredCV.
type Structurer interface {
	Structure(ctx context.Context, rawText string) (*StructuredCV, error)
}

// Quality scores how complete the structured data is, in [0,1].
func (s *StructuredCV) Quality() float64 {
	if s == nil {
		return 0
	}

	score := 0.0
	if name, _ := s.CandidateInfo["full_name"].(string); name != "" {
		score += 0.3
	}
	if email, _ := s.CandidateInfo["email"].(string); email != "" {
		score += 0.2
	}
	if len(s.Experiences) > 0 {
		score += 0.3
	}
	if len(s.Skills) > 0 {
		score += 0.2
	}
	return min(score, 1.0)
}
