package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/atsctl/internal/ai"
	"github.com/spigell/atsctl/internal/ats"
	"github.com/spigell/atsctl/internal/utils"
)

const noteLimit = 120

type structuringStage struct {
	disabled bool
	reason   string
	fallback ai.Structurer
}

// NewStructuring creates the stage that turns raw text into structured data.
// When the configured structurer fails, the heuristic parser is used and the
// step is reported as partial.
func NewStructuring() Stage {
	return &structuringStage{fallback: ai.NewHeuristic()}
}

func (s *structuringStage) Name() string { return "LLM" }

func (s *structuringStage) Disable(reason string) {
	s.disabled = true
	s.reason = reason
}

func (s *structuringStage) IsEnabled() bool { return !s.disabled }

func (s *structuringStage) Apply(ctx context.Context, deps Deps, doc *Doc) (ats.PipelineStep, error) {
	step := ats.PipelineStep{Name: s.Name(), Status: ats.StepCompleted}

	if strings.TrimSpace(doc.RawText) == "" {
		return step, errors.New("no text to structure")
	}

	structurer := deps.Structurer
	if structurer == nil {
		structurer = s.fallback
	}

	structured, err := structurer.Structure(ctx, doc.RawText)
	if err != nil && structurer != s.fallback {
		if ctx.Err() != nil {
			return step, err
		}
		step.Status = "partial"
		step.Note = utils.TruncateForLog(err.Error(), noteLimit)
		structured, err = s.fallback.Structure(ctx, doc.RawText)
	}
	if err != nil {
		return step, err
	}

	doc.Structured = structured
	if step.Note == "" {
		step.Note = structured.Model
	}
	return step, nil
}

func (s *structuringStage) Status() Status {
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: s.reason}
}
