package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ai"
	"github.com/spigell/atsctl/internal/ats"
)

// Stage represents a single processing step applied to an incoming document.
type Stage interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, deps Deps, doc *Doc) (ats.PipelineStep, error)
}

// Deps aggregates dependencies shared across all stages.
type Deps struct {
	Logger     *zap.Logger
	Structurer ai.Structurer
	Store      Store
}

// Store persists a fully processed document.
type Store interface {
	Save(ctx context.Context, doc *Doc) error
}

// Doc is the document travelling through the stages. Each stage fills in
// the fields the next one needs.
type Doc struct {
	ID          string
	Filename    string
	ContentType string
	Source      string
	Consent     bool
	Content     []byte

	RawText    string
	Structured *ai.StructuredCV
	Embedding  []float64
}

// Status represents runtime information about a stage.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// DisableByName marks a stage with the provided name as disabled while keeping it in the list.
func DisableByName(stages []Stage, name, reason string) {
	for _, stage := range stages {
		if stage.Name() == name {
			stage.Disable(reason)
		}
	}
}

// Run executes the enabled stages in order. When a stage fails the rest are
// reported as pending and the error names the failed stage.
func Run(ctx context.Context, deps Deps, stages []Stage, doc *Doc) ([]ats.PipelineStep, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	steps := make([]ats.PipelineStep, 0, len(stages))
	var failed error

	for _, stage := range stages {
		if !stage.IsEnabled() {
			logger.Debug("stage disabled", zap.String("name", stage.Name()))
			continue
		}

		if failed != nil {
			steps = append(steps, ats.PipelineStep{Name: stage.Name(), Status: ats.StepPending})
			continue
		}

		if err := ctx.Err(); err != nil {
			failed = err
			steps = append(steps, ats.PipelineStep{Name: stage.Name(), Status: ats.StepPending})
			continue
		}

		step, err := stage.Apply(ctx, deps, doc)
		if step.Name == "" {
			step.Name = stage.Name()
		}
		if err != nil {
			step.Status = ats.StepFailed
			if step.Note == "" {
				step.Note = err.Error()
			}
			failed = fmt.Errorf("%s: %w", stage.Name(), err)

			logger.Warn("stage failed",
				zap.String("name", stage.Name()),
				zap.String("cv_id", doc.ID),
				zap.Error(err),
			)
		} else {
			logger.Debug("stage finished",
				zap.String("name", stage.Name()),
				zap.String("cv_id", doc.ID),
				zap.String("status", string(step.Status)),
			)
		}

		steps = append(steps, step)
	}

	return steps, failed
}

// Describe returns status entries for the provided stages.
func Describe(stages []Stage) []Status {
	statuses := make([]Status, 0, len(stages))
	for _, stage := range stages {
		if reporter, ok := stage.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    stage.Name(),
			Enabled: stage.IsEnabled(),
		})
	}
	return statuses
}

// Default returns the OCR, structuring, embedding and storage stages in order.
func Default() []Stage {
	return []Stage{
		NewOCR(),
		NewStructuring(),
		NewEmbedding(DefaultDimension),
		NewStorage(),
	}
}
