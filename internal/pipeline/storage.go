package pipeline

import (
	"context"
	"errors"

	"github.com/spigell/atsctl/internal/ats"
)

type storageStage struct {
	disabled bool
	reason   string
}

// NewStorage creates the stage that hands the document to Deps.Store.
func NewStorage() Stage {
	return &storageStage{}
}

func (s *storageStage) Name() string { return "Storage" }

func (s *storageStage) Disable(reason string) {
	s.disabled = true
	s.reason = reason
}

func (s *storageStage) IsEnabled() bool { return !s.disabled }

func (s *storageStage) Apply(ctx context.Context, deps Deps, doc *Doc) (ats.PipelineStep, error) {
	step := ats.PipelineStep{Name: s.Name(), Status: ats.StepCompleted}

	if deps.Store == nil {
		return step, errors.New("store is required")
	}
	if err := deps.Store.Save(ctx, doc); err != nil {
		return step, err
	}
	return step, nil
}

func (s *storageStage) Status() Status {
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: s.reason}
}
