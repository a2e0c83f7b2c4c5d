package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ai"
	"github.com/spigell/atsctl/internal/logger"
	"github.com/spigell/atsctl/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Structurer asks Gemini to structure résumé text.
type Structurer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var systemPrompt string

const (
	provider            = "gemini"
	defaultMaxLogLength = 200
)

func NewStructurer(generator contentGenerator, maxLogLength int, log *zap.Logger) *Structurer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Structurer{
		generator: generator,
		logger:    logger.WithCommonFields(log, provider, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (s *Structurer) Structure(ctx context.Context, rawText string) (*ai.StructuredCV, error) {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, fmt.Errorf("no text to structure")
	}

	prompt := "Résumé:\n" + rawText

	s.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	cv, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	cv.Model = s.generator.Model()

	return cv, nil
}

func parseResponse(raw string) (*ai.StructuredCV, error) {
	var cv ai.StructuredCV
	if err := json.Unmarshal([]byte(extractJSON(raw)), &cv); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if cv.CandidateInfo == nil {
		cv.CandidateInfo = map[string]any{}
	}
	for key, value := range cv.CandidateInfo {
		if str, ok := value.(string); ok && strings.TrimSpace(str) == "" {
			delete(cv.CandidateInfo, key)
		}
	}
	if cv.Experiences == nil {
		cv.Experiences = []map[string]any{}
	}
	if cv.Education == nil {
		cv.Education = []map[string]any{}
	}
	if cv.Skills == nil {
		cv.Skills = []any{}
	}

	return &cv, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
