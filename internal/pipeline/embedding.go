package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/spigell/atsctl/internal/ats"
)

// DefaultDimension matches the size of the vectors the real backend stores.
const DefaultDimension = 384

type embeddingStage struct {
	disabled  bool
	reason    string
	dimension int
}

// NewEmbedding creates the stage that computes the document vector.
func NewEmbedding(dimension int) Stage {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &embeddingStage{dimension: dimension}
}

func (s *embeddingStage) Name() string { return "Embedding" }

func (s *embeddingStage) Disable(reason string) {
	s.disabled = true
	s.reason = reason
}

func (s *embeddingStage) IsEnabled() bool { return !s.disabled }

func (s *embeddingStage) Apply(_ context.Context, _ Deps, doc *Doc) (ats.PipelineStep, error) {
	step := ats.PipelineStep{Name: s.Name(), Status: ats.StepCompleted}

	vector := Embed(doc.RawText, s.dimension)
	if vector == nil {
		return step, errors.New("nothing to embed")
	}

	doc.Embedding = vector
	step.Dim = len(vector)
	return step, nil
}

func (s *embeddingStage) Status() Status {
	return Status{
		Name:    s.Name(),
		Enabled: s.IsEnabled(),
		Reason:  s.reason,
		Details: map[string]string{"dimension": strconv.Itoa(s.dimension)},
	}
}

// Embed hashes the words of text into a unit vector of the given size. It
// returns nil when text has no words.
func Embed(text string, dimension int) []float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 || dimension <= 0 {
		return nil
	}

	vector := make([]float64, dimension)
	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum32()

		weight := 1.0
		if sum&1 == 1 {
			weight = -1.0
		}
		vector[int(sum>>1)%dimension] += weight
	}

	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	if norm == 0 {
		// Every word cancelled out; keep a valid direction.
		vector[0] = 1
		return vector
	}

	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}

// Cosine is the cosine similarity of two vectors of equal length.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
