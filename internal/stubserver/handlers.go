package stubserver

import (
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ats"
	"github.com/spigell/atsctl/internal/pipeline"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

var defaultWeights = map[string]float64{
	"skills":     0.4,
	"experience": 0.3,
	"education":  0.2,
	"quality":    0.1,
}

func (s *Server) handleIngest(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil || header.Filename == "" {
		return ErrBadRequest("No file provided")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !slices.Contains(ats.AcceptedTypes, contentType) {
		return ErrBadRequest("Unsupported type: %s", contentType)
	}
	if header.Size > ats.MaxUploadSize {
		return ErrBadRequest("File too large (max %d MB)", ats.MaxUploadSize/(1024*1024))
	}

	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	consent, _ := strconv.ParseBool(c.FormValue("gdpr_consent"))
	doc := &pipeline.Doc{
		ID:          uuid.NewString(),
		Filename:    header.Filename,
		ContentType: contentType,
		Source:      c.FormValue("source", "upload"),
		Consent:     consent,
		Content:     content,
	}

	if _, err := pipeline.Run(c.UserContext(), s.deps, s.stages, doc); err != nil {
		return ErrUnprocessable("Processing failed: %s", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"cv_id":   doc.ID,
		"status":  "active",
		"message": "CV ingested successfully",
	})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", defaultLimit)
	if page < 1 {
		return ErrUnprocessable("page must be at least 1")
	}
	if limit < 1 || limit > maxLimit {
		return ErrUnprocessable("limit must be between 1 and %d", maxLimit)
	}

	// A text query switches the listing to similarity order, capped at limit.
	var (
		records []*record
		total   int
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		for _, m := range s.rank(q, limit) {
			records = append(records, m.record)
		}
		total = len(records)
	} else {
		records, total = s.store.page(page, limit)
	}

	results := make([]map[string]any, 0, len(records))
	for _, r := range records {
		results = append(results, r.render())
	}

	return c.JSON(fiber.Map{
		"results": results,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	r, ok := s.store.get(c.Params("id"))
	if !ok {
		return ErrNotFound()
	}
	return c.JSON(r.render())
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	id := c.Params("id")
	if !s.store.remove(id) {
		return ErrNotFound()
	}
	return c.JSON(fiber.Map{"cv_id": id, "status": "deleted"})
}

type match struct {
	record *record
	score  float64
}

func (s *Server) handleSemantic(c *fiber.Ctx) error {
	description := c.Query("job_description")
	if strings.TrimSpace(description) == "" {
		return ErrUnprocessable("job_description is required")
	}
	topN := c.QueryInt("top_n", ats.DefaultTopN)
	if topN < 1 {
		return ErrUnprocessable("top_n must be at least 1")
	}

	query := description
	for _, skill := range c.Context().QueryArgs().PeekMulti("required_skills") {
		query += " " + string(skill)
	}

	matches := s.rank(query, topN)
	results := make([]fiber.Map, 0, len(matches))
	for _, m := range matches {
		results = append(results, fiber.Map{
			"cv":               m.record.render(),
			"similarity_score": round(m.score, 4),
		})
	}

	return c.JSON(fiber.Map{
		"query":   description,
		"results": results,
		"total":   len(results),
	})
}

// rank scores every stored document against text, best first, dropping
// those under the match threshold.
func (s *Server) rank(text string, limit int) []match {
	vector := pipeline.Embed(text, pipeline.DefaultDimension)
	matches := make([]match, 0)
	for _, r := range s.store.all() {
		score := pipeline.Cosine(vector, r.embedding)
		if score < s.threshold {
			continue
		}
		matches = append(matches, match{record: r, score: min(score, 1)})
	}
	slices.SortStableFunc(matches, func(a, b match) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

type scoreRequest struct {
	CVIDs    []string           `json:"cv_ids"`
	Criteria map[string]float64 `json:"criteria"`
}

func (s *Server) handleScoring(c *fiber.Ctx) error {
	var req scoreRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrUnprocessable("invalid JSON request")
	}
	if len(req.CVIDs) == 0 {
		return c.JSON(fiber.Map{"results": []fiber.Map{}, "total": 0})
	}

	weights := make(map[string]float64, len(defaultWeights))
	for k, v := range defaultWeights {
		weights[k] = v
	}
	for k, v := range req.Criteria {
		weights[k] = v
	}

	if jobID := c.Query("job_id"); jobID != "" {
		s.logger.Debug("scoring against job", zap.String("job_id", jobID))
	}

	type scored struct {
		entry fiber.Map
		score float64
	}
	out := make([]scored, 0, len(req.CVIDs))
	for _, id := range req.CVIDs {
		r, ok := s.store.get(id)
		if !ok {
			continue
		}

		skills := min(float64(r.count("skills"))/10, 1) * weights["skills"]
		experience := min(float64(r.count("experiences"))/5, 1) * weights["experience"]
		education := min(float64(r.count("education"))/3, 1) * weights["education"]
		quality := r.quality * weights["quality"]
		total := round(min(skills+experience+education+quality, 1), 2)

		out = append(out, scored{score: total, entry: fiber.Map{
			"cv_id": r.id,
			"cv":    r.render(),
			"score": total,
			"breakdown": fiber.Map{
				"skills":     round(skills, 2),
				"experience": round(experience, 2),
				"education":  round(education, 2),
				"quality":    round(quality, 2),
			},
		}})
	}
	slices.SortStableFunc(out, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	results := make([]fiber.Map, 0, len(out))
	for _, o := range out {
		results = append(results, o.entry)
	}
	return c.JSON(fiber.Map{"results": results, "total": len(results)})
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
