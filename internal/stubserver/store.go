package stubserver

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/spigell/atsctl/internal/ai"
	"github.com/spigell/atsctl/internal/pipeline"
)

const (
	userID = "00000000-0000-0000-0000-000000000000"

	sourceDemo = "demo"
	previewLen = 5
)

type record struct {
	seq        uint64
	id         string
	status     string
	rawText    string
	structured *ai.StructuredCV
	embedding  []float64
	quality    float64
	filename   string
	filePath   string
	source     string
	mimeType   string
	size       int
	consent    bool
	createdAt  time.Time
	// flat records keep candidate data at the top level instead of under
	// structured_data.
	flat bool
}

// Store keeps documents in memory. It implements pipeline.Store.
type Store struct {
	mu      sync.RWMutex
	seq     uint64
	records map[string]*record
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		records: map[string]*record{},
		now:     time.Now,
	}
}

// Save stores the processed document. Consecutive saves alternate between the
// nested and the flat shape.
func (s *Store) Save(_ context.Context, doc *pipeline.Doc) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	size := len(doc.Content)
	if size == 0 {
		size = len(doc.RawText)
	}

	s.records[doc.ID] = &record{
		seq:        s.seq,
		id:         doc.ID,
		status:     "active",
		rawText:    doc.RawText,
		structured: doc.Structured,
		embedding:  doc.Embedding,
		quality:    doc.Structured.Quality(),
		filename:   doc.Filename,
		filePath:   fmt.Sprintf("%s/%s/%s", userID, doc.ID, doc.Filename),
		source:     doc.Source,
		mimeType:   doc.ContentType,
		size:       size,
		consent:    doc.Consent,
		createdAt:  s.now().UTC(),
		flat:       s.seq%2 == 0,
	}
	return nil
}

func (s *Store) get(id string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

func (s *Store) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	return true
}

// all returns every record, newest first.
func (s *Store) all() []*record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *record) int {
		switch {
		case a.seq > b.seq:
			return -1
		case a.seq < b.seq:
			return 1
		default:
			return 0
		}
	})
	return out
}

// page returns one page of records, newest first, and the total count.
func (s *Store) page(page, limit int) ([]*record, int) {
	all := s.all()
	start := (page - 1) * limit
	if start >= len(all) {
		return []*record{}, len(all)
	}
	end := min(start+limit, len(all))
	return all[start:end], len(all)
}

func (s *Store) CountSource(source string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		if r.source == source {
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (r *record) structuredData() map[string]any {
	cv := r.structured
	if cv == nil {
		cv = &ai.StructuredCV{}
	}
	return map[string]any{
		"candidate_info": orEmptyMap(cv.CandidateInfo),
		"experiences":    orEmptyList(cv.Experiences),
		"education":      orEmptyList(cv.Education),
		"skills":         orEmptyAny(cv.Skills),
	}
}

// render builds the wire form of the record.
func (r *record) render() map[string]any {
	preview := r.embedding
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}

	out := map[string]any{
		"id":                 r.id,
		"status":             r.status,
		"raw_text":           r.rawText,
		"original_file_path": r.filePath,
		"original_filename":  r.filename,
		"signed_url":         nil,
		"quality_score":      r.quality,
		"source_type":        r.source,
		"mime_type":          r.mimeType,
		"file_size_bytes":    r.size,
		"gdpr_consent":       r.consent,
		"created_at":         r.createdAt.Format(time.RFC3339),
		"embedding_preview": map[string]any{
			"dimension": len(r.embedding),
			"first_5":   orEmptyFloats(preview),
		},
	}

	data := r.structuredData()
	if !r.flat {
		out["structured_data"] = data
		return out
	}

	out["candidate_info"] = data["candidate_info"]
	out["experience"] = data["experiences"]
	out["education"] = data["education"]

	skills := make([]map[string]any, 0)
	for _, s := range orEmptyAny(r.structuredSkills()) {
		skills = append(skills, map[string]any{"skill": s})
	}
	out["skills"] = skills
	return out
}

func (r *record) structuredSkills() []any {
	if r.structured == nil {
		return nil
	}
	return r.structured.Skills
}

func (r *record) count(section string) int {
	if r.structured == nil {
		return 0
	}
	switch section {
	case "skills":
		return len(r.structured.Skills)
	case "experiences":
		return len(r.structured.Experiences)
	case "education":
		return len(r.structured.Education)
	default:
		return 0
	}
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyList(l []map[string]any) []map[string]any {
	if l == nil {
		return []map[string]any{}
	}
	return l
}

func orEmptyAny(l []any) []any {
	if l == nil {
		return []any{}
	}
	return l
}

func orEmptyFloats(l []float64) []float64 {
	if l == nil {
		return []float64{}
	}
	return l
}
