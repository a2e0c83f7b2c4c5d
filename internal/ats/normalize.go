package ats

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
)

const structuredPrefix = "structured_data."

type Status string

const (
	StatusProcessing Status = "processing"
	StatusActive     Status = "active"
	StatusFailed     Status = "failed"
	StatusUnknown    Status = "unknown"
)

// ParseStatus maps a lifecycle status onto the known set.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusProcessing:
		return StatusProcessing
	case StatusActive:
		return StatusActive
	case StatusFailed:
		return StatusFailed
	default:
		return StatusUnknown
	}
}

type Candidate struct {
	FullName string `json:"full_name,omitempty" mapstructure:"full_name"`
	Email    string `json:"email,omitempty" mapstructure:"email"`
	Phone    string `json:"phone,omitempty" mapstructure:"phone"`
	Location string `json:"location,omitempty" mapstructure:"location"`
}

type Experience struct {
	Title       string `json:"title,omitempty" mapstructure:"title"`
	Company     string `json:"company,omitempty" mapstructure:"company"`
	StartDate   string `json:"start_date,omitempty" mapstructure:"start_date"`
	EndDate     string `json:"end_date,omitempty" mapstructure:"end_date"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

type Education struct {
	Degree      string `json:"degree,omitempty" mapstructure:"degree"`
	Institution string `json:"institution,omitempty" mapstructure:"institution"`
	Field       string `json:"field,omitempty" mapstructure:"field"`
	Year        string `json:"year,omitempty" mapstructure:"year"`
}

// View is the presentation model of a Document. Every surface that shows a
// document builds it with Normalize.
type View struct {
	ID           string            `json:"id"`
	Status       Status            `json:"status"`
	Filename     string            `json:"filename,omitempty"`
	CreatedAt    string            `json:"created_at,omitempty"`
	Candidate    Candidate         `json:"candidate"`
	Skills       []string          `json:"skills"`
	Experiences  []Experience      `json:"experiences"`
	Education    []Education       `json:"education"`
	RawText      string            `json:"raw_text,omitempty"`
	SignedURL    string            `json:"signed_url,omitempty"`
	QualityScore *float64          `json:"quality_score,omitempty"`
	Embedding    *EmbeddingPreview `json:"embedding_preview,omitempty"`
}

// DisplayName is the candidate name or "Unknown".
func (v *View) DisplayName() string {
	if v.Candidate.FullName == "" {
		return "Unknown"
	}
	return v.Candidate.FullName
}

// Normalize maps a raw record onto a View. Candidate data may sit under
// structured_data or at the top level of the record; the nested form wins.
func Normalize(d *Document) *View {
	if d == nil {
		return nil
	}

	raw := []byte(d.Raw)
	if len(raw) == 0 {
		// Built in code rather than decoded; only top-level fields exist.
		raw, _ = d.MarshalJSON()
	}

	view := &View{
		ID:           d.ID,
		Status:       ParseStatus(d.Status),
		Filename:     firstString(raw, "original_filename", "source.original_filename"),
		CreatedAt:    d.CreatedAt,
		RawText:      d.RawText,
		SignedURL:    d.SignedURL,
		QualityScore: d.QualityScore,
		Embedding:    d.EmbeddingPreview,
		Candidate: Candidate{
			FullName: candidateField(raw, "full_name", "name"),
			Email:    candidateField(raw, "email"),
			Phone:    candidateField(raw, "phone"),
			Location: candidateField(raw, "location"),
		},
		Skills:      skills(lookupList(raw, "skills")),
		Experiences: decodeList[Experience](lookupList(raw, "experiences", "experience"), experienceAliases),
		Education:   decodeList[Education](lookupList(raw, "education"), educationAliases),
	}

	return view
}

// NormalizeAll keeps the input order.
func NormalizeAll(docs []*Document) []*View {
	views := make([]*View, 0, len(docs))
	for _, d := range docs {
		if v := Normalize(d); v != nil {
			views = append(views, v)
		}
	}
	return views
}

func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

// candidateField resolves one candidate attribute, nested location first.
func candidateField(raw []byte, names ...string) string {
	for _, prefix := range []string{structuredPrefix, ""} {
		for _, name := range names {
			r := gjson.GetBytes(raw, prefix+"candidate_info."+name)
			if present(r) {
				if s := strings.TrimSpace(r.String()); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// lookupList returns the first non-empty list, nested location first.
func lookupList(raw []byte, names ...string) []gjson.Result {
	for _, prefix := range []string{structuredPrefix, ""} {
		for _, name := range names {
			r := gjson.GetBytes(raw, prefix+name)
			if present(r) && r.IsArray() {
				if items := r.Array(); len(items) > 0 {
					return items
				}
			}
		}
	}
	return nil
}

func firstString(raw []byte, paths ...string) string {
	for _, path := range paths {
		if r := gjson.GetBytes(raw, path); r.Type == gjson.String && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

// skills accepts bare strings and objects carrying a "skill" (or "name") field.
func skills(items []gjson.Result) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		switch {
		case item.Type == gjson.String:
			s = item.String()
		case item.IsObject():
			s = item.Get("skill").String()
			if s == "" {
				s = item.Get("name").String()
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type alias struct{ from, to string }

var experienceAliases = []alias{
	{"position", "title"},
	{"job_title", "title"},
	{"role", "title"},
	{"employer", "company"},
	{"start", "start_date"},
	{"from", "start_date"},
	{"end", "end_date"},
	{"to", "end_date"},
	{"summary", "description"},
}

var educationAliases = []alias{
	{"school", "institution"},
	{"university", "institution"},
	{"diploma", "degree"},
	{"title", "degree"},
	{"end_date", "year"},
	{"date", "year"},
}

// decodeList decodes object items with weak typing so numeric years and
// similar loose values land in string fields. Unknown keys are ignored.
func decodeList[T any](items []gjson.Result, aliases []alias) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}

		fields, ok := item.Value().(map[string]any)
		if !ok {
			continue
		}
		for key, v := range fields {
			switch v.(type) {
			case map[string]any, []any:
				delete(fields, key)
			}
		}
		for _, a := range aliases {
			if _, set := fields[a.to]; set {
				continue
			}
			if v, found := fields[a.from]; found {
				fields[a.to] = v
			}
		}

		var target T
		cfg := &mapstructure.DecoderConfig{
			Result:           &target,
			TagName:          "mapstructure",
			WeaklyTypedInput: true,
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			continue
		}
		if err := decoder.Decode(fields); err != nil {
			continue
		}
		out = append(out, target)
	}
	return out
}
