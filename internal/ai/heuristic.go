package ai

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

const heuristicModel = "heuristic"

var (
	emailRe = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	yearsRe = regexp.MustCompile(`((?:19|20)\d{2})\s*[-–]\s*((?:19|20)\d{2}|[Pp]resent|now|[Aa]ctuel)`)
	yearRe  = regexp.MustCompile(`(?:19|20)\d{2}`)
)

type section int

const (
	sectionNone section = iota
	sectionExperience
	sectionEducation
	sectionSkills
)

var headings = map[string]section{
	"experience":  sectionExperience,
	"expérience":  sectionExperience,
	"experiencia": sectionExperience,
	"work":        sectionExperience,
	"education":   sectionEducation,
	"formation":   sectionEducation,
	"formación":   sectionEducation,
	"edu":         sectionEducation,
	"skills":      sectionSkills,
	"compétences": sectionSkills,
	"competences": sectionSkills,
	"competencias": sectionSkills,
}

// Heuristic structures résumé text with line rules. It needs no model and is
// what the stub backend uses unless Gemini is configured.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Structure(_ context.Context, rawText string) (*StructuredCV, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, errors.New("no text to structure")
	}

	cv := &StructuredCV{
		CandidateInfo: map[string]any{},
		Experiences:   []map[string]any{},
		Education:     []map[string]any{},
		Skills:        []any{},
		Model:         heuristicModel,
	}

	current := sectionNone
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if i < 3 && cv.CandidateInfo["full_name"] == nil {
			if name := nameFrom(line); name != "" {
				cv.CandidateInfo["full_name"] = name
			}
		}
		contactsFrom(line, cv.CandidateInfo)

		if s, rest, ok := headingOf(line); ok {
			current = s
			if rest == "" {
				continue
			}
			line = rest
		}

		switch current {
		case sectionExperience:
			if exp := experienceFrom(line); exp != nil {
				cv.Experiences = append(cv.Experiences, exp)
			}
		case sectionEducation:
			if edu := educationFrom(line); edu != nil {
				cv.Education = append(cv.Education, edu)
			}
		case sectionSkills:
			for _, skill := range splitSkills(line) {
				cv.Skills = append(cv.Skills, skill)
			}
		}
	}

	return cv, nil
}

func nameFrom(line string) string {
	parts := strings.FieldsFunc(line, func(r rune) bool { return r == '|' || r == '—' })
	if len(parts) == 0 {
		return ""
	}
	first := strings.TrimSpace(parts[0])
	if emailRe.MatchString(first) || yearRe.MatchString(first) {
		return ""
	}
	if _, _, ok := headingOf(first); ok {
		return ""
	}
	first = strings.TrimSuffix(strings.Split(first, ",")[0], " ")
	if words := strings.Fields(first); len(words) >= 2 && len(words) <= 4 {
		return strings.Join(words, " ")
	}
	return ""
}

func contactsFrom(line string, info map[string]any) {
	email := emailRe.FindString(line)
	if email == "" {
		return
	}
	if info["email"] == nil {
		info["email"] = email
	}
	if phone := phoneRe.FindString(line); phone != "" && info["phone"] == nil {
		info["phone"] = strings.TrimSpace(phone)
	}

	for _, part := range strings.FieldsFunc(line, func(r rune) bool { return r == '|' || r == '—' }) {
		part = strings.TrimSpace(part)
		if key, value, ok := strings.Cut(part, ":"); ok {
			if strings.EqualFold(strings.TrimSpace(key), "location") && info["location"] == nil {
				info["location"] = strings.TrimSpace(value)
			}
			continue
		}
		if part == "" || emailRe.MatchString(part) || phoneRe.MatchString(part) {
			continue
		}
		if info["location"] == nil && part != info["full_name"] {
			info["location"] = part
		}
	}
}

// headingOf recognizes "SKILLS", "EDUCATION | FORMACIÓN" and "skills: a b c".
func headingOf(line string) (section, string, bool) {
	head, rest, hasColon := strings.Cut(line, ":")
	for _, candidate := range strings.Split(head, "|") {
		key := strings.ToLower(strings.TrimSpace(candidate))
		if s, ok := headings[key]; ok {
			if hasColon {
				return s, strings.TrimSpace(rest), true
			}
			if strings.Contains(line, "|") || strings.ToUpper(line) == line || len(strings.Fields(line)) == 1 {
				return s, "", true
			}
		}
	}
	// Any other short all-caps line is a heading we do not track.
	if strings.ToUpper(line) == line && strings.ToLower(line) != line && !yearRe.MatchString(line) && len(strings.Fields(line)) <= 4 {
		return sectionNone, "", true
	}
	return sectionNone, "", false
}

func experienceFrom(line string) map[string]any {
	line = strings.TrimLeft(line, "-• ")
	if !yearRe.MatchString(line) {
		return nil
	}

	exp := map[string]any{}
	if m := yearsRe.FindStringSubmatch(line); m != nil {
		exp["start_date"] = m[1]
		exp["end_date"] = m[2]
		line = strings.Replace(line, m[0], "", 1)
	}

	parts := make([]string, 0, 3)
	for _, p := range strings.FieldsFunc(line, func(r rune) bool { return r == '|' || r == ':' }) {
		if p = strings.Trim(strings.TrimSpace(p), "-()"); p != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	if len(parts) == 0 {
		return nil
	}

	exp["title"] = parts[0]
	if len(parts) > 1 {
		exp["company"] = parts[1]
	} else if title, company, ok := strings.Cut(parts[0], " at "); ok {
		exp["title"] = strings.TrimSpace(title)
		exp["company"] = strings.TrimSpace(company)
	}
	return exp
}

func educationFrom(line string) map[string]any {
	parts := make([]string, 0, 3)
	for _, p := range strings.Split(line, "|") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	edu := map[string]any{"degree": parts[0]}
	if len(parts) > 1 {
		edu["institution"] = parts[1]
	}
	if year := yearRe.FindString(line); year != "" {
		edu["year"] = year
	}
	return edu
}

func splitSkills(line string) []string {
	sep := func(r rune) bool { return r == ',' || r == ';' }
	if !strings.ContainsAny(line, ",;") {
		sep = func(r rune) bool { return r == ' ' }
	}

	out := make([]string, 0)
	for _, s := range strings.FieldsFunc(line, sep) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
