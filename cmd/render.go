package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"

	"github.com/spigell/atsctl/internal/ats"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"

	maxSkillsShown = 4
)

// printer writes command results to stdout. Logs go to stderr.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) *printer {
	if format == "" {
		format = formatTable
	}
	return &printer{w: w, format: format}
}

func (p *printer) structured() bool {
	return p.format == formatJSON || p.format == formatYAML
}

// value prints v as json or yaml. It reports false for table output so the
// caller can draw its own table.
func (p *printer) value(v any) (bool, error) {
	if !p.structured() {
		return false, nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return true, fmt.Errorf("encode output: %w", err)
	}

	if p.format == formatYAML {
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return true, fmt.Errorf("encode output: %w", err)
		}
	}

	_, err = fmt.Fprintln(p.w, strings.TrimRight(string(data), "\n"))
	return true, err
}

func (p *printer) table(header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func skillsSummary(skills []string) string {
	if len(skills) <= maxSkillsShown {
		return strings.Join(skills, ", ")
	}
	return fmt.Sprintf("%s +%d", strings.Join(skills[:maxSkillsShown], ", "), len(skills)-maxSkillsShown)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func (p *printer) views(views []*ats.View, total int) error {
	if ok, err := p.value(map[string]any{"results": views, "total": total}); ok {
		return err
	}

	if len(views) == 0 {
		p.line("No CVs yet. Upload one or load the demo data.")
		return nil
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.ID, v.DisplayName(), string(v.Status), orDash(skillsSummary(v.Skills)), orDash(v.Filename), orDash(v.CreatedAt)})
	}
	if err := p.table([]string{"ID", "NAME", "STATUS", "SKILLS", "FILE", "CREATED"}, rows); err != nil {
		return err
	}
	p.line("\nshowing %d of %d", len(views), total)
	return nil
}

func (p *printer) view(v *ats.View) error {
	if ok, err := p.value(v); ok {
		return err
	}

	rows := [][]string{
		{"id", v.ID},
		{"name", v.DisplayName()},
		{"status", string(v.Status)},
		{"email", orDash(v.Candidate.Email)},
		{"phone", orDash(v.Candidate.Phone)},
		{"location", orDash(v.Candidate.Location)},
		{"file", orDash(v.Filename)},
		{"created", orDash(v.CreatedAt)},
		{"skills", orDash(strings.Join(v.Skills, ", "))},
	}
	if v.QualityScore != nil {
		rows = append(rows, []string{"quality", fmt.Sprintf("%.2f", *v.QualityScore)})
	}
	if v.Embedding != nil {
		rows = append(rows, []string{"embedding", fmt.Sprintf("dim=%d %v", v.Embedding.Dimension, v.Embedding.First5)})
	}
	if v.SignedURL != "" {
		rows = append(rows, []string{"original", v.SignedURL})
	}
	if err := p.table([]string{"FIELD", "VALUE"}, rows); err != nil {
		return err
	}

	if len(v.Experiences) > 0 {
		p.line("\nExperience")
		for _, e := range v.Experiences {
			p.line("  %s @ %s (%s - %s)", orDash(e.Title), orDash(e.Company), orDash(e.StartDate), orDash(e.EndDate))
		}
	}
	if len(v.Education) > 0 {
		p.line("\nEducation")
		for _, e := range v.Education {
			p.line("  %s, %s %s", orDash(e.Degree), orDash(e.Institution), e.Year)
		}
	}
	return nil
}

// matchOutput is the structured form of a search. Documents are printed as
// normalized views, the same as list and show.
type matchOutput struct {
	Query   string          `json:"query"`
	State   ats.SearchState `json:"state"`
	Total   int             `json:"total"`
	Results []matchEntry    `json:"results"`
}

type matchEntry struct {
	CV              *ats.View `json:"cv"`
	SimilarityScore float64   `json:"similarity_score"`
}

func newMatchOutput(outcome *ats.SearchOutcome) matchOutput {
	out := matchOutput{State: outcome.State(), Results: []matchEntry{}}
	if outcome == nil {
		return out
	}

	out.Query, out.Total = outcome.Query, outcome.Total
	for _, m := range outcome.Results {
		out.Results = append(out.Results, matchEntry{CV: ats.Normalize(m.Document), SimilarityScore: m.SimilarityScore})
	}
	return out
}

type scoreEntry struct {
	CVID      string             `json:"cv_id"`
	CV        *ats.View          `json:"cv,omitempty"`
	Score     float64            `json:"score"`
	Breakdown ats.ScoreBreakdown `json:"breakdown"`
}

func (p *printer) matches(outcome *ats.SearchOutcome) error {
	if ok, err := p.value(newMatchOutput(outcome)); ok {
		return err
	}

	switch outcome.State() {
	case ats.SearchNotRun:
		p.line("Enter a job description to search.")
		return nil
	case ats.SearchNoResults:
		p.line("No matching candidates found.")
		return nil
	}

	rows := make([][]string, 0, len(outcome.Results))
	for i, m := range outcome.Results {
		id, name, skills := "-", "Unknown", ""
		if v := ats.Normalize(m.Document); v != nil {
			id, name, skills = v.ID, v.DisplayName(), skillsSummary(v.Skills)
		}
		rows = append(rows, []string{fmt.Sprint(i + 1), fmt.Sprintf("%.0f%%", m.SimilarityScore*100), id, name, orDash(skills)})
	}
	return p.table([]string{"RANK", "MATCH", "ID", "NAME", "SKILLS"}, rows)
}

func (p *printer) offers(offers []ats.JobOffer) error {
	if ok, err := p.value(map[string]any{"job_offers": offers}); ok {
		return err
	}

	rows := make([][]string, 0, len(offers))
	for _, o := range offers {
		rows = append(rows, []string{o.ID, o.Title, orDash(o.Location), orDash(o.Department), orDash(strings.Join(o.RequiredSkills, ", "))})
	}
	return p.table([]string{"ID", "TITLE", "LOCATION", "DEPARTMENT", "SKILLS"}, rows)
}

func (p *printer) bootstrap(report *ats.BootstrapReport) error {
	if ok, err := p.value(report); ok {
		return err
	}

	for _, entry := range report.Steps {
		steps := make([]string, 0, len(entry.Steps))
		for _, s := range entry.Steps {
			label := fmt.Sprintf("%s:%s", s.Name, s.State())
			if s.Dim > 0 {
				label += fmt.Sprintf("(%d)", s.Dim)
			}
			steps = append(steps, label)
		}

		p.line("CV %d %s [%s] %s", entry.CVIndex, orDash(entry.CVID), entry.Outcome(), strings.Join(steps, " "))
		if entry.Outcome() == ats.OutcomeFailed {
			p.line("  error: %s", entry.FailureReason())
		}
	}

	p.line("\n%s: %d loaded, %d failed", orDash(report.Message), report.Count(ats.OutcomeSucceeded), report.Count(ats.OutcomeFailed))
	return nil
}

func (p *printer) scores(scores []ats.CandidateScore) error {
	if p.structured() {
		entries := make([]scoreEntry, 0, len(scores))
		for _, s := range scores {
			entries = append(entries, scoreEntry{CVID: s.CVID, CV: ats.Normalize(s.Document), Score: s.Score, Breakdown: s.Breakdown})
		}
		_, err := p.value(map[string]any{"results": entries})
		return err
	}

	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		name := "Unknown"
		if v := ats.Normalize(s.Document); v != nil {
			name = v.DisplayName()
		}
		rows = append(rows, []string{
			s.CVID, name,
			fmt.Sprintf("%.2f", s.Score),
			fmt.Sprintf("%.2f", s.Breakdown.Skills),
			fmt.Sprintf("%.2f", s.Breakdown.Experience),
			fmt.Sprintf("%.2f", s.Breakdown.Education),
			fmt.Sprintf("%.2f", s.Breakdown.Quality),
		})
	}
	return p.table([]string{"ID", "NAME", "SCORE", "SKILLS", "EXPERIENCE", "EDUCATION", "QUALITY"}, rows)
}
