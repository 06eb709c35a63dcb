// Package eval measures detection accuracy against a ground-truth
// corpus: labelled projects are scanned and the winning labels are
// compared with what a human reviewer assigned.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"patternguard/internal/evidence"
	"patternguard/internal/logging"
	"patternguard/internal/scanner"
)

// accuracyTarget is the overall pass bar reported against.
const accuracyTarget = 80.0

// Comparison is one measured category of one case.
type Comparison struct {
	Category   evidence.Category `json:"category"`
	Expected   string            `json:"expected"`
	Actual     string            `json:"actual"`
	Confidence int               `json:"confidence"`
	Correct    bool              `json:"correct"`
	// Evidence holds excerpts backing the actual label, for debugging
	// misdetections.
	Evidence []string `json:"evidence,omitempty"`
}

// CaseResult captures the outcome of scanning one corpus case.
type CaseResult struct {
	Case        GroundTruthCase `json:"case"`
	Comparisons []Comparison    `json:"comparisons"`
	Passed      bool            `json:"passed"`
	Duration    time.Duration   `json:"duration"`
	Error       string          `json:"error,omitempty"`
}

// CategoryAccuracy is a correct/total tally.
type CategoryAccuracy struct {
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// Report aggregates accuracy across the whole corpus.
type Report struct {
	TotalCases  int     `json:"totalCases"`
	PassedCases int     `json:"passedCases"`
	FailedCases int     `json:"failedCases"`
	Overall     CategoryAccuracy `json:"overall"`

	ByCategory  map[evidence.Category]*CategoryAccuracy `json:"byCategory"`
	ByFramework map[string]*CategoryAccuracy            `json:"byFramework"`

	Results         []CaseResult `json:"results"`
	Recommendations []string     `json:"recommendations,omitempty"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Suite runs the corpus through a scanner.
type Suite struct {
	scanner *scanner.Scanner
	logger  *logging.Logger
	cases   []GroundTruthCase
}

// NewSuite creates an evaluation suite over the given scanner.
func NewSuite(s *scanner.Scanner, logger *logging.Logger) *Suite {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Suite{scanner: s, logger: logger}
}

// LoadCorpus loads and validates a corpus file, appending its cases.
func (s *Suite) LoadCorpus(path string) error {
	cases, err := LoadCorpus(path)
	if err != nil {
		return err
	}
	s.cases = append(s.cases, cases...)
	return nil
}

// AddCase adds a single ground-truth case programmatically.
func (s *Suite) AddCase(c GroundTruthCase) error {
	if err := validateCase(c); err != nil {
		return err
	}
	s.cases = append(s.cases, c)
	return nil
}

// Run scans every corpus case and returns the accuracy report.
func (s *Suite) Run(ctx context.Context) (*Report, error) {
	if len(s.cases) == 0 {
		return nil, fmt.Errorf("no corpus cases loaded")
	}

	report := &Report{
		StartTime:   time.Now(),
		TotalCases:  len(s.cases),
		ByCategory:  make(map[evidence.Category]*CategoryAccuracy),
		ByFramework: make(map[string]*CategoryAccuracy),
		Results:     make([]CaseResult, 0, len(s.cases)),
	}

	for _, c := range s.cases {
		cr := s.runCase(ctx, c)
		report.Results = append(report.Results, cr)
		if cr.Passed {
			report.PassedCases++
		} else {
			report.FailedCases++
		}

		for _, cmp := range cr.Comparisons {
			report.Overall.Total++
			tallyInto(report.ByCategory, cmp.Category, cmp.Correct)
			tallyFramework(report.ByFramework, c.Framework, cmp.Correct)
			if cmp.Correct {
				report.Overall.Correct++
			}
		}
	}

	report.EndTime = time.Now()
	finalize(&report.Overall)
	for _, acc := range report.ByCategory {
		finalize(acc)
	}
	for _, acc := range report.ByFramework {
		finalize(acc)
	}
	report.Recommendations = recommend(report)
	return report, nil
}

func (s *Suite) runCase(ctx context.Context, c GroundTruthCase) CaseResult {
	start := time.Now()
	cr := CaseResult{Case: c, Passed: true}

	pc, err := s.scanner.Scan(ctx, c.Root)
	cr.Duration = time.Since(start)
	if err != nil {
		cr.Error = err.Error()
		cr.Passed = false
		s.logger.Warn("corpus case scan failed", map[string]interface{}{
			"case":  c.ID,
			"error": err.Error(),
		})
		return cr
	}

	// Only categories the reviewer labelled are measured. A verdict on
	// a category the corpus is silent about neither helps nor hurts.
	for _, cat := range evidence.Categories() {
		expected, measured := c.Expected[cat]
		if !measured {
			continue
		}
		v := pc.Verdicts[cat]
		cmp := Comparison{
			Category:   cat,
			Expected:   expected,
			Actual:     v.Label,
			Confidence: v.Confidence,
			Correct:    v.Label == expected,
		}
		for _, ev := range v.Evidence {
			cmp.Evidence = append(cmp.Evidence, fmt.Sprintf("%s:%d %s", ev.File, ev.Line, ev.Excerpt))
		}
		if !cmp.Correct {
			cr.Passed = false
		}
		cr.Comparisons = append(cr.Comparisons, cmp)
	}
	return cr
}

func tallyInto(m map[evidence.Category]*CategoryAccuracy, cat evidence.Category, correct bool) {
	acc, ok := m[cat]
	if !ok {
		acc = &CategoryAccuracy{}
		m[cat] = acc
	}
	acc.Total++
	if correct {
		acc.Correct++
	}
}

func tallyFramework(m map[string]*CategoryAccuracy, framework string, correct bool) {
	if framework == "" {
		framework = "unspecified"
	}
	acc, ok := m[framework]
	if !ok {
		acc = &CategoryAccuracy{}
		m[framework] = acc
	}
	acc.Total++
	if correct {
		acc.Correct++
	}
}

func finalize(acc *CategoryAccuracy) {
	if acc.Total > 0 {
		acc.Accuracy = float64(acc.Correct) / float64(acc.Total) * 100
	}
}

// recommend flags categories and frameworks that trend well below the
// target, so catalogue work can be aimed where it pays off.
func recommend(r *Report) []string {
	var recs []string
	for _, cat := range evidence.Categories() {
		acc, ok := r.ByCategory[cat]
		if ok && acc.Total >= 3 && acc.Accuracy < 70 {
			recs = append(recs, fmt.Sprintf("%s accuracy is %.1f%% over %d measurements; review its construct shapes", cat, acc.Accuracy, acc.Total))
		}
	}
	frameworks := make([]string, 0, len(r.ByFramework))
	for fw := range r.ByFramework {
		frameworks = append(frameworks, fw)
	}
	sort.Strings(frameworks)
	for _, fw := range frameworks {
		acc := r.ByFramework[fw]
		if acc.Total >= 3 && acc.Accuracy < 70 {
			recs = append(recs, fmt.Sprintf("%s projects score %.1f%%; the catalogue may be missing %s idioms", fw, acc.Accuracy, fw))
		}
	}
	return recs
}

// FormatReport generates a human-readable report.
func (r *Report) FormatReport() string {
	var sb strings.Builder

	sb.WriteString("=== Pattern Detection Accuracy Report ===\n\n")
	fmt.Fprintf(&sb, "Cases:    %d (%d passed, %d failed)\n", r.TotalCases, r.PassedCases, r.FailedCases)
	fmt.Fprintf(&sb, "Overall:  %d/%d labels correct (%.1f%%)\n", r.Overall.Correct, r.Overall.Total, r.Overall.Accuracy)
	fmt.Fprintf(&sb, "Duration: %v\n\n", r.EndTime.Sub(r.StartTime).Round(time.Millisecond))

	sb.WriteString("By Category:\n")
	for _, cat := range evidence.Categories() {
		if acc, ok := r.ByCategory[cat]; ok {
			fmt.Fprintf(&sb, "  %-15s %d/%d (%.1f%%)\n", cat, acc.Correct, acc.Total, acc.Accuracy)
		}
	}
	sb.WriteString("\n")

	if len(r.ByFramework) > 0 {
		sb.WriteString("By Framework:\n")
		frameworks := make([]string, 0, len(r.ByFramework))
		for fw := range r.ByFramework {
			frameworks = append(frameworks, fw)
		}
		sort.Strings(frameworks)
		for _, fw := range frameworks {
			acc := r.ByFramework[fw]
			fmt.Fprintf(&sb, "  %-15s %d/%d (%.1f%%)\n", fw, acc.Correct, acc.Total, acc.Accuracy)
		}
		sb.WriteString("\n")
	}

	var anyFailed bool
	for _, cr := range r.Results {
		if cr.Passed {
			continue
		}
		if !anyFailed {
			sb.WriteString("Failed Cases:\n")
			anyFailed = true
		}
		fmt.Fprintf(&sb, "  [%s] %s\n", cr.Case.ID, cr.Case.Framework)
		if cr.Error != "" {
			fmt.Fprintf(&sb, "    Error: %s\n", cr.Error)
		}
		for _, cmp := range cr.Comparisons {
			if cmp.Correct {
				continue
			}
			fmt.Fprintf(&sb, "    %s: expected %q, got %q (confidence %d)\n", cmp.Category, cmp.Expected, cmp.Actual, cmp.Confidence)
			for i, ev := range cmp.Evidence {
				if i >= 3 {
					break
				}
				fmt.Fprintf(&sb, "      evidence: %s\n", ev)
			}
		}
		sb.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		sb.WriteString("Recommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&sb, "  - %s\n", rec)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Success Criteria:\n")
	fmt.Fprintf(&sb, "  Overall accuracy >= %.0f%%: %v (current: %.1f%%)\n", accuracyTarget, r.Overall.Accuracy >= accuracyTarget, r.Overall.Accuracy)

	return sb.String()
}

// JSON returns the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
