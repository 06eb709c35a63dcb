package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"patternguard/internal/evidence"
	"patternguard/internal/pgerrors"
)

// GroundTruthCase is one labelled project in the accuracy corpus: a
// project root plus the convention labels a human reviewer assigned to
// it. Categories absent from Expected are not measured for this case.
type GroundTruthCase struct {
	// ID is a unique identifier for this case.
	ID string `json:"id" yaml:"id"`

	// Root is the project directory to scan. Relative roots are
	// resolved against the corpus file's directory at load time.
	Root string `json:"root" yaml:"root"`

	// Framework names the stack the project uses, for per-framework
	// accuracy breakdown (e.g. "express", "django").
	Framework string `json:"framework" yaml:"framework"`

	// Expected maps each measured category to its ground-truth label.
	Expected map[evidence.Category]string `json:"expected" yaml:"expected"`
}

// LoadCorpus reads ground-truth cases from a YAML or JSON file. A case
// that references a label outside the fixed vocabulary fails the whole
// load: a corpus that cannot be trusted must not produce a report.
func LoadCorpus(path string) ([]GroundTruthCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pgerrors.New(pgerrors.CorpusInvalid, fmt.Sprintf("failed to read corpus %q", path), err)
	}

	var cases []GroundTruthCase
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &cases)
	} else {
		err = yaml.Unmarshal(data, &cases)
	}
	if err != nil {
		return nil, pgerrors.New(pgerrors.CorpusInvalid, fmt.Sprintf("failed to parse corpus %q", path), err)
	}

	baseDir := filepath.Dir(path)
	for i := range cases {
		if cases[i].ID == "" {
			cases[i].ID = fmt.Sprintf("case-%d", i+1)
		}
		if !filepath.IsAbs(cases[i].Root) {
			cases[i].Root = filepath.Join(baseDir, cases[i].Root)
		}
		if err := validateCase(cases[i]); err != nil {
			return nil, err
		}
	}
	return cases, nil
}

func validateCase(c GroundTruthCase) error {
	if c.Root == "" {
		return pgerrors.New(pgerrors.CorpusInvalid, fmt.Sprintf("case %q has no root", c.ID), nil)
	}
	if len(c.Expected) == 0 {
		return pgerrors.New(pgerrors.CorpusInvalid, fmt.Sprintf("case %q expects nothing", c.ID), nil)
	}
	for cat, label := range c.Expected {
		if !validCategory(cat) {
			return pgerrors.New(pgerrors.CorpusInvalid, fmt.Sprintf("case %q uses unknown category %q", c.ID, cat), nil)
		}
		if label != evidence.LabelUnknown && !evidence.KnownLabel(cat, label) {
			return pgerrors.New(pgerrors.CorpusInvalid, fmt.Sprintf("case %q expects label %q outside the %s vocabulary", c.ID, label, cat), nil)
		}
	}
	return nil
}

func validCategory(cat evidence.Category) bool {
	for _, known := range evidence.Categories() {
		if cat == known {
			return true
		}
	}
	return false
}
