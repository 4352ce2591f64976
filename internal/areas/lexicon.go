package areas

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"incidentbot/internal/domain"
)

// DeptLexicon is the keyword material for one department. All matching is
// data-driven so the lexicon grows without touching the detector.
type DeptLexicon struct {
	Code    string   `yaml:"code"`
	Label   string   `yaml:"label"`
	Aliases []string `yaml:"aliases"`
	Hints   []string `yaml:"hints"`
	Devices []string `yaml:"devices"`
}

type Lexicon struct {
	Departments []DeptLexicon `yaml:"departments"`
	// Generic breakage phrasing ("no sirve", "no enciende") that only
	// carries signal next to a department-bound device noun.
	FailurePhrases []string `yaml:"failure_phrases"`
}

// LoadLexicon reads the department lexicon. It is required configuration:
// missing or malformed files abort startup.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon yaml: %w", err)
	}
	return &lex, ValidateLexicon(&lex)
}

// ValidateLexicon rejects departments outside the closed set and empty files.
func ValidateLexicon(lex *Lexicon) error {
	if len(lex.Departments) == 0 {
		return fmt.Errorf("lexicon has no departments")
	}
	for _, d := range lex.Departments {
		if !domain.ValidDepartment(d.Code) {
			return fmt.Errorf("lexicon department %q is not in the closed set", d.Code)
		}
		if d.Label == "" {
			return fmt.Errorf("lexicon department %q has no label", d.Code)
		}
	}
	return nil
}
