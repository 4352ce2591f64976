package areas

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadLexicon(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	content := `
departments:
  - code: mantenimiento
    label: Mantenimiento
    aliases: ["manto"]
    hints: ["aire", "fuga"]
    devices: ["boiler"]
failure_phrases: ["no sirve"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	lex, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("LoadLexicon: %v", err)
	}
	if len(lex.Departments) != 1 || lex.Departments[0].Code != "mantenimiento" {
		t.Fatalf("unexpected lexicon: %+v", lex)
	}
	if len(lex.FailurePhrases) != 1 {
		t.Fatalf("failure phrases not loaded: %+v", lex.FailurePhrases)
	}

	if _, err := LoadLexicon(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing lexicon must error (startup-fatal)")
	}
}

func TestValidateLexiconRejectsUnknownDepartment(t *testing.T) {
	lex := &Lexicon{Departments: []DeptLexicon{{Code: "valet", Label: "Valet"}}}
	if err := ValidateLexicon(lex); err == nil {
		t.Fatal("department outside the closed set must be rejected")
	}

	if err := ValidateLexicon(&Lexicon{}); err == nil {
		t.Fatal("empty lexicon must be rejected")
	}
}
