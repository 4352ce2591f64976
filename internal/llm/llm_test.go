package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestNewReturnsDisabledWithoutProvider(t *testing.T) {
	c := New(Options{})
	if _, ok := c.(Disabled); !ok {
		t.Fatalf("expected Disabled client, got %T", c)
	}

	if _, err := c.ValidatePlace(context.Background(), "junto a la fuente", "Hotel"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := c.ClassifyDepartment(context.Background(), "x", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestStripFences(t *testing.T) {
	fenced := "```json\n{\"is_place\": true}\n```"
	var j PlaceJudgment
	if err := json.Unmarshal([]byte(stripFences(fenced)), &j); err != nil {
		t.Fatalf("fenced payload should parse: %v", err)
	}
	if !j.IsPlace {
		t.Fatal("unexpected judgment")
	}

	if got := stripFences("  plain  "); got != "plain" {
		t.Fatalf("stripFences trim: %q", got)
	}
}

func TestClamp01(t *testing.T) {
	if clamp01(-0.2) != 0 || clamp01(1.7) != 1 || clamp01(0.5) != 0.5 {
		t.Fatal("clamp01 out of contract")
	}
}
