package config

import (
	"testing"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

func TestConvertToPipeline(t *testing.T) {
	result := ParseDefinition(validYAML, FormatYAML)
	if !result.IsValid() {
		t.Fatalf("ParseDefinition() errors = %v", result.AllErrors())
	}

	p, err := ConvertToPipeline(result.Data)
	if err != nil {
		t.Fatalf("ConvertToPipeline() error = %v", err)
	}

	if p.Name != "Sales sync" || p.OwnerEmail != "ops@company.com" {
		t.Errorf("pipeline = %+v", p)
	}
	if p.Status != connector.StatusDraft || p.Trigger != connector.TriggerManual || p.Version != 1 {
		t.Errorf("defaults not applied: %+v", p)
	}
	if len(p.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(p.Steps))
	}
	if p.Steps[0].ID != "src" {
		t.Errorf("explicit step id lost: %q", p.Steps[0].ID)
	}
	if p.Steps[1].ID == "" {
		t.Error("missing step id should be generated")
	}
	if p.Steps[2].Type != connector.StepDestination {
		t.Errorf("Steps[2].Type = %q", p.Steps[2].Type)
	}
	if got := p.Steps[0].Config["spreadsheetId"]; got != "abc" {
		t.Errorf("step config lost: %v", p.Steps[0].Config)
	}
}

func TestConvertToPipeline_DefaultOwner(t *testing.T) {
	p, err := ConvertToPipeline(map[string]any{"name": "x", "steps": []any{}})
	if err != nil {
		t.Fatalf("ConvertToPipeline() error = %v", err)
	}
	if p.OwnerEmail != DefaultOwner {
		t.Errorf("OwnerEmail = %q, want %q", p.OwnerEmail, DefaultOwner)
	}
	if p.Steps == nil {
		t.Error("Steps should be an empty slice, not nil")
	}
}

func TestConvertToPipeline_NoName(t *testing.T) {
	if _, err := ConvertToPipeline(map[string]any{"steps": []any{}}); err == nil {
		t.Fatal("ConvertToPipeline() expected error for missing name")
	}
}

func TestLoadPipeline(t *testing.T) {
	path := writeTemp(t, "p.json", validJSON)
	p, result, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline() error = %v (%v)", err, result.AllErrors())
	}
	if len(p.Steps) != 1 {
		t.Errorf("len(Steps) = %d", len(p.Steps))
	}

	bad := writeTemp(t, "bad.json", `{"steps": []}`)
	if _, result, err := LoadPipeline(bad); err == nil || len(result.ValidationErrors) == 0 {
		t.Errorf("LoadPipeline(bad) err = %v, validation = %v", err, result.ValidationErrors)
	}
}
