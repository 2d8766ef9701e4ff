package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/artifacts"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

func sheets(t connector.StepType, extra map[string]any) connector.Step {
	cfg := map[string]any{"connector": "google_sheets", "spreadsheetId": "abc", "sheetName": "Data"}
	for k, v := range extra {
		cfg[k] = v
	}
	return connector.Step{ID: string(t), Type: t, Name: string(t), Config: cfg}
}

func TestValidateSteps(t *testing.T) {
	tests := []struct {
		name    string
		steps   []connector.Step
		wantErr string
	}{
		{"empty", nil, ""},
		{"valid sheets pipeline", []connector.Step{
			sheets(connector.StepSource, nil),
			{Type: connector.StepTransform, Config: map[string]any{"selectColumns": []any{"a"}}},
			sheets(connector.StepDestination, nil),
		}, ""},
		{"relational endpoint is not decoded", []connector.Step{
			{Type: connector.StepSource, Config: map[string]any{"connector": "mysql"}},
		}, ""},
		{"transform without config", []connector.Step{{Type: connector.StepTransform}}, ""},
		{"sheets source missing id", []connector.Step{
			{ID: "src", Type: connector.StepSource, Config: map[string]any{"connector": "google_sheets", "range": "A1:B2"}},
		}, "steps[0] (src): spreadsheetId"},
		{"bad where expression", []connector.Step{
			{Type: connector.StepTransform, Config: map[string]any{"where": "amount >"}},
		}, "steps[0]: where"},
		{"unknown type", []connector.Step{{Type: "sink"}}, `unknown step type "sink"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSteps(tt.steps)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateSteps() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("ValidateSteps() error = %v, want %q", err, tt.wantErr)
			}
			if !errhandling.IsValidation(err) {
				t.Error("error should be classified as validation")
			}
			var se *StepError
			if !errors.As(err, &se) {
				t.Error("error should carry a StepError")
			}
		})
	}
}

func findCheck(r Report, name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

func TestChecklist_Complete(t *testing.T) {
	p := connector.Pipeline{
		Name: "Sales", Description: "nightly", OwnerEmail: "a@b.c",
		Trigger: connector.TriggerScheduled, Schedule: "0 2 * * *", Status: connector.StatusActive,
		Steps: []connector.Step{
			sheets(connector.StepSource, nil),
			{Type: connector.StepTransform, Config: map[string]any{"selectColumns": []any{"a"}}},
			sheets(connector.StepDestination, nil),
		},
	}
	r := Checklist(p, nil)
	pass, warn, fail := r.Counts()
	if !r.Valid || warn != 0 || fail != 0 {
		t.Fatalf("Checklist() = %+v", r)
	}
	if pass != len(r.Checks) || !strings.HasPrefix(r.Summary, "Pipeline is valid") {
		t.Errorf("Summary = %q", r.Summary)
	}
}

func TestChecklist_Findings(t *testing.T) {
	tests := []struct {
		name   string
		p      connector.Pipeline
		check  string
		status CheckStatus
	}{
		{"missing name", connector.Pipeline{}, "Pipeline Name", CheckFail},
		{"no source", connector.Pipeline{Name: "x"}, "Data Source", CheckFail},
		{"draft", connector.Pipeline{Name: "x", Status: connector.StatusDraft}, "Pipeline Status", CheckWarn},
		{"no schedule", connector.Pipeline{Trigger: connector.TriggerScheduled}, "Schedule", CheckWarn},
		{"bad schedule", connector.Pipeline{Trigger: connector.TriggerScheduled, Schedule: "daily"}, "Schedule", CheckFail},
		{"destination before source", connector.Pipeline{Steps: []connector.Step{
			sheets(connector.StepDestination, nil), sheets(connector.StepSource, nil),
		}}, "Step Order", CheckWarn},
		{"step without config", connector.Pipeline{Steps: []connector.Step{{Type: connector.StepTransform}}}, "Step Configuration", CheckWarn},
		{"invalid step config", connector.Pipeline{Steps: []connector.Step{
			sheets(connector.StepTransform, map[string]any{"aggregations": []any{map[string]any{"operation": "sum"}}}),
		}}, "Step Configuration", CheckFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := findCheck(Checklist(tt.p, nil), tt.check)
			if !ok {
				t.Fatalf("check %q missing", tt.check)
			}
			if c.Status != tt.status {
				t.Errorf("%s = %s (%s), want %s", tt.check, c.Status, c.Message, tt.status)
			}
		})
	}
}

func TestChecklist_ConfigSummarySatisfiesEndpoints(t *testing.T) {
	r := Checklist(connector.Pipeline{Name: "gen", Trigger: connector.TriggerManual},
		&artifacts.ConfigSummary{Name: "gen", HasSource: true, HasDestination: true})
	if !r.Valid {
		t.Fatalf("Checklist() = %+v", r)
	}
	if _, ok := findCheck(r, "Step Order"); ok {
		t.Error("order check needs both endpoint steps")
	}
	if !strings.Contains(r.Summary, "recommendations") {
		t.Errorf("Summary = %q", r.Summary)
	}
}
