package config

import (
	"strings"
	"testing"
)

func TestValidateDefinition(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		wantPath string
	}{
		{
			name: "valid",
			data: map[string]any{
				"name":  "p",
				"steps": []any{map[string]any{"type": "source", "name": "s"}},
			},
		},
		{
			name:     "empty",
			data:     map[string]any{},
			wantPath: "/",
		},
		{
			name:     "missing steps",
			data:     map[string]any{"name": "p"},
			wantPath: "/",
		},
		{
			name: "bad step type",
			data: map[string]any{
				"name":  "p",
				"steps": []any{map[string]any{"type": "sink", "name": "s"}},
			},
			wantPath: "/steps/0/type",
		},
		{
			name: "bad trigger",
			data: map[string]any{
				"name":    "p",
				"trigger": "hourly",
				"steps":   []any{},
			},
			wantPath: "/trigger",
		},
		{
			name: "scheduled without schedule",
			data: map[string]any{
				"name":    "p",
				"trigger": "scheduled",
				"steps":   []any{},
			},
			wantPath: "/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateDefinition(tt.data)
			if tt.wantPath == "" {
				if len(errs) != 0 {
					t.Fatalf("ValidateDefinition() errors = %v", errs)
				}
				return
			}
			if len(errs) == 0 {
				t.Fatal("ValidateDefinition() expected errors")
			}
			found := false
			for _, e := range errs {
				if e.Path == tt.wantPath {
					found = true
				}
			}
			if !found {
				t.Errorf("no error at %s: %v", tt.wantPath, errs)
			}
		})
	}
}

func TestEmbeddedSchema(t *testing.T) {
	if !strings.Contains(string(EmbeddedSchema()), `"steps"`) {
		t.Fatal("embedded schema does not describe steps")
	}
	if _, err := getCompiledSchema(); err != nil {
		t.Fatalf("getCompiledSchema() error = %v", err)
	}
}
