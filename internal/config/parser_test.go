package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `name: Sales sync
owner: ops@company.com
trigger: manual
steps:
  - id: src
    type: source
    name: Google Sheets
    config:
      connector: google_sheets
      spreadsheetId: abc
      range: Sheet1!A1:D
  - type: transform
    name: Clean
    config:
      selectColumns: [region, amount]
  - type: destination
    name: Google Sheets
    config:
      connector: google_sheets
      spreadsheetId: abc
      sheetName: Out
`

const validJSON = `{
  "name": "Sales sync",
  "steps": [
    {"type": "source", "name": "Sheet", "config": {"connector": "google_sheets"}}
  ]
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestParseDefinitionFile(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		content    string
		wantFormat string
		wantValid  bool
	}{
		{"yaml by extension", "p.yaml", validYAML, FormatYAML, true},
		{"json by extension", "p.json", validJSON, FormatJSON, true},
		{"json by content", "p.def", validJSON, FormatJSON, true},
		{"yaml by content", "p.def", validYAML, FormatYAML, true},
		{"broken json", "p.json", `{"name": `, FormatJSON, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.file, tt.content)
			result := ParseDefinitionFile(path)
			if result.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", result.Format, tt.wantFormat)
			}
			if result.IsValid() != tt.wantValid {
				t.Errorf("IsValid() = %v, errors = %v", result.IsValid(), result.AllErrors())
			}
			if result.FilePath != path {
				t.Errorf("FilePath = %q", result.FilePath)
			}
		})
	}
}

func TestParseDefinitionFile_Missing(t *testing.T) {
	result := ParseDefinitionFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if len(result.ParseErrors) != 1 || result.ParseErrors[0].Type != ErrorTypeIO {
		t.Fatalf("ParseErrors = %v, want one io error", result.ParseErrors)
	}
}

func TestParseDefinition_JSONSyntaxLocation(t *testing.T) {
	result := ParseDefinition("{\n  \"name\": \"x\",\n  oops\n}", FormatJSON)
	if len(result.ParseErrors) != 1 {
		t.Fatalf("ParseErrors = %v", result.ParseErrors)
	}
	perr := result.ParseErrors[0]
	if perr.Type != ErrorTypeSyntax || perr.Line != 3 {
		t.Errorf("ParseError = %+v, want syntax error on line 3", perr)
	}
}

func TestParseDefinition_YAMLSyntaxLine(t *testing.T) {
	result := ParseDefinition("name: x\nsteps: [unclosed\n", FormatYAML)
	if len(result.ParseErrors) != 1 {
		t.Fatalf("ParseErrors = %v", result.ParseErrors)
	}
	if result.ParseErrors[0].Line == 0 {
		t.Errorf("expected a line number, got %+v", result.ParseErrors[0])
	}
}

func TestParseDefinition_NotAnObject(t *testing.T) {
	for _, tc := range []struct{ content, format string }{
		{"[1, 2]", FormatJSON},
		{"- a\n- b\n", FormatYAML},
	} {
		result := ParseDefinition(tc.content, tc.format)
		if len(result.ParseErrors) != 1 || result.ParseErrors[0].Type != ErrorTypeFormat {
			t.Errorf("ParseDefinition(%q) errors = %v, want format error", tc.content, result.ParseErrors)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]string{
		"a.json": FormatJSON,
		"a.YAML": FormatYAML,
		"a.yml":  FormatYAML,
		"a.txt":  "",
	}
	for in, want := range tests {
		if got := DetectFormat(in); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseErrorString(t *testing.T) {
	e := ParseError{Path: "p.yaml", Line: 3, Column: 5, Message: "bad"}
	if got := e.Error(); got != "p.yaml: line 3, column 5: bad" {
		t.Errorf("Error() = %q", got)
	}
}
