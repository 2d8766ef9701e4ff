package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseDefinitionFile reads, parses and schema-validates a pipeline
// definition. The format comes from the extension, else from the content.
func ParseDefinitionFile(filePath string) *Result {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return &Result{
			FilePath: filePath,
			ParseErrors: []ParseError{{
				Path:    filePath,
				Message: fmt.Sprintf("failed to read file: %v", err),
				Type:    ErrorTypeIO,
			}},
		}
	}

	result := ParseDefinition(string(content), DetectFormat(filePath))
	result.FilePath = filePath
	for i := range result.ParseErrors {
		if result.ParseErrors[i].Path == "" {
			result.ParseErrors[i].Path = filePath
		}
	}
	return result
}

// ParseDefinition parses and schema-validates definition content. An empty
// format is detected from the content.
func ParseDefinition(content, format string) *Result {
	result := &Result{Format: format}

	if format == "" {
		switch {
		case IsJSON(content):
			format = FormatJSON
		case IsYAML(content):
			format = FormatYAML
		default:
			result.ParseErrors = append(result.ParseErrors, ParseError{
				Message: "unable to detect definition format: not valid JSON or YAML",
				Type:    ErrorTypeFormat,
			})
			return result
		}
		result.Format = format
	}

	var (
		data map[string]any
		perr *ParseError
	)
	switch format {
	case FormatJSON:
		data, perr = parseJSON(content)
	case FormatYAML:
		data, perr = parseYAML(content)
	default:
		perr = &ParseError{Message: fmt.Sprintf("unsupported format: %s", format), Type: ErrorTypeFormat}
	}
	if perr != nil {
		result.ParseErrors = append(result.ParseErrors, *perr)
		return result
	}

	result.Data = data
	result.ValidationErrors = ValidateDefinition(data)
	return result
}

// DetectFormat detects the document format from a file extension.
// Returns "json", "yaml", or "" when unknown.
func DetectFormat(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// IsJSON reports whether content looks like a JSON document.
func IsJSON(content string) bool {
	content = strings.TrimSpace(content)
	return strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[")
}

// IsYAML reports whether content parses as a non-empty YAML document.
func IsYAML(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	var data any
	return yaml.Unmarshal([]byte(content), &data) == nil && data != nil
}

func parseJSON(content string) (map[string]any, *ParseError) {
	if strings.TrimSpace(content) == "" {
		return nil, &ParseError{Message: "empty content: expected JSON object", Type: ErrorTypeSyntax}
	}

	var data any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		perr := &ParseError{Message: err.Error(), Type: ErrorTypeSyntax}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			perr.Line, perr.Column = offsetToLineColumn(content, syntaxErr.Offset)
			perr.Message = fmt.Sprintf("JSON syntax error: %s", syntaxErr.Error())
		}
		return nil, perr
	}

	m, ok := data.(map[string]any)
	if !ok {
		return nil, &ParseError{
			Message: fmt.Sprintf("invalid definition: expected JSON object, got %T", data),
			Type:    ErrorTypeFormat,
		}
	}
	return m, nil
}

func parseYAML(content string) (map[string]any, *ParseError) {
	if strings.TrimSpace(content) == "" {
		return nil, &ParseError{Message: "empty content: expected YAML document", Type: ErrorTypeSyntax}
	}

	var data any
	if err := yaml.Unmarshal([]byte(content), &data); err != nil {
		perr := &ParseError{Message: err.Error(), Type: ErrorTypeSyntax}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			perr.Message = fmt.Sprintf("YAML type error: %s", strings.Join(typeErr.Errors, "; "))
		}
		// yaml.v3 reports "yaml: line N: ..."
		var line int
		if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
			perr.Line = line
		}
		return nil, perr
	}

	m, ok := data.(map[string]any)
	if !ok {
		return nil, &ParseError{
			Message: fmt.Sprintf("invalid definition: expected YAML mapping, got %T", data),
			Type:    ErrorTypeFormat,
		}
	}
	return m, nil
}

// offsetToLineColumn converts a byte offset to 1-based line and column numbers.
func offsetToLineColumn(content string, offset int64) (line, column int) {
	line, column = 1, 1
	for i := int64(0); i < offset-1 && i < int64(len(content)); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
