package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

const assistSystemPrompt = "You are an AI assistant that helps design data pipelines. " +
	"Represent pipelines as steps: source, transform, destination. Respond concisely."

const generatePromptTemplate = `You are an expert data pipeline architect. Generate a data pipeline configuration and Python code that uses service account credentials (NOT interactive OAuth).

User Requirements:
%s

IMPORTANT: For Google Sheets access, use google.oauth2.service_account credentials with credentials.json, NOT InstalledAppFlow.
The code runs in a server environment, so it must use non-interactive authentication.

Respond with EXACTLY this format (no extra text):

=== PIPELINE_CONFIG ===
name: pipeline_name
description: brief description
trigger: scheduled
schedule: "0 9 * * *"
source:
  type: Google_Sheets
  config:
    spreadsheetId: "your-spreadsheet-id"
    range: "Sheet1!A1:Z1000"
    credentialsPath: "credentials.json"
transformations:
  - name: Clean Data
    type: filter
    operation: remove_nulls
destination:
  type: Google_Sheets
  config:
    spreadsheetId: "your-spreadsheet-id"
    range: "output!A1"
    credentialsPath: "credentials.json"

=== PIPELINE_CODE ===
<a complete Python script reading the source sheet, applying the transformations and writing the destination sheet; it prints progress and raises on failure>

=== TEST_CODE ===
<optional pytest tests for the transformation functions>

=== EXECUTION_STRATEGY ===
<numbered list of execution steps>`

// Assist answers a free-form design question, optionally about pipeline.
func Assist(ctx context.Context, c Client, prompt string, pipeline *connector.Pipeline) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errhandling.Validation("assist", "missing prompt", nil)
	}
	user := prompt
	if pipeline != nil {
		doc, err := json.MarshalIndent(pipeline, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding pipeline: %w", err)
		}
		user = fmt.Sprintf("Current pipeline JSON:\n%s\nUser request: %s", doc, prompt)
	}
	text, err := c.Complete(ctx, assistSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("AI request failed: %w", err)
	}
	return text, nil
}

// GenerateRequest asks for a generated pipeline.
type GenerateRequest struct {
	Instructions string `json:"instructions" validate:"required"`
	OwnerEmail   string `json:"ownerEmail"`
	PipelineName string `json:"pipelineName"`
}

// Generation is a parsed generated pipeline.
type Generation struct {
	Config      string `json:"config"`
	Code        string `json:"code"`
	Tests       string `json:"tests,omitempty"`
	Strategy    string `json:"strategy"`
	RawResponse string `json:"rawResponse"`
	Warning     string `json:"warning,omitempty"`
}

// GeneratePrompt builds the generation prompt for instructions.
func GeneratePrompt(instructions string) string {
	return fmt.Sprintf(generatePromptTemplate, instructions)
}

// Generate asks the provider for a pipeline config, script and strategy. A
// provider timeout yields the template generation with a warning instead of
// an error.
func Generate(ctx context.Context, c Client, req GenerateRequest) (*Generation, error) {
	if strings.TrimSpace(req.Instructions) == "" {
		return nil, errhandling.Validation("assist.generate", "instructions are required", nil)
	}
	text, err := c.Complete(ctx, "", GeneratePrompt(req.Instructions))
	if err != nil {
		if IsTimeout(err) {
			logger.Warn("AI provider timed out, returning template pipeline", slog.String("error", err.Error()))
			return Template(req.PipelineName), nil
		}
		return nil, fmt.Errorf("generating pipeline: %w", err)
	}

	s := ParseSections(text)
	g := &Generation{
		Config:      s.Config,
		Code:        s.Code,
		Tests:       s.Tests,
		Strategy:    s.Strategy,
		RawResponse: text,
	}
	if s.Partial {
		logger.Warn("AI response is missing sections", slog.Int("response_length", len(text)))
		g.Warning = "Partial response from AI - some sections may be missing"
	}
	return g, nil
}

// Template is the generation returned when the provider times out.
func Template(name string) *Generation {
	if name == "" {
		name = "new_pipeline"
	}
	return &Generation{
		Config: fmt.Sprintf(`name: %s
description: Auto-generated pipeline
trigger: scheduled
schedule: "0 9 * * *"
source:
  type: CSV
  config:
    path: input.csv
transformations:
  - name: Data Cleaning
    type: filter
    operation: remove_nulls
destination:
  type: JSON
  config:
    path: output.json`, name),
		Code: `import pandas as pd


def run_pipeline():
    df = pd.read_csv('input.csv')
    df = df.dropna()
    df.to_json('output.json', orient='records')
    print("Pipeline completed")


if __name__ == "__main__":
    run_pipeline()`,
		Strategy:    "Basic pipeline execution strategy",
		RawResponse: "Generated from template due to API timeout",
		Warning:     "AI provider timed out. Using template response. Please try again.",
	}
}
