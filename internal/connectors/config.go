package connectors

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// DefaultCredentialsPath is used when a step names no credentials file.
const DefaultCredentialsPath = "credentials.json"

// SourceConfig is the typed configuration of a source step.
type SourceConfig struct {
	Connector       string `mapstructure:"connector"`
	Type            string `mapstructure:"type"`
	SpreadsheetID   string `mapstructure:"spreadsheetId"`
	Range           string `mapstructure:"range"`
	SheetName       string `mapstructure:"sheetName"`
	CredentialsPath string `mapstructure:"credentialsPath"`
	// Table and Query apply to relational sources.
	Table string `mapstructure:"table"`
	Query string `mapstructure:"query"`
}

// DestinationConfig is the typed configuration of a destination step.
type DestinationConfig struct {
	Connector       string `mapstructure:"connector"`
	Type            string `mapstructure:"type"`
	SpreadsheetID   string `mapstructure:"spreadsheetId"`
	Range           string `mapstructure:"range"`
	SheetName       string `mapstructure:"sheetName"`
	CredentialsPath string `mapstructure:"credentialsPath"`
	Table           string `mapstructure:"table"`
	// DefaultSheetName is filled in by the engine, not by users.
	DefaultSheetName string `mapstructure:"-"`
}

// FieldError names the configuration field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// DecodeSourceConfig decodes and validates a source step configuration
// for the given kind.
func DecodeSourceConfig(kind Kind, raw map[string]any) (SourceConfig, error) {
	var cfg SourceConfig
	if err := decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding source config: %w", err)
	}
	if kind == KindGoogleSheets {
		var errs []error
		if strings.TrimSpace(cfg.SpreadsheetID) == "" {
			errs = append(errs, FieldError{"spreadsheetId", "is required"})
		}
		if cfg.Range == "" && cfg.SheetName == "" {
			errs = append(errs, FieldError{"range", "range or sheetName is required"})
		}
		if err := errors.Join(errs...); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// DecodeDestinationConfig decodes and validates a destination step
// configuration for the given kind.
func DecodeDestinationConfig(kind Kind, raw map[string]any) (DestinationConfig, error) {
	var cfg DestinationConfig
	if err := decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding destination config: %w", err)
	}
	if kind == KindGoogleSheets && strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return cfg, FieldError{"spreadsheetId", "is required"}
	}
	return cfg, nil
}

// NormalizeKind maps user spellings to a Kind.
func NormalizeKind(s string) Kind {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("-", "_", " ", "_").Replace(k)
	switch k {
	case "google_sheets", "googlesheets", "sheets", "gsheets":
		return KindGoogleSheets
	case "mysql":
		return KindMySQL
	case "postgresql", "postgres", "pg":
		return KindPostgreSQL
	default:
		return KindUnknown
	}
}

// ResolveKind determines the connector kind of a source or destination step.
// An explicit "connector" field wins. A "type" field counts when it names a
// known kind. Otherwise the kind is inferred from the step name, which is
// deprecated and logged.
func ResolveKind(step connector.Step) Kind {
	if v, ok := step.Config["connector"].(string); ok && strings.TrimSpace(v) != "" {
		return NormalizeKind(v)
	}
	if v, ok := step.Config["type"].(string); ok {
		if k := NormalizeKind(v); k != KindUnknown {
			return k
		}
	}

	name := strings.ToLower(step.Name)
	var inferred Kind
	switch {
	case strings.Contains(name, "google sheets"):
		inferred = KindGoogleSheets
	case strings.Contains(name, "mysql"):
		inferred = KindMySQL
	case strings.Contains(name, "postgresql"), strings.Contains(name, "postgres"):
		inferred = KindPostgreSQL
	default:
		return KindUnknown
	}
	logger.Warn("connector kind inferred from step name; set config.connector explicitly",
		slog.String("step_id", step.ID),
		slog.String("step_name", step.Name),
		slog.String("connector", string(inferred)),
	)
	return inferred
}
