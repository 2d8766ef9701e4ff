// Package transform implements the built-in transformation interpreter.
//
// A transform step carries a free-form configuration map. DecodeConfig turns
// it into a Config, and Interpreter.Apply runs the configured stages over a
// row-set in a fixed order: column mapping, filtering, derived columns,
// projection, type conversion, grouping and finally an optional script.
package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/mitchellh/mapstructure"
)

// MaxScriptLength is the maximum accepted script size in bytes.
const MaxScriptLength = 100 * 1024

// Condition is the set of predicates applied to one column. Every predicate
// that is set must hold for the row to be kept.
type Condition struct {
	Equals      any      `mapstructure:"equals"`
	NotEquals   any      `mapstructure:"notEquals"`
	GreaterThan *float64 `mapstructure:"greaterThan"`
	LessThan    *float64 `mapstructure:"lessThan"`
	Contains    *string  `mapstructure:"contains"`
	NotNull     bool     `mapstructure:"notNull"`
}

// AddColumn derives a new column from an expression with {column} placeholders.
type AddColumn struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
	Type       string `mapstructure:"type"`
}

// Aggregation computes one value per group.
type Aggregation struct {
	Column    string `mapstructure:"column"`
	Operation string `mapstructure:"operation"`
	Alias     string `mapstructure:"alias"`
}

// OutputName is the alias, or column_operation when no alias is set.
func (a Aggregation) OutputName() string {
	if a.Alias != "" {
		return a.Alias
	}
	return a.Column + "_" + a.Operation
}

// Config is the typed configuration of a transform step.
type Config struct {
	ColumnMapping map[string]string    `mapstructure:"columnMapping"`
	Filter        map[string]Condition `mapstructure:"filter"`
	Where         string               `mapstructure:"where"`
	AddColumns    []AddColumn          `mapstructure:"addColumns"`
	SelectColumns []string             `mapstructure:"selectColumns"`
	ConvertTypes  map[string]string    `mapstructure:"convertTypes"`
	GroupBy       []string             `mapstructure:"groupBy"`
	Aggregations  []Aggregation        `mapstructure:"aggregations"`
	Script        string               `mapstructure:"script"`
}

// Empty reports whether no stage is configured.
func (c Config) Empty() bool {
	return len(c.ColumnMapping) == 0 && len(c.Filter) == 0 && c.Where == "" &&
		len(c.AddColumns) == 0 && c.SelectColumns == nil && len(c.ConvertTypes) == 0 &&
		!c.grouping() && strings.TrimSpace(c.Script) == ""
}

func (c Config) grouping() bool {
	return len(c.GroupBy) > 0 && len(c.Aggregations) > 0
}

// Known conversion targets and aggregation operations.
var (
	conversionTargets = map[string]bool{"number": true, "string": true, "boolean": true, "uppercase": true, "lowercase": true}
	aggregationOps    = map[string]bool{"sum": true, "avg": true, "count": true, "min": true, "max": true}
)

// DecodeConfig decodes a transform step configuration and validates it.
// A single groupBy string is accepted as a one-column list.
func DecodeConfig(raw map[string]any) (Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("decoding transform config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the parts of a Config that would make a stage fail. Unknown
// conversion targets and aggregation operations are tolerated and skipped at
// run time.
func (c Config) Validate() error {
	var errs []error
	for from, to := range c.ColumnMapping {
		if strings.TrimSpace(to) == "" {
			errs = append(errs, fmt.Errorf("columnMapping.%s: target name is empty", from))
		}
	}
	for i, col := range c.AddColumns {
		if strings.TrimSpace(col.Name) == "" {
			errs = append(errs, fmt.Errorf("addColumns[%d]: name is required", i))
		}
	}
	for i, a := range c.Aggregations {
		if strings.TrimSpace(a.Column) == "" && a.Operation != "count" {
			errs = append(errs, fmt.Errorf("aggregations[%d]: column is required", i))
		}
	}
	if c.Where != "" {
		if _, err := expr.Compile(c.Where, expr.AllowUndefinedVariables(), expr.AsBool()); err != nil {
			errs = append(errs, fmt.Errorf("where: %w", err))
		}
	}
	if c.Script != "" {
		switch {
		case strings.TrimSpace(c.Script) == "":
			errs = append(errs, errors.New("script: cannot be empty"))
		case len(c.Script) > MaxScriptLength:
			errs = append(errs, fmt.Errorf("script: %d bytes exceeds maximum %d bytes", len(c.Script), MaxScriptLength))
		}
	}
	return errors.Join(errs...)
}
