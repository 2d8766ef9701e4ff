package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// Definition is the document shape of a pipeline definition.
type Definition struct {
	Name        string           `mapstructure:"name"`
	Description string           `mapstructure:"description"`
	Owner       string           `mapstructure:"owner"`
	OwnerEmail  string           `mapstructure:"ownerEmail"`
	Trigger     string           `mapstructure:"trigger"`
	Schedule    string           `mapstructure:"schedule"`
	Steps       []DefinitionStep `mapstructure:"steps"`
}

// DefinitionStep is one step in a definition document.
type DefinitionStep struct {
	ID          string         `mapstructure:"id"`
	Type        string         `mapstructure:"type"`
	Name        string         `mapstructure:"name"`
	Description string         `mapstructure:"description"`
	Config      map[string]any `mapstructure:"config"`
}

// DefaultOwner is used when a definition names no owner.
const DefaultOwner = "unknown@company.com"

// ConvertToPipeline converts validated definition data into a draft
// pipeline. Steps without an id get one.
func ConvertToPipeline(data map[string]any) (connector.Pipeline, error) {
	var def Definition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &def,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return connector.Pipeline{}, fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(normalizeForSchema(data)); err != nil {
		return connector.Pipeline{}, fmt.Errorf("decoding definition: %w", err)
	}
	if strings.TrimSpace(def.Name) == "" {
		return connector.Pipeline{}, fmt.Errorf("definition has no name")
	}

	owner := def.OwnerEmail
	if owner == "" {
		owner = def.Owner
	}
	if owner == "" {
		owner = DefaultOwner
	}
	trigger := connector.Trigger(def.Trigger)
	if trigger == "" {
		trigger = connector.TriggerManual
	}

	p := connector.Pipeline{
		Name:        def.Name,
		Description: def.Description,
		OwnerEmail:  owner,
		Status:      connector.StatusDraft,
		Trigger:     trigger,
		Schedule:    def.Schedule,
		Version:     1,
		Steps:       make([]connector.Step, 0, len(def.Steps)),
	}
	for _, s := range def.Steps {
		id := s.ID
		if id == "" {
			id = uuid.NewString()
		}
		cfg := s.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		p.Steps = append(p.Steps, connector.Step{
			ID:          id,
			Type:        connector.StepType(s.Type),
			Name:        s.Name,
			Description: s.Description,
			Config:      cfg,
		})
	}
	return p, nil
}

// LoadPipeline parses, validates and converts a definition file in one step.
// The returned Result carries parse and validation errors when the pipeline
// could not be produced.
func LoadPipeline(filePath string) (connector.Pipeline, *Result, error) {
	result := ParseDefinitionFile(filePath)
	if !result.IsValid() {
		return connector.Pipeline{}, result, fmt.Errorf("definition %s is invalid: %d error(s)", filePath, len(result.AllErrors()))
	}
	p, err := ConvertToPipeline(result.Data)
	return p, result, err
}
