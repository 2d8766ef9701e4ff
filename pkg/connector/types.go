// Package connector provides the public domain types for data pipelines.
// These types are shared by the store, the execution engine and the HTTP API,
// and are importable by external tooling that reads or writes pipeline records.
package connector

import "time"

// PipelineStatus is the lifecycle status of a pipeline.
type PipelineStatus string

// Pipeline statuses.
const (
	StatusDraft     PipelineStatus = "draft"
	StatusRunning   PipelineStatus = "running"
	StatusActive    PipelineStatus = "active"
	StatusSucceeded PipelineStatus = "succeeded"
	StatusFailed    PipelineStatus = "failed"
	StatusDeployed  PipelineStatus = "deployed"
	StatusArchived  PipelineStatus = "archived"
)

// Trigger describes how a pipeline is started.
type Trigger string

// Triggers.
const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerEvent     Trigger = "event"
)

// StepType is the role of a step inside a pipeline.
type StepType string

// Step types.
const (
	StepSource      StepType = "source"
	StepTransform   StepType = "transform"
	StepDestination StepType = "destination"
)

// Pipeline is a named, versioned definition of a data-movement job.
// Version increments exactly once per persisted mutation.
type Pipeline struct {
	// ID is the unique identifier for this pipeline
	ID string `json:"id"`

	// Name is the human-readable name of the pipeline
	Name string `json:"name"`

	// Description provides additional context about the pipeline
	Description string `json:"description,omitempty"`

	// OwnerEmail identifies who owns the pipeline
	OwnerEmail string `json:"ownerEmail"`

	Status  PipelineStatus `json:"status"`
	Trigger Trigger        `json:"trigger"`

	// Schedule is a 5-field cron expression, used when Trigger is scheduled
	Schedule string `json:"schedule,omitempty"`

	Version int    `json:"version"`
	Steps   []Step `json:"steps"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Step is one stage of a pipeline. Config is free-form and interpreted
// according to Type and the resolved connector kind.
type Step struct {
	ID          string         `json:"id"`
	Type        StepType       `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// FirstStep returns the first step of the given type, or nil.
func (p *Pipeline) FirstStep(t StepType) *Step {
	for i := range p.Steps {
		if p.Steps[i].Type == t {
			return &p.Steps[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the pipeline.
func (p Pipeline) Clone() Pipeline {
	out := p
	if p.Steps != nil {
		out.Steps = make([]Step, len(p.Steps))
		for i, s := range p.Steps {
			out.Steps[i] = s.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	out := s
	if s.Config != nil {
		out.Config = CloneMap(s.Config)
	}
	return out
}

// ExecutionStatus is the status of a single run.
type ExecutionStatus string

// Execution statuses.
const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Strategy is the execution path chosen for a run.
type Strategy string

// Strategies.
const (
	StrategyInterpreter    Strategy = "interpreter"
	StrategyExternalScript Strategy = "external-script"
	StrategySimulated      Strategy = "simulated"
)

// Metrics are the counters recorded for a run.
type Metrics struct {
	RowsProcessed          int   `json:"rowsProcessed"`
	TransformationsApplied int   `json:"transformationsApplied"`
	RowsWritten            int   `json:"rowsWritten"`
	DurationMs             int64 `json:"durationMs"`
}

// Execution is the immutable record of one pipeline run.
type Execution struct {
	ID         string          `json:"id"`
	PipelineID string          `json:"pipelineId"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Status     ExecutionStatus `json:"status"`
	Strategy   Strategy        `json:"strategy,omitempty"`
	Logs       []string        `json:"logs"`
	Metrics    Metrics         `json:"metrics"`
}

// Clone returns a deep copy of the execution.
func (e Execution) Clone() Execution {
	out := e
	if e.Logs != nil {
		out.Logs = append([]string(nil), e.Logs...)
	}
	return out
}

// AuditTarget is the kind of object an audit entry refers to.
type AuditTarget string

// Audit targets.
const (
	AuditPipeline  AuditTarget = "pipeline"
	AuditExecution AuditTarget = "execution"
	AuditSystem    AuditTarget = "system"
)

// AuditEntry records a user-visible action.
type AuditEntry struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	UserEmail  string      `json:"userEmail"`
	Action     string      `json:"action"`
	TargetType AuditTarget `json:"targetType"`
	TargetID   string      `json:"targetId,omitempty"`
	Details    any         `json:"details,omitempty"`
}

// ArtifactBundle is the generated material for a pipeline: a YAML config,
// an executable script, an execution strategy document and optional
// credentials.
type ArtifactBundle struct {
	Config      string `json:"config"`
	Code        string `json:"code"`
	Strategy    string `json:"strategy"`
	Credentials string `json:"credentials,omitempty"`
}

// Record is a single row keyed by column name.
type Record = map[string]any

// RowSet is the tabular data threaded through a run. Columns keeps the
// natural column order, which maps cannot.
type RowSet struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// Len returns the number of records, tolerating a nil row-set.
func (r *RowSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Records)
}

// Empty reports whether the row-set carries no records.
func (r *RowSet) Empty() bool {
	return r.Len() == 0
}

// CloneMap deep-copies a JSON-like map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
