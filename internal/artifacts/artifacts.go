// Package artifacts manages the per-pipeline directory holding generated
// pipeline code, its configuration and execution logs.
package artifacts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/pathutil"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// File names inside a pipeline artifact directory.
const (
	ConfigFile      = "config.yaml"
	ScriptFile      = "pipeline.py"
	StrategyFile    = "EXECUTION_STRATEGY.md"
	CredentialsFile = "credentials.json"
	ReadmeFile      = "README.md"
	GitignoreFile   = ".gitignore"
	LogsDir         = "logs"
)

// DefaultBaseDir is used when no artifacts directory is configured.
const DefaultBaseDir = "pipeline_artifacts"

const gitignore = "logs/*.log\n*.pyc\n__pycache__/\n"

// ErrNoArtifacts is returned when a pipeline has no artifact directory.
var ErrNoArtifacts = errors.New("no artifacts")

// Layout resolves artifact paths under a base directory.
type Layout struct {
	base string
	now  func() time.Time
}

// NewLayout returns a Layout rooted at base.
func NewLayout(base string) *Layout {
	if base == "" {
		base = DefaultBaseDir
	}
	return &Layout{base: base, now: time.Now}
}

// Base returns the root directory.
func (l *Layout) Base() string { return l.base }

// Dir returns the artifact directory of a pipeline.
func (l *Layout) Dir(pipelineID string) (string, error) {
	if err := pathutil.ValidateID(pipelineID); err != nil {
		return "", errhandling.Validation("artifacts.dir", "invalid pipeline id", err)
	}
	return filepath.Join(l.base, pipelineID), nil
}

// ScriptPath returns the path of the generated script.
func (l *Layout) ScriptPath(pipelineID string) (string, error) {
	dir, err := l.Dir(pipelineID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ScriptFile), nil
}

// LogsPath returns the execution log directory.
func (l *Layout) LogsPath(pipelineID string) (string, error) {
	dir, err := l.Dir(pipelineID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LogsDir), nil
}

// Exists reports whether the generated script is present. That file alone
// decides whether a pipeline runs through the external script runner.
func (l *Layout) Exists(pipelineID string) bool {
	p, err := l.ScriptPath(pipelineID)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// Save writes the bundle, a README and a .gitignore, and creates the logs
// directory. Existing files are overwritten.
func (l *Layout) Save(pipelineID string, b connector.ArtifactBundle) error {
	const op = "artifacts.save"
	dir, err := l.Dir(pipelineID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, LogsDir), 0o755); err != nil {
		return errhandling.Persistence(op, "creating artifact directory", err)
	}

	files := []struct {
		name string
		body string
		mode os.FileMode
	}{
		{ConfigFile, b.Config, 0o644},
		{ScriptFile, b.Code, 0o644},
		{StrategyFile, b.Strategy, 0o644},
		{ReadmeFile, l.readme(pipelineID, b.Credentials != ""), 0o644},
		{GitignoreFile, gitignore, 0o644},
	}
	if b.Credentials != "" {
		files = append(files, struct {
			name string
			body string
			mode os.FileMode
		}{CredentialsFile, b.Credentials, 0o600})
	}
	for _, f := range files {
		if err := writeAtomic(filepath.Join(dir, f.name), []byte(f.body), f.mode); err != nil {
			return errhandling.Persistence(op, "writing "+f.name, err)
		}
	}

	logger.Info("pipeline artifacts saved",
		slog.String("pipeline_id", pipelineID),
		slog.String("dir", dir),
		slog.Bool("credentials", b.Credentials != ""),
	)
	return nil
}

// Load reads config, code and strategy back. Credentials are never returned.
func (l *Layout) Load(pipelineID string) (*connector.ArtifactBundle, error) {
	const op = "artifacts.load"
	dir, err := l.Dir(pipelineID)
	if err != nil {
		return nil, err
	}
	read := func(name string) (string, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				return "", errhandling.NotFound(op, fmt.Sprintf("%s missing for pipeline %s", name, pipelineID))
			}
			return "", errhandling.Persistence(op, "reading "+name, err)
		}
		return string(data), nil
	}

	var b connector.ArtifactBundle
	if b.Config, err = read(ConfigFile); err != nil {
		return nil, err
	}
	if b.Code, err = read(ScriptFile); err != nil {
		return nil, err
	}
	if b.Strategy, err = read(StrategyFile); err != nil {
		return nil, err
	}
	return &b, nil
}

// ConfigSummary describes the generated config.yaml.
type ConfigSummary struct {
	Name               string `json:"name"`
	HasSource          bool   `json:"hasSource,omitempty"`
	HasDestination     bool   `json:"hasDestination,omitempty"`
	HasTransformations bool   `json:"hasTransformations,omitempty"`
}

// ConfigSummary parses config.yaml. A config without a name counts as absent.
// Both top-level source/destination/transformations keys and a steps list
// are recognised.
func (l *Layout) ConfigSummary(pipelineID string) (*ConfigSummary, error) {
	const op = "artifacts.config"
	dir, err := l.Dir(pipelineID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errhandling.NotFound(op, "no config found")
		}
		return nil, errhandling.Persistence(op, "reading config", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errhandling.Validation(op, "config.yaml is not valid YAML", err)
	}

	s := &ConfigSummary{}
	if name, ok := doc["name"]; ok && name != nil {
		s.Name = strings.TrimSpace(fmt.Sprint(name))
	}
	_, s.HasSource = doc["source"]
	_, s.HasDestination = doc["destination"]
	_, s.HasTransformations = doc["transformations"]
	if steps, ok := doc["steps"].([]any); ok {
		for _, raw := range steps {
			step, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			switch step["type"] {
			case string(connector.StepSource):
				s.HasSource = true
			case string(connector.StepDestination):
				s.HasDestination = true
			case string(connector.StepTransform):
				s.HasTransformations = true
			}
		}
	}
	if s.Name == "" {
		return nil, errhandling.NotFound(op, "no config found")
	}
	return s, nil
}

func (l *Layout) readme(pipelineID string, withCredentials bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Pipeline: %s\n\n## Generated Artifacts\n\n", pipelineID)
	sb.WriteString("- **config.yaml**: Pipeline configuration\n")
	sb.WriteString("- **pipeline.py**: Executable pipeline code\n")
	sb.WriteString("- **EXECUTION_STRATEGY.md**: Idempotence and re-run strategy\n")
	if withCredentials {
		sb.WriteString("- **credentials.json**: Service account credentials\n")
	}
	sb.WriteString("- **logs/**: Execution logs directory\n\n")
	sb.WriteString("## Running the Pipeline\n\n```bash\npython pipeline.py\n```\n\n")
	fmt.Fprintf(&sb, "## Generated on\n\n%s\n", l.now().UTC().Format(time.RFC3339))
	return sb.String()
}

// writeAtomic writes to a temp file in the same directory and renames it.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
