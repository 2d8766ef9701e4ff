package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/artifacts"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/cli"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/config"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/validation"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// checkDefinition parses, validates and converts a definition file, printing
// what went wrong. It returns the exit code to use when the definition is
// unusable.
func checkDefinition(p *cli.Printer, path string) (connector.Pipeline, int) {
	result := config.ParseDefinitionFile(path)
	if len(result.ParseErrors) > 0 {
		p.PrintParseErrors(result.ParseErrors)
		return connector.Pipeline{}, ExitParseError
	}
	if len(result.ValidationErrors) > 0 {
		p.PrintValidationErrors(result.ValidationErrors)
		return connector.Pipeline{}, ExitValidationError
	}

	pl, err := config.ConvertToPipeline(result.Data)
	if err != nil {
		p.Errorf("Invalid definition: %v", err)
		return connector.Pipeline{}, ExitValidationError
	}
	if err := validation.ValidateSteps(pl.Steps); err != nil {
		p.PrintStepErrors(err)
		return connector.Pipeline{}, ExitValidationError
	}
	return pl, ExitSuccess
}

func runValidate(p *cli.Printer, path string) int {
	p.Infof("Validating pipeline definition: %s", path)

	pl, code := checkDefinition(p, path)
	if code != ExitSuccess {
		return code
	}

	p.Infof("✓ Definition is valid")
	if p.Opts.Verbose {
		p.PrintPipelineSummary(pl)
		p.PrintChecklist(validation.Checklist(pl, nil))
	}
	return ExitSuccess
}

func runImport(ctx context.Context, p *cli.Printer, path, artifactsDir string) int {
	pl, code := checkDefinition(p, path)
	if code != ExitSuccess {
		return code
	}

	var bundle *connector.ArtifactBundle
	if artifactsDir != "" {
		b, err := readBundle(artifactsDir)
		if err != nil {
			p.Errorf("Reading artifacts: %v", err)
			return ExitRuntimeError
		}
		bundle = b
	}

	ws, err := openWorkspace(ctx)
	if err != nil {
		p.Errorf("%v", err)
		return ExitRuntimeError
	}
	defer ws.Close()

	saved := ws.repo.Save(ctx, pl)
	if bundle != nil {
		if err := ws.layout.Save(saved.ID, *bundle); err != nil {
			p.Errorf("Saving artifacts: %v", err)
			return ExitRuntimeError
		}
	}
	ws.repo.AppendAudit(ctx, connector.AuditEntry{
		UserEmail:  saved.OwnerEmail,
		Action:     "imported pipeline",
		TargetType: connector.AuditPipeline,
		TargetID:   saved.ID,
		Details:    fmt.Sprintf("Imported %q from %s", saved.Name, filepath.Base(path)),
	})

	p.Infof("✓ Imported pipeline %s (%s)", saved.Name, saved.ID)
	return ExitSuccess
}

// readBundle collects generated pipeline files from dir. Missing files are
// left empty; a directory with none of them is an error.
func readBundle(dir string) (*connector.ArtifactBundle, error) {
	var b connector.ArtifactBundle
	found := 0
	for name, dst := range map[string]*string{
		artifacts.ConfigFile:      &b.Config,
		artifacts.ScriptFile:      &b.Code,
		artifacts.StrategyFile:    &b.Strategy,
		artifacts.CredentialsFile: &b.Credentials,
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		*dst = string(data)
		found++
	}
	if found == 0 {
		return nil, fmt.Errorf("no pipeline files in %s", dir)
	}
	return &b, nil
}

func runPipeline(ctx context.Context, p *cli.Printer, id string) int {
	ws, err := openWorkspace(ctx)
	if err != nil {
		p.Errorf("%v", err)
		return ExitRuntimeError
	}
	defer ws.Close()

	p.Infof("Running pipeline: %s", id)
	exec, err := ws.orchestrator.Run(ctx, id)
	if err != nil {
		if errhandling.IsNotFound(err) {
			p.Errorf("Pipeline %s not found", id)
		} else {
			p.Errorf("%v", err)
		}
		return ExitRuntimeError
	}

	p.PrintExecution(exec)
	if exec.Status == connector.ExecutionFailed {
		return ExitRuntimeError
	}
	return ExitSuccess
}

func runList(ctx context.Context, p *cli.Printer) int {
	ws, err := openWorkspace(ctx)
	if err != nil {
		p.Errorf("%v", err)
		return ExitRuntimeError
	}
	defer ws.Close()

	p.PrintPipelines(ws.repo.List())
	return ExitSuccess
}

func runExecutions(ctx context.Context, p *cli.Printer, pipelineID string) int {
	ws, err := openWorkspace(ctx)
	if err != nil {
		p.Errorf("%v", err)
		return ExitRuntimeError
	}
	defer ws.Close()

	p.PrintExecutions(ws.repo.ListExecutions(pipelineID))
	return ExitSuccess
}

func runDelete(ctx context.Context, p *cli.Printer, id string) int {
	ws, err := openWorkspace(ctx)
	if err != nil {
		p.Errorf("%v", err)
		return ExitRuntimeError
	}
	defer ws.Close()

	pl, ok := ws.repo.Get(id)
	if !ok || !ws.repo.Delete(ctx, id) {
		p.Errorf("Pipeline %s not found", id)
		return ExitRuntimeError
	}
	ws.repo.AppendAudit(ctx, connector.AuditEntry{
		UserEmail:  pl.OwnerEmail,
		Action:     "deleted pipeline",
		TargetType: connector.AuditPipeline,
		TargetID:   id,
		Details:    fmt.Sprintf("Deleted %q", pl.Name),
	})

	p.Infof("✓ Deleted pipeline %s", id)
	return ExitSuccess
}
