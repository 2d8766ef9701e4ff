package validation

import (
	"fmt"
	"strings"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/artifacts"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/scheduler"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// CheckStatus is the outcome of one check.
type CheckStatus string

// Check outcomes.
const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// Check is one line of the checklist.
type Check struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Details string      `json:"details,omitempty"`
}

// Report is the checklist of a pipeline. Valid is false when any check failed.
type Report struct {
	Valid   bool    `json:"isValid"`
	Checks  []Check `json:"checks"`
	Summary string  `json:"summary"`
}

// Counts returns the number of passed, warned and failed checks.
func (r Report) Counts() (pass, warn, fail int) {
	for _, c := range r.Checks {
		switch c.Status {
		case CheckPass:
			pass++
		case CheckWarn:
			warn++
		case CheckFail:
			fail++
		}
	}
	return pass, warn, fail
}

func check(name string, ok bool, failStatus CheckStatus, okMsg, failMsg string) Check {
	if ok {
		return Check{Name: name, Status: CheckPass, Message: okMsg}
	}
	return Check{Name: name, Status: failStatus, Message: failMsg}
}

// Checklist builds the advisory report for p. The generated config summary,
// when present, can satisfy the source, destination and transformation checks.
func Checklist(p connector.Pipeline, summary *artifacts.ConfigSummary) Report {
	if summary == nil {
		summary = &artifacts.ConfigSummary{}
	}
	var checks []Check

	checks = append(checks, check("Pipeline Name", strings.TrimSpace(p.Name) != "", CheckFail,
		fmt.Sprintf("Pipeline named %q", p.Name), "Pipeline must have a name"))

	c := check("Pipeline Description", p.Description != "", CheckWarn,
		"Description provided", "Consider adding a description")
	c.Details = p.Description
	checks = append(checks, c)

	checks = append(checks, check("Trigger Type", p.Trigger != "", CheckFail,
		fmt.Sprintf("Trigger configured: %s", p.Trigger), "Trigger type must be specified"))

	if p.Trigger == connector.TriggerScheduled {
		switch err := scheduler.ValidateCronExpression(p.Schedule); {
		case p.Schedule == "":
			checks = append(checks, Check{Name: "Schedule", Status: CheckWarn, Message: "Scheduled trigger requires a cron schedule"})
		case err != nil:
			checks = append(checks, Check{Name: "Schedule", Status: CheckFail, Message: "Schedule is not a valid cron expression", Details: err.Error()})
		default:
			checks = append(checks, Check{Name: "Schedule", Status: CheckPass, Message: "Schedule: " + p.Schedule})
		}
	}

	src := p.FirstStep(connector.StepSource)
	checks = append(checks, check("Data Source", src != nil || summary.HasSource, CheckFail,
		"Source configured: "+stepName(src, "generated config"), "Pipeline must have at least one source step"))

	dst := p.FirstStep(connector.StepDestination)
	checks = append(checks, check("Data Destination", dst != nil || summary.HasDestination, CheckFail,
		"Destination configured: "+stepName(dst, "generated config"), "Pipeline must have at least one destination step"))

	transforms := countSteps(p, connector.StepTransform)
	checks = append(checks, check("Data Transformations", transforms > 0 || summary.HasTransformations, CheckWarn,
		fmt.Sprintf("%d transformation(s) configured", transforms), "Consider adding transformation steps for data processing"))

	if order, ok := orderCheck(p); ok {
		checks = append(checks, order)
	}
	checks = append(checks, configCheck(p))

	checks = append(checks, check("Owner", p.OwnerEmail != "", CheckWarn,
		"Owner: "+p.OwnerEmail, "Consider setting an owner email"))

	checks = append(checks, check("Pipeline Status", p.Status != connector.StatusDraft, CheckWarn,
		fmt.Sprintf("Pipeline status: %s", p.Status), "Pipeline is in draft status"))

	r := Report{Checks: checks}
	pass, warn, fail := r.Counts()
	r.Valid = fail == 0
	switch {
	case fail > 0:
		r.Summary = fmt.Sprintf("Pipeline has issues: %d error(s), %d warning(s)", fail, warn)
	case warn > 0:
		r.Summary = fmt.Sprintf("Pipeline ready with recommendations: %d check(s) passed, %d warning(s)", pass, warn)
	default:
		r.Summary = fmt.Sprintf("Pipeline is valid: all %d checks passed", pass)
	}
	return r
}

// orderCheck warns when a destination comes before every source. It is
// skipped when the pipeline lacks either endpoint.
func orderCheck(p connector.Pipeline) (Check, bool) {
	firstSrc, firstDst := -1, -1
	for i, s := range p.Steps {
		if s.Type == connector.StepSource && firstSrc < 0 {
			firstSrc = i
		}
		if s.Type == connector.StepDestination && firstDst < 0 {
			firstDst = i
		}
	}
	if firstSrc < 0 || firstDst < 0 {
		return Check{}, false
	}
	return check("Step Order", firstSrc < firstDst, CheckWarn,
		"Source runs before the first destination",
		fmt.Sprintf("Step %d (destination) runs before any source and will have no data to write", firstDst+1)), true
}

func configCheck(p connector.Pipeline) Check {
	var missing int
	for _, s := range p.Steps {
		if len(s.Config) == 0 {
			missing++
		}
	}
	if err := ValidateSteps(p.Steps); err != nil {
		return Check{Name: "Step Configuration", Status: CheckFail, Message: "Step configuration is invalid", Details: err.Error()}
	}
	if missing > 0 {
		return Check{Name: "Step Configuration", Status: CheckWarn, Message: fmt.Sprintf("%d step(s) missing configuration", missing)}
	}
	return Check{Name: "Step Configuration", Status: CheckPass, Message: fmt.Sprintf("All %d steps are configured", len(p.Steps))}
}

func stepName(s *connector.Step, fallback string) string {
	if s == nil || s.Name == "" {
		return fallback
	}
	return s.Name
}

func countSteps(p connector.Pipeline, t connector.StepType) int {
	n := 0
	for _, s := range p.Steps {
		if s.Type == t {
			n++
		}
	}
	return n
}
