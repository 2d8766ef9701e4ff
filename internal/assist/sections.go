package assist

import (
	"regexp"
	"strings"
)

// Section markers in a generated response.
const (
	MarkerConfig   = "=== PIPELINE_CONFIG ==="
	MarkerCode     = "=== PIPELINE_CODE ==="
	MarkerTests    = "=== TEST_CODE ==="
	MarkerStrategy = "=== EXECUTION_STRATEGY ==="
)

// DefaultStrategy is used when the response has no strategy section.
const DefaultStrategy = "Execute pipeline steps sequentially"

var (
	configSection   = regexp.MustCompile(`=== PIPELINE_CONFIG ===\s*([\s\S]*?)(?:=== PIPELINE_CODE ===|===|$)`)
	codeSection     = regexp.MustCompile(`=== PIPELINE_CODE ===\s*([\s\S]*?)(?:=== TEST_CODE ===|=== EXECUTION_STRATEGY ===|===|$)`)
	testSection     = regexp.MustCompile(`=== TEST_CODE ===\s*([\s\S]*?)(?:=== EXECUTION_STRATEGY ===|===|$)`)
	strategySection = regexp.MustCompile(`=== EXECUTION_STRATEGY ===\s*([\s\S]*?)$`)

	openFence  = regexp.MustCompile("^```[a-zA-Z0-9_-]*[ \t]*\n?")
	closeFence = regexp.MustCompile("\n?```\\s*$")
)

// Sections is a generated response split into its parts.
type Sections struct {
	Config   string
	Code     string
	Tests    string
	Strategy string
	// Partial is set when the config or code section was missing.
	Partial bool
}

// ParseSections splits a generated response on its section markers and
// strips markdown code fences from each part.
func ParseSections(text string) Sections {
	var s Sections
	cfg, hasCfg := match(configSection, text)
	code, hasCode := match(codeSection, text)
	s.Tests, _ = match(testSection, text)
	strategy, hasStrategy := match(strategySection, text)

	s.Config = stripFences(cfg)
	s.Code = stripFences(code)
	s.Tests = stripFences(s.Tests)
	s.Strategy = strategy
	if !hasStrategy || strategy == "" {
		s.Strategy = DefaultStrategy
	}
	if !hasCfg || !hasCode {
		s.Partial = true
		if !hasCfg {
			s.Config = "name: pipeline\ndescription: Pipeline\ntrigger: scheduled"
		}
		if !hasCode {
			s.Code = "# Auto-generated code"
		}
	}
	return s
}

func match(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func stripFences(s string) string {
	s = openFence.ReplaceAllString(s, "")
	s = closeFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
