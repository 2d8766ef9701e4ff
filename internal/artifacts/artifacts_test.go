package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

func newLayout(t *testing.T) *Layout {
	t.Helper()
	l := NewLayout(t.TempDir())
	l.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	return l
}

func TestLayout_SaveAndLoad(t *testing.T) {
	l := newLayout(t)
	bundle := connector.ArtifactBundle{
		Config:      "name: Sales\n",
		Code:        "print('hi')\n",
		Strategy:    "# Strategy\n",
		Credentials: `{"client_email":"x"}`,
	}

	if l.Exists("p1") {
		t.Fatal("Exists() before Save should be false")
	}
	if err := l.Save("p1", bundle); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !l.Exists("p1") {
		t.Error("Exists() after Save should be true")
	}

	dir := filepath.Join(l.Base(), "p1")
	for _, name := range []string{ConfigFile, ScriptFile, StrategyFile, CredentialsFile, ReadmeFile, GitignoreFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if info, err := os.Stat(filepath.Join(dir, LogsDir)); err != nil || !info.IsDir() {
		t.Errorf("logs directory missing: %v", err)
	}

	readme, _ := os.ReadFile(filepath.Join(dir, ReadmeFile))
	if !strings.Contains(string(readme), "credentials.json") || !strings.Contains(string(readme), "2026-02-03T04:05:06Z") {
		t.Errorf("README = %s", readme)
	}

	got, err := l.Load("p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Config != bundle.Config || got.Code != bundle.Code || got.Strategy != bundle.Strategy {
		t.Errorf("Load() = %+v", got)
	}
	if got.Credentials != "" {
		t.Error("Load() must not return credentials")
	}
}

func TestLayout_SaveWithoutCredentials(t *testing.T) {
	l := newLayout(t)
	if err := l.Save("p2", connector.ArtifactBundle{Config: "name: x", Code: "pass", Strategy: "s"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(l.Base(), "p2", CredentialsFile)); !os.IsNotExist(err) {
		t.Errorf("credentials.json should not exist, stat error = %v", err)
	}
}

func TestLayout_InvalidID(t *testing.T) {
	l := newLayout(t)
	for _, id := range []string{"", "../escape", "a/b"} {
		if err := l.Save(id, connector.ArtifactBundle{}); !errhandling.IsValidation(err) {
			t.Errorf("Save(%q) error = %v, want validation", id, err)
		}
		if l.Exists(id) {
			t.Errorf("Exists(%q) should be false", id)
		}
	}
}

func TestLayout_LoadMissing(t *testing.T) {
	_, err := newLayout(t).Load("nope")
	if !errhandling.IsNotFound(err) {
		t.Errorf("Load() error = %v, want not found", err)
	}
}

func TestLayout_ConfigSummary(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		want     ConfigSummary
		notFound bool
	}{
		{
			name:   "top-level sections",
			config: "name: Sales sync\nsource:\n  type: google_sheets\ndestination:\n  type: postgresql\n",
			want:   ConfigSummary{Name: "Sales sync", HasSource: true, HasDestination: true},
		},
		{
			name:   "steps list",
			config: "name: Orders\nsteps:\n  - type: source\n  - type: transform\n",
			want:   ConfigSummary{Name: "Orders", HasSource: true, HasTransformations: true},
		},
		{
			name:     "no name",
			config:   "source: {}\n",
			notFound: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLayout(t)
			if err := l.Save("p", connector.ArtifactBundle{Config: tt.config, Code: "pass", Strategy: "s"}); err != nil {
				t.Fatal(err)
			}
			got, err := l.ConfigSummary("p")
			if tt.notFound {
				if !errhandling.IsNotFound(err) {
					t.Errorf("ConfigSummary() error = %v, want not found", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ConfigSummary() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("ConfigSummary() = %+v, want %+v", *got, tt.want)
			}
		})
	}

	if _, err := newLayout(t).ConfigSummary("absent"); !errhandling.IsNotFound(err) {
		t.Errorf("missing config error = %v, want not found", err)
	}
}
