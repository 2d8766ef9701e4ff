package connectors

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

func TestResolveKind(t *testing.T) {
	tests := []struct {
		name string
		step connector.Step
		want Kind
	}{
		{"explicit connector", connector.Step{Name: "MySQL dump", Config: map[string]any{"connector": "google-sheets"}}, KindGoogleSheets},
		{"type field", connector.Step{Name: "x", Config: map[string]any{"type": "Google_Sheets"}}, KindGoogleSheets},
		{"postgres alias", connector.Step{Config: map[string]any{"connector": "postgres"}}, KindPostgreSQL},
		{"type not a kind falls back to name", connector.Step{Name: "MySQL orders", Config: map[string]any{"type": "csv"}}, KindMySQL},
		{"name inference", connector.Step{Name: "Read Google Sheets tab"}, KindGoogleSheets},
		{"postgres by name", connector.Step{Name: "PostgreSQL warehouse"}, KindPostgreSQL},
		{"unknown", connector.Step{Name: "S3 bucket"}, KindUnknown},
		{"explicit unknown connector", connector.Step{Name: "Google Sheets", Config: map[string]any{"connector": "oracle"}}, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveKind(tt.step); got != tt.want {
				t.Errorf("ResolveKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeSourceConfig(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		raw     map[string]any
		wantErr bool
	}{
		{"sheets ok", KindGoogleSheets, map[string]any{"spreadsheetId": "abc", "range": "A1:B"}, false},
		{"sheets sheetName only", KindGoogleSheets, map[string]any{"spreadsheetId": "abc", "sheetName": "Data"}, false},
		{"sheets missing id", KindGoogleSheets, map[string]any{"range": "A1"}, true},
		{"sheets missing range", KindGoogleSheets, map[string]any{"spreadsheetId": "abc"}, true},
		{"relational no checks", KindMySQL, map[string]any{"table": "orders"}, false},
		{"bad type", KindGoogleSheets, map[string]any{"spreadsheetId": map[string]any{"a": 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSourceConfig(tt.kind, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeSourceConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	_, err := DecodeSourceConfig(KindGoogleSheets, map[string]any{})
	var fe FieldError
	if !errors.As(err, &fe) {
		t.Errorf("expected FieldError in %v", err)
	}
}

func TestDecodeDestinationConfig(t *testing.T) {
	cfg, err := DecodeDestinationConfig(KindGoogleSheets, map[string]any{"spreadsheetId": "abc", "sheetName": "Out"})
	if err != nil {
		t.Fatalf("DecodeDestinationConfig() error = %v", err)
	}
	if cfg.SheetName != "Out" {
		t.Errorf("SheetName = %q", cfg.SheetName)
	}
	if _, err := DecodeDestinationConfig(KindGoogleSheets, map[string]any{}); err == nil {
		t.Error("missing spreadsheetId should fail")
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(NewSheetsAdapter())
	if !r.HasLive(KindGoogleSheets) {
		t.Error("sheets should be live")
	}
	if r.HasLive(KindMySQL) || r.HasLive(KindUnknown) {
		t.Error("relational and unknown kinds are not live")
	}
	want := []Kind{KindGoogleSheets, KindMySQL, KindPostgreSQL}
	if got := r.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}
	if _, ok := r.Get(KindUnknown); ok {
		t.Error("Get(unknown) should report no adapter")
	}
}

func TestRelationalAdapter_NotImplemented(t *testing.T) {
	a := NewRelationalAdapter(KindPostgreSQL)
	_, err := a.Read(context.Background(), SourceConfig{Table: "t"})
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Read() error = %v, want ErrNotImplemented", err)
	}
	if errhandling.CategoryOf(err) != errhandling.CategoryConnector {
		t.Errorf("category = %v", errhandling.CategoryOf(err))
	}
	_, err = a.Write(context.Background(), DestinationConfig{}, nil)
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Write() error = %v, want ErrNotImplemented", err)
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name    string
		step    connector.Step
		wantIDs []string
	}{
		{
			name:    "s3 csv source",
			step:    connector.Step{Type: connector.StepSource, Config: map[string]any{"url": "s3://bucket/a.csv", "format": "csv"}},
			wantIDs: []string{"s3-csv-source"},
		},
		{
			name:    "no hints matches every source",
			step:    connector.Step{Type: connector.StepSource},
			wantIDs: []string{"s3-csv-source", "http-json-source", "google-sheets-source"},
		},
		{
			name:    "endpoint pattern overrides format",
			step:    connector.Step{Type: connector.StepDestination, Config: map[string]any{"endpoint": "postgres://db", "fileType": "parquet"}},
			wantIDs: []string{"postgres-destination"},
		},
		{
			name: "transform never matches",
			step: connector.Step{Type: connector.StepTransform},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(tt.step)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("Recommend() = %d entries, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].Connector.ID != id {
					t.Errorf("entry %d = %s, want %s", i, got[i].Connector.ID, id)
				}
				if got[i].Reason == "" {
					t.Errorf("entry %d has no reason", i)
				}
			}
		})
	}
}

func TestExtractionTemplate(t *testing.T) {
	if tpl, ok := ExtractionTemplate("http-json-source"); !ok || tpl == "" {
		t.Error("expected template for http-json-source")
	}
	if _, ok := ExtractionTemplate("nope"); ok {
		t.Error("unknown id should not resolve")
	}
}
