package pathutil

import (
	"path/filepath"
	"testing"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"empty", "", true},
		{"null byte", "a\x00b", true},
		{"simple segment", "..", true},
		{"leading segment", "../foo", true},
		{"middle segment", "foo/../bar", true},
		{"valid relative", "keys/credentials.json", false},
		{"single segment", "credentials.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilePath(%q) err = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"3f2c1a9e-0b7d-4c4e-9d55-2f1a7c9e8b10", false},
		{"pipeline_1", false},
		{"", true},
		{"..", true},
		{"a/b", true},
		{"a..b", true},
		{"-leading", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) err = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestResolveWithin(t *testing.T) {
	got, err := ResolveWithin("/srv", "credentials.json")
	if err != nil || got != filepath.Join("/srv", "credentials.json") {
		t.Errorf("ResolveWithin() = %q, %v", got, err)
	}
	got, err = ResolveWithin("/srv", "/etc/keys/sa.json")
	if err != nil || got != "/etc/keys/sa.json" {
		t.Errorf("ResolveWithin(abs) = %q, %v", got, err)
	}
	if _, err := ResolveWithin("/srv", "../secret.json"); err == nil {
		t.Error("ResolveWithin() should reject traversal")
	}
}
