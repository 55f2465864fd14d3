package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "plan.dwg", want: "plan.dwg"},
		{in: " a/b\\c.dwg ", want: "a_b_c.dwg"},
		{in: "../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestUnderscore(t *testing.T) {
	if got := Underscore("HVAC (Climatização)"); got != "HVAC_(Climatização)" {
		t.Fatalf("got %q", got)
	}
	if got := Underscore("  Arquitetura   Base "); got != "Arquitetura_Base" {
		t.Fatalf("got %q", got)
	}
}

func TestHasExtension(t *testing.T) {
	if !HasExtension("PLAN.DWG", ".dwg") {
		t.Fatal("expected .DWG to match")
	}
	if HasExtension("plan.pdf", ".dwg", ".dxf") {
		t.Fatal("expected .pdf not to match")
	}
}
