package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line   string
		key    string
		val    string
		wantOK bool
	}{
		{line: "S3_BUCKET=drawings", key: "S3_BUCKET", val: "drawings", wantOK: true},
		{line: "  export POLL_INTERVAL = 2s ", key: "POLL_INTERVAL", val: "2s", wantOK: true},
		{line: `APS_CLIENT_SECRET="a b#c"`, key: "APS_CLIENT_SECRET", val: "a b#c", wantOK: true},
		{line: "APP_ENV='prod'", key: "APP_ENV", val: "prod", wantOK: true},
		{line: "PORT=8080 # local", key: "PORT", val: "8080", wantOK: true},
		{line: "EMPTY=", key: "EMPTY", val: "", wantOK: true},
		{line: "# comment"},
		{line: ""},
		{line: "NOEQUALS"},
		{line: "BAD KEY=x"},
	}

	for _, tt := range tests {
		key, val, ok := parseEnvLine(tt.line)
		if ok != tt.wantOK || key != tt.key || val != tt.val {
			t.Fatalf("parseEnvLine(%q) = %q, %q, %v; want %q, %q, %v", tt.line, key, val, ok, tt.key, tt.val, tt.wantOK)
		}
	}
}

func TestLoadEnvFilesKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "TGA_DOTENV_NEW=from-file\nTGA_DOTENV_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TGA_DOTENV_SET", "from-env")
	t.Setenv("TGA_DOTENV_NEW", "")
	os.Unsetenv("TGA_DOTENV_NEW")

	loadEnvFiles(filepath.Join(dir, "missing.env"), path)

	if got := os.Getenv("TGA_DOTENV_NEW"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("TGA_DOTENV_SET"); got != "from-env" {
		t.Fatalf("expected environment to win, got %q", got)
	}
}
