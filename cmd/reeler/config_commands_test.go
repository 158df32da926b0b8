package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reeler/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithParallelism(3, 2))

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "[OK] valid")
	requireContains(t, out, env.configPath)
	requireSetting(t, out, "Download parallelism", "3")
	requireSetting(t, out, "Encode parallelism", "2")
	requireContains(t, out, env.cfg.Paths.OutputDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Sample configuration written: "+target)
	requireContains(t, out, "[downloader] and [encoder] parallelism")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "[OK] valid")
	requireContains(t, out, "Container")
}

func TestConfigValidateReportsMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "absent.toml")
	out, _, err := runCLI(t, []string{"config", "validate"}, path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "not found, using defaults")
	requireContains(t, out, "[OK] valid")
}

// requireSetting asserts that the summary row for label carries value.
func requireSetting(t *testing.T, output, label, value string) {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, label) {
			continue
		}
		cells := strings.Split(line, "│")
		if len(cells) >= 3 && strings.TrimSpace(cells[2]) == value {
			return
		}
		t.Fatalf("setting %q row %q does not carry %q", label, line, value)
	}
	t.Fatalf("setting %q missing from %q", label, output)
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("HOME", t.TempDir())
	if err := os.WriteFile(path, []byte("[downloader]\nparallelism = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, path); err == nil {
		t.Fatal("expected validation error")
	}
}
