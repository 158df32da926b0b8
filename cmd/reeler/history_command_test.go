package main

import (
	"testing"

	"reeler/internal/testsupport"
)

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No encoded episodes recorded")

	out, _, err = runCLI(t, []string{"history", "runs", "--limit", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("history runs: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestHistoryDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = false
	env := &cliTestEnv{cfg: cfg, baseDir: testsupport.BaseDir(cfg)}
	env.configPath = env.baseDir + "/config.toml"
	writeTestConfig(t, env.configPath, cfg)
	t.Setenv("HOME", t.TempDir())

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "History is disabled")
}
