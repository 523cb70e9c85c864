package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tripweaver.yaml", `
planner:
  knowledge_top_k: 7
  base_currency: eur
  run_retention: 10m
llm:
  provider: Gemini
  model: gemini-1.5-flash
  timeout: 30s
collectors:
  openweather_key: abc
  cache_ttl: 5m
approval:
  weather_gates: true
  checkpoint_dir: /tmp/cp
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Planner.KnowledgeTopK != 7 || cfg.Planner.BaseCurrency != "EUR" || cfg.Planner.RunRetention != 10*time.Minute {
		t.Errorf("unexpected planner config %+v", cfg.Planner)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Timeout != 30*time.Second || cfg.LLM.Temperature != 0.7 {
		t.Errorf("unexpected llm config %+v", cfg.LLM)
	}
	if cfg.Collectors.OpenWeatherKey != "abc" || cfg.Collectors.CacheTTL != 5*time.Minute || cfg.Collectors.HTTPTimeout != 10*time.Second {
		t.Errorf("unexpected collectors config %+v", cfg.Collectors)
	}
	if !cfg.Approval.WeatherGates || cfg.Approval.CheckpointDir != "/tmp/cp" {
		t.Errorf("unexpected approval config %+v", cfg.Approval)
	}
	if cfg.Embedding.Provider != "hash" || cfg.Embedding.Dimension != 384 || cfg.Server.Address != ":8080" {
		t.Error("unset sections should keep their defaults")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tripweaver.yaml", "server:\n  address: \":9000\"\n")
	t.Setenv("TRIPWEAVER_SERVER_ADDRESS", ":9999")
	t.Setenv("TRIPWEAVER_DATABASE_DSN", "postgres://localhost/trips")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Address != ":9999" || cfg.Database.DSN != "postgres://localhost/trips" {
		t.Errorf("environment did not override: %+v %+v", cfg.Server, cfg.Database)
	}
}

func TestLoad_DefaultsAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "TRIPWEAVER_LLM_PROVIDER=none\n")
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("TRIPWEAVER_LLM_PROVIDER") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without a file should use defaults: %v", err)
	}
	if cfg.LLM.Provider != "none" {
		t.Errorf("expected the .env value, got %q", cfg.LLM.Provider)
	}
	if cfg.Index.Path != Default().Index.Path {
		t.Errorf("unexpected index path %q", cfg.Index.Path)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("an explicit missing file should fail")
	}
	path := writeFile(t, t.TempDir(), "bad.yaml", "llm:\n  provider: carrier-pigeon\nembedding:\n  dimension: 0\n")
	if _, err := Load(path); err == nil {
		t.Error("expected validation errors")
	}
}

func TestApprovalRules(t *testing.T) {
	cfg := Default()
	rules, err := cfg.ApprovalRules()
	if err != nil || rules != nil {
		t.Fatalf("no rules file means built-in rules, got %v %v", rules, err)
	}

	cfg.Approval.RulesFile = writeFile(t, t.TempDir(), "rules.yaml", `
rules:
  - name: expensive
    expression: overrun_percentage > 20
`)
	rules, err = cfg.ApprovalRules()
	if err != nil || len(rules) != 1 || rules[0].Name != "expensive" {
		t.Errorf("unexpected rules %v %v", rules, err)
	}
}
