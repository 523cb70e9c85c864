package gate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRules(t *testing.T) {
	e, err := New(DefaultRules(false))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	tests := []struct {
		name  string
		facts Facts
		want  []string
	}{
		{"calm", Facts{BudgetRisk: "low", WeatherRisk: "low", CrowdingRisk: "low", QualityScore: 88}, nil},
		{"budget", Facts{BudgetRisk: "high", WeatherRisk: "low", CrowdingRisk: "low", QualityScore: 70}, []string{RuleBudget}},
		{"crowding and quality", Facts{BudgetRisk: "medium", CrowdingRisk: "high", QualityScore: 49.9}, []string{RuleCrowding, RuleQuality}},
		{"weather alone does not gate", Facts{BudgetRisk: "low", WeatherRisk: "high", CrowdingRisk: "low", QualityScore: 60}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.facts)
			if err != nil {
				t.Fatalf("evaluate failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestDefaultRules_WeatherGating(t *testing.T) {
	e, err := New(DefaultRules(true))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	got, _ := e.Evaluate(Facts{BudgetRisk: "low", WeatherRisk: "high", CrowdingRisk: "low", QualityScore: 60})
	if len(got) != 1 || got[0] != RuleWeather {
		t.Errorf("expected weather rule to fire, got %v", got)
	}
}

func TestLevelFunctionAndCustomRules(t *testing.T) {
	e, err := New([]Rule{{Expression: `level(budget_risk) >= 2 && overrun_percentage > 10`}})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	got, _ := e.Evaluate(Facts{BudgetRisk: "medium", OverrunPercentage: 15})
	if len(got) != 1 || got[0] != "rule_1" {
		t.Errorf("expected rule_1 to fire, got %v", got)
	}

	nonBool, _ := New([]Rule{{Name: "score", Expression: "quality_score + 1"}})
	if _, err := nonBool.Evaluate(Facts{}); err == nil {
		t.Errorf("expected error for non-boolean rule")
	}
	if _, err := New([]Rule{{Name: "broken", Expression: "quality_score <"}}); err == nil {
		t.Errorf("expected compile error")
	}
}

func TestRegisterFunction(t *testing.T) {
	RegisterFunction("wet", func(args ...interface{}) (interface{}, error) {
		return args[0].(float64) > 50, nil
	})
	e, err := New([]Rule{{Name: "wet", Expression: "wet(rain_percentage)"}})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	got, _ := e.Evaluate(Facts{RainPercentage: 80})
	if len(got) != 1 {
		t.Errorf("expected custom function rule to fire")
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "rules:\n  - name: pricey\n    expression: overrun_percentage > 30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err := LoadRules(path)
	if err != nil || len(rules) != 1 || rules[0].Name != "pricey" {
		t.Fatalf("unexpected rules %v, %v", rules, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(bad, []byte("rules:\n  - name: x\n    expression: \"(\"\n"), 0o644)
	if _, err := LoadRules(bad); err == nil {
		t.Errorf("expected validation error")
	}
}
