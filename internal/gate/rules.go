// Package gate evaluates the approval rules that decide whether a run
// must stop at the approval checkpoint.
package gate

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Knetic/govaluate"
	"gopkg.in/yaml.v3"
)

// Built-in rule names.
const (
	RuleBudget   = "budget_overrun"
	RuleCrowding = "crowding"
	RuleQuality  = "low_quality"
	RuleWeather  = "weather"
)

// Rule is a named boolean expression over Facts parameters.
type Rule struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
}

// RuleFile is the YAML layout of a rules file.
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Facts are the risk outputs rules may reference.
type Facts struct {
	BudgetRisk        string
	WeatherRisk       string
	CrowdingRisk      string
	QualityScore      float64
	OverrunPercentage int
	RainPercentage    float64
}

// Parameters exposes the facts under their expression names.
func (f Facts) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"budget_risk":        f.BudgetRisk,
		"weather_risk":       f.WeatherRisk,
		"crowding_risk":      f.CrowdingRisk,
		"quality_score":      f.QualityScore,
		"overrun_percentage": float64(f.OverrunPercentage),
		"rain_percentage":    f.RainPercentage,
	}
}

// DefaultRules returns the built-in approval rules. The weather rule is
// only included when weatherGates is set.
func DefaultRules(weatherGates bool) []Rule {
	rules := []Rule{
		{Name: RuleBudget, Expression: `budget_risk == "high"`},
		{Name: RuleCrowding, Expression: `crowding_risk == "high"`},
		{Name: RuleQuality, Expression: `quality_score < 50`},
	}
	if weatherGates {
		rules = append(rules, Rule{Name: RuleWeather, Expression: `weather_risk == "high"`})
	}
	return rules
}

var (
	functionsMu sync.RWMutex
	functions   = map[string]govaluate.ExpressionFunction{
		"level": levelFunction,
	}
)

// RegisterFunction makes fn callable from rule expressions compiled afterwards.
func RegisterFunction(name string, fn govaluate.ExpressionFunction) {
	functionsMu.Lock()
	defer functionsMu.Unlock()
	functions[name] = fn
}

func whitelistedFunctions() map[string]govaluate.ExpressionFunction {
	functionsMu.RLock()
	defer functionsMu.RUnlock()
	out := make(map[string]govaluate.ExpressionFunction, len(functions))
	for k, v := range functions {
		out[k] = v
	}
	return out
}

// levelFunction orders risk labels: level("high") == 3.
func levelFunction(args ...interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("level expects 1 argument, got %d", len(args))
	}
	label, _ := args[0].(string)
	switch strings.ToLower(label) {
	case "very low":
		return 0.0, nil
	case "low":
		return 1.0, nil
	case "medium":
		return 2.0, nil
	case "high":
		return 3.0, nil
	default:
		return -1.0, nil
	}
}

// ValidateExpression checks that expr parses.
func ValidateExpression(expr string) error {
	_, err := govaluate.NewEvaluableExpressionWithFunctions(expr, whitelistedFunctions())
	return err
}

type compiledRule struct {
	Rule
	expr *govaluate.EvaluableExpression
}

// Evaluator holds a compiled rule set. It is safe for concurrent use.
type Evaluator struct {
	rules []compiledRule
}

// New compiles rules, failing on the first invalid expression.
func New(rules []Rule) (*Evaluator, error) {
	funcs := whitelistedFunctions()
	e := &Evaluator{}
	for i, r := range rules {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule_%d", i+1)
		}
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(r.Expression, funcs)
		if err != nil {
			return nil, fmt.Errorf("invalid approval rule %q: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{Rule: r, expr: expr})
	}
	return e, nil
}

// Rules lists the compiled rules in evaluation order.
func (e *Evaluator) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Rule
	}
	return out
}

// Evaluate returns the names of the rules that fire for f. A rule that
// does not yield a boolean is an error.
func (e *Evaluator) Evaluate(f Facts) ([]string, error) {
	params := f.Parameters()
	var fired []string
	for _, r := range e.rules {
		result, err := r.expr.Evaluate(params)
		if err != nil {
			return fired, fmt.Errorf("approval rule %q failed: %w", r.Name, err)
		}
		hit, ok := result.(bool)
		if !ok {
			return fired, fmt.Errorf("approval rule %q returned %T, want bool", r.Name, result)
		}
		if hit {
			fired = append(fired, r.Name)
		}
	}
	return fired, nil
}

// LoadRules reads a YAML rules file and validates every expression.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	for _, r := range file.Rules {
		if err := ValidateExpression(r.Expression); err != nil {
			return nil, fmt.Errorf("invalid approval rule %q: %w", r.Name, err)
		}
	}
	return file.Rules, nil
}
