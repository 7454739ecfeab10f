package observability

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRuleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert string            `yaml:"alert"`
			Expr  string            `yaml:"expr"`
			For   string            `yaml:"for"`
			Label map[string]string `yaml:"labels"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

func TestBillingAlertRulesParse(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "billing.yml")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read alert rules: %v", err)
	}

	var rules alertRuleFile
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		t.Fatalf("parse alert rules: %v", err)
	}

	if len(rules.Groups) == 0 {
		t.Fatal("expected at least one alert group")
	}
	found := false
	for _, group := range rules.Groups {
		if group.Name != "billing" {
			continue
		}
		found = true
		if len(group.Rules) == 0 {
			t.Fatal("billing group has no rules")
		}
		for _, rule := range group.Rules {
			if rule.Alert == "" || rule.Expr == "" {
				t.Fatalf("incomplete rule in billing group: %+v", rule)
			}
		}
	}
	if !found {
		t.Fatal("expected a billing alert group")
	}
}
