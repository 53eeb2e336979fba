package classify

import (
	"testing"

	"github.com/fusae/sentinel/internal/store"
)

func TestApplyRulesSuppressShortCircuits(t *testing.T) {
	rules := []store.FeedbackRule{
		{Pattern: "医疗纠纷例行公示", RuleType: store.RuleTypeKeyword, Action: store.RuleActionSuppress, Enabled: true},
	}
	res := applyRules(rules, "医疗纠纷例行公示", "本月例行公示")
	if !res.matched || !res.suppressed {
		t.Fatalf("expected a suppress match, got %+v", res)
	}
}

func TestApplyRulesDowngradeCapsCeiling(t *testing.T) {
	rules := []store.FeedbackRule{
		{Pattern: "投诉", RuleType: store.RuleTypeKeyword, Action: store.RuleActionDowngrade, Enabled: true},
	}
	res := applyRules(rules, "患者投诉服务态度", "")
	if res.suppressed {
		t.Fatal("downgrade rule must not suppress")
	}
	if res.downgradeCeiling != SeverityMedium {
		t.Errorf("expected downgrade ceiling %q, got %q", SeverityMedium, res.downgradeCeiling)
	}
}

func TestApplyRulesDisabledRuleIgnored(t *testing.T) {
	rules := []store.FeedbackRule{
		{Pattern: "投诉", RuleType: store.RuleTypeKeyword, Action: store.RuleActionSuppress, Enabled: false},
	}
	res := applyRules(rules, "患者投诉", "")
	if res.matched {
		t.Error("a disabled rule must never match")
	}
}

func TestMatchRuleRegexMatch(t *testing.T) {
	rules := []store.FeedbackRule{
		{Pattern: `医疗事故.*死亡`, RuleType: store.RuleTypeRegex, Action: store.RuleActionSuppress, Enabled: true},
	}
	if !matchRule(rules[0], "本次医疗事故导致患者死亡") {
		t.Error("expected regex rule to match")
	}
}

func TestApplySuppressKeywordsMatches(t *testing.T) {
	matched, kw := applySuppressKeywords([]string{"广告", "招聘"}, "医院招聘启事", "")
	if !matched || kw != "招聘" {
		t.Errorf("expected keyword match on 招聘, got matched=%v kw=%q", matched, kw)
	}
}

func TestApplySuppressKeywordsNoMatch(t *testing.T) {
	matched, _ := applySuppressKeywords([]string{"广告"}, "严重医疗事故", "患者死亡")
	if matched {
		t.Error("expected no suppress-keyword match")
	}
}

func TestCapSeverityLowersAboveCeiling(t *testing.T) {
	if got := capSeverity(SeverityHigh, SeverityMedium); got != SeverityMedium {
		t.Errorf("expected severity capped to medium, got %q", got)
	}
	if got := capSeverity(SeverityLow, SeverityMedium); got != SeverityLow {
		t.Errorf("severity below ceiling must be unaffected, got %q", got)
	}
}

func TestNormalizeSeverityCoercesUnknown(t *testing.T) {
	if got := normalizeSeverity("URGENT"); got != SeverityLow {
		t.Errorf("expected unrecognized severity to coerce to low, got %q", got)
	}
	if got := normalizeSeverity(" High "); got != SeverityHigh {
		t.Errorf("expected trimmed/lowercased match, got %q", got)
	}
}

func TestSeverityScoreMapping(t *testing.T) {
	cases := map[string]float64{SeverityLow: 0.35, SeverityMedium: 0.60, SeverityHigh: 0.92}
	for sev, want := range cases {
		if got := SeverityScore(sev); got != want {
			t.Errorf("SeverityScore(%q) = %v, want %v", sev, got, want)
		}
	}
}

func TestBuildPromptIncludesRubricAndHints(t *testing.T) {
	rules := []store.FeedbackRule{{Pattern: "投诉", RuleType: store.RuleTypeKeyword, Action: store.RuleActionDowngrade}}
	examples := []fewShotExample{{Hospital: "市医院", Source: "test.com", Title: "旧文", Content: "内容", Judgement: false}}
	prompt := buildPrompt("市医院", "test.com", "标题", "正文", rules, examples)

	if !contains(prompt, "is_negative") {
		t.Error("expected prompt to include the strict JSON field contract")
	}
	if !contains(prompt, "投诉") {
		t.Error("expected prompt to include the active rule hint")
	}
	if !contains(prompt, "false-positive") {
		t.Error("expected prompt to include the few-shot judgement label")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
