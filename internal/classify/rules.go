package classify

import (
	"regexp"
	"strings"

	"github.com/fusae/sentinel/internal/store"
)

// matchRule reports whether a rule's pattern matches text, applying the
// rule's own type (literal keyword vs regex).
func matchRule(r store.FeedbackRule, text string) bool {
	if r.RuleType == store.RuleTypeRegex {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return strings.Contains(text, r.Pattern)
}

// prefilterResult carries what a matched rule/keyword implies for the
// eventual verdict.
type prefilterResult struct {
	matched          bool
	suppressed       bool
	downgradeCeiling string
	reasonPrefix     string
	pattern          string
}

// applyRules evaluates enabled suppress/downgrade FeedbackRules against
// title+body, short-circuiting the LLM call on a suppress match.
func applyRules(rules []store.FeedbackRule, title, body string) prefilterResult {
	text := title + "\n" + body
	ceiling := ""

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if !matchRule(r, text) {
			continue
		}
		switch r.Action {
		case store.RuleActionSuppress:
			return prefilterResult{matched: true, suppressed: true, reasonPrefix: "rule", pattern: r.Pattern}
		case store.RuleActionDowngrade:
			ceiling = SeverityMedium
		}
	}

	if ceiling != "" {
		return prefilterResult{matched: true, downgradeCeiling: ceiling}
	}
	return prefilterResult{}
}

// applySuppressKeywords evaluates the admin-managed manual keyword list,
// distinct from compiled FeedbackRules (see the resolved open question in
// the design notes): matches are tagged "keyword:<word>" rather than
// "rule:<pattern>" so the two suppression sources stay externally visible.
func applySuppressKeywords(keywords []string, title, body string) (matched bool, keyword string) {
	text := title + "\n" + body
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, kw) {
			return true, kw
		}
	}
	return false, ""
}

func severityRank(s string) int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

func capSeverity(severity, ceiling string) string {
	if ceiling == "" {
		return severity
	}
	if severityRank(severity) > severityRank(ceiling) {
		return ceiling
	}
	return severity
}
