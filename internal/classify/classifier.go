package classify

import (
	"context"
	"time"

	"github.com/fusae/sentinel/internal/extract"
	"github.com/fusae/sentinel/internal/llm"
	"github.com/fusae/sentinel/internal/store"
)

// Classifier implements C4: rule prefilter, suppress-keyword check, LLM
// classification, strict JSON parsing, and normalization.
type Classifier struct {
	provider         llm.Provider
	db               *store.DB
	suppressKeywords func() []string
	maxTokens        int
	maxFewShot       int
}

// New builds a Classifier. suppressKeywords is a live accessor so admin
// updates via /api/notification/suppress_keywords take effect immediately.
func New(provider llm.Provider, db *store.DB, suppressKeywords func() []string, maxTokens, maxFewShot int) *Classifier {
	return &Classifier{provider: provider, db: db, suppressKeywords: suppressKeywords, maxTokens: maxTokens, maxFewShot: maxFewShot}
}

// Classify runs the full six-step algorithm from an extracted article.
func (c *Classifier) Classify(ctx context.Context, art extract.Article, source string) (Verdict, error) {
	rules, err := c.db.ListEnabledRules()
	if err != nil {
		return Verdict{}, err
	}

	// Step 1: compiled suppress/downgrade rule prefilter.
	pre := applyRules(rules, art.Title, art.Body)
	if pre.matched && pre.suppressed {
		return Verdict{IsNegative: false, Severity: SeverityLow, Reason: "rule:" + pre.pattern, Title: art.Title}, nil
	}

	// Step 2: manual admin suppress-keyword list.
	if matched, kw := applySuppressKeywords(c.suppressKeywords(), art.Title, art.Body); matched {
		return Verdict{IsNegative: false, Severity: SeverityLow, Reason: "keyword:" + kw, Title: art.Title}, nil
	}

	downgradeCeiling := pre.downgradeCeiling

	if art.LowConfidence {
		// A synthetic empty-body article from a failed fetch: nothing to
		// classify, never guess negative on missing content.
		return Verdict{IsNegative: false, Severity: SeverityLow, Reason: "fetch-failed", Title: art.Title}, nil
	}

	examples := c.recentExamples()

	prompt := buildPrompt(art.Hospital, source, art.Title, art.Body, rules, examples)

	// Step 4: LLM call (retries/backoff/timeout live inside the provider).
	if c.provider == nil {
		return Verdict{IsNegative: false, Severity: SeverityLow, Reason: "llm-unavailable", Title: art.Title}, nil
	}
	raw, err := c.provider.Generate(ctx, prompt, c.maxTokens)
	if err != nil {
		return Verdict{IsNegative: false, Severity: SeverityLow, Reason: "llm-unavailable", Title: art.Title}, nil
	}

	// Step 5: strict JSON parsing. Never fall back to a fuzzy heuristic.
	obj, ok := llm.ExtractJSONObject(raw)
	if !ok {
		return Verdict{IsNegative: false, Severity: SeverityLow, Reason: "parse-error", Title: art.Title}, nil
	}

	v := Verdict{
		IsNegative: getBool(obj, "is_negative"),
		Severity:   normalizeSeverity(getString(obj, "severity")),
		Reason:     getString(obj, "reason"),
		Title:      getString(obj, "title"),
		Confidence: clampConfidence(getFloat(obj, "confidence")),
	}
	if v.Title == "" {
		v.Title = art.Title
	}
	v.Severity = capSeverity(v.Severity, downgradeCeiling)

	return v, nil
}

// recentExamples resolves a bounded window of recent Feedback rows into
// full few-shot examples by joining each against its Sentiment. Feedback
// rows whose Sentiment has since been removed are skipped rather than
// aborting the whole batch.
func (c *Classifier) recentExamples() []fewShotExample {
	feedback, err := c.db.RecentFeedback(time.Now().Add(-30 * 24 * time.Hour))
	if err != nil || len(feedback) == 0 {
		return nil
	}
	if len(feedback) > c.maxFewShot {
		feedback = feedback[len(feedback)-c.maxFewShot:]
	}

	examples := make([]fewShotExample, 0, len(feedback))
	for _, f := range feedback {
		s, err := c.db.GetSentiment(f.SentimentID)
		if err != nil || s == nil {
			continue
		}
		source := ""
		if s.Source != nil {
			source = *s.Source
		}
		content := ""
		if s.Content != nil {
			content = *s.Content
		}
		examples = append(examples, fewShotExample{
			Hospital:  s.HospitalName,
			Source:    source,
			Title:     s.Title,
			Content:   content,
			Judgement: f.Judgement,
		})
	}
	return examples
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func getFloat(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}
