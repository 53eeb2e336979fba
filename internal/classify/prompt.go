package classify

import (
	"fmt"
	"strings"

	"github.com/fusae/sentinel/internal/store"
)

// fewShotExample is one recent human-judged Sentiment, given to the model as
// context alongside its judgement.
type fewShotExample struct {
	Hospital  string
	Source    string
	Title     string
	Content   string
	Judgement bool
}

const rubric = `Severity rubric:
- high: the article accuses the hospital of serious malpractice, patient death or injury caused by negligence, or a scandal likely to draw regulatory attention.
- medium: the article reports a specific complaint, service failure, or dispute with identifiable but limited harm.
- low: the article is mildly critical, ambiguous, or largely neutral in tone.

Respond with a single JSON object and nothing else, with exactly these fields:
{"is_negative": true|false, "severity": "low"|"medium"|"high", "reason": "short reason", "title": "short title for this report", "confidence": 0.0-1.0}`

// buildPrompt assembles the classification prompt: hospital/source/title/body,
// the severity rubric, a hint of the currently active suppression patterns,
// and a handful of recent human-judged examples (few-shot context) to steer
// borderline calls without letting the hints alone decide the verdict.
func buildPrompt(hospital, source, title, body string, activeRules []store.FeedbackRule, fewShot []fewShotExample) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are reviewing a web report about hospital %q found on %q.\n\n", hospital, source)
	fmt.Fprintf(&b, "Title: %s\nContent:\n%s\n\n", title, body)
	b.WriteString(rubric)

	if len(activeRules) > 0 {
		b.WriteString("\n\nKnown exception patterns (for consistency with prior human review, do not treat as authoritative):\n")
		for _, r := range activeRules {
			fmt.Fprintf(&b, "- [%s/%s] %s\n", r.RuleType, r.Action, r.Pattern)
		}
	}

	if len(fewShot) > 0 {
		b.WriteString("\n\nRecent human-judged examples:\n")
		for _, f := range fewShot {
			judgement := "false-positive (not actually negative)"
			if f.Judgement {
				judgement = "confirmed negative"
			}
			fmt.Fprintf(&b, "- Hospital %q, source %q, title %q, content %q -> %s\n",
				f.Hospital, f.Source, f.Title, truncateSnippet(f.Content, 200), judgement)
		}
	}

	return b.String()
}

func truncateSnippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
