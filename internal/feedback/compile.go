package feedback

import (
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/fusae/sentinel/internal/store"
)

// tokenRE splits a sentiment title plus its feedback text into candidate
// keyword tokens: runs of two to eight CJK characters or three to twenty
// ASCII letters and digits, short enough
// to recur across unrelated false positives but specific enough to not
// suppress everything.
var tokenRE = regexp.MustCompile(`[\p{Han}]{2,8}|[A-Za-z0-9]{3,20}`)

// Compiler promotes recurring false-positive feedback into compiled
// suppress rules, the way a human reviewer would notice "we keep marking
// routine notices about X as negative" and add a standing exception.
type Compiler struct {
	db        *store.DB
	threshold int
	lookback  time.Duration
}

// NewCompiler builds a Compiler. threshold is the minimum number of
// distinct false-positive sentiments a token must appear in before it is
// promoted to a suppress rule.
func NewCompiler(db *store.DB, threshold int, lookback time.Duration) *Compiler {
	if threshold <= 0 {
		threshold = 3
	}
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	return &Compiler{db: db, threshold: threshold, lookback: lookback}
}

// Compile scans recent feedback for false positives, counts recurring
// tokens across them, and inserts a suppress rule for any token that meets
// the threshold. It never touches manually-authored rules and is safe to
// run repeatedly (InsertRuleIfAbsent keeps it idempotent).
func (c *Compiler) Compile() (compiled int, err error) {
	feedback, err := c.db.RecentFeedback(time.Now().Add(-c.lookback))
	if err != nil {
		return 0, err
	}

	falsePositives := lo.Filter(feedback, func(f store.Feedback, _ int) bool { return !f.Judgement })
	confirmedNegatives := lo.Filter(feedback, func(f store.Feedback, _ int) bool { return f.Judgement })
	if len(falsePositives) == 0 {
		return 0, nil
	}

	confirmedTokens := tokenSetFromFeedback(c.db, confirmedNegatives)

	tokenSentiments := map[string]map[string]struct{}{} // token -> set of sentiment ids
	tokenSourceFeedback := map[string]int64{}

	for _, f := range falsePositives {
		s, err := c.db.GetSentiment(f.SentimentID)
		if err != nil || s == nil {
			continue
		}
		text := s.Title
		if f.Text != nil {
			text = text + "\n" + *f.Text
		}
		for _, tok := range lo.Uniq(tokenRE.FindAllString(text, -1)) {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if tokenSentiments[tok] == nil {
				tokenSentiments[tok] = map[string]struct{}{}
			}
			tokenSentiments[tok][f.SentimentID] = struct{}{}
			tokenSourceFeedback[tok] = f.ID
		}
	}

	for tok, sentiments := range tokenSentiments {
		if len(sentiments) < c.threshold {
			continue
		}
		// A token that also recurs in a confirmed-negative report is not a
		// reliable false-positive signal and must never be auto-suppressed.
		if _, seenInConfirmed := confirmedTokens[tok]; seenInConfirmed {
			continue
		}
		sourceID := tokenSourceFeedback[tok]
		confidence := float64(len(sentiments)) / float64(len(falsePositives))
		inserted, err := c.db.InsertRuleIfAbsent(store.FeedbackRule{
			Pattern:          tok,
			RuleType:         store.RuleTypeKeyword,
			Action:           store.RuleActionSuppress,
			Confidence:       confidence,
			Enabled:          true,
			SourceFeedbackID: &sourceID,
		})
		if err != nil {
			log.Printf("feedback: compiling rule for %q: %v", tok, err)
			continue
		}
		if inserted {
			compiled++
		}
	}

	return compiled, nil
}

// tokenSetFromFeedback extracts the same candidate tokens tokenRE finds in
// false-positive feedback, but over a set of confirmed-negative feedback
// rows, so Compile can exclude any token that also genuinely signals a
// negative report.
func tokenSetFromFeedback(db *store.DB, feedback []store.Feedback) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, f := range feedback {
		s, err := db.GetSentiment(f.SentimentID)
		if err != nil || s == nil {
			continue
		}
		text := s.Title
		if f.Text != nil {
			text = text + "\n" + *f.Text
		}
		for _, tok := range tokenRE.FindAllString(text, -1) {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}
