package extract

// Article is a single scraped web page describing a candidate incident.
type Article struct {
	Hospital       string
	SourcePlatform string
	Title          string
	URL            string
	Body           string
	// LowConfidence marks a synthetic empty-body article produced after a
	// timed-out or exhausted-retry fetch. The classifier does not call the
	// LLM for it and returns a non-negative "fetch-failed" verdict.
	LowConfidence bool
}
