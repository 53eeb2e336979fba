package extract

import (
	"context"
	"sync"

	"github.com/fusae/sentinel/internal/mail"
)

// Extractor implements C3: it parses the hospital name and candidate URLs
// out of one mail and renders each URL through a bounded fetch pool.
type Extractor struct {
	pool         *Pool
	vendorDomain string
}

// New builds an Extractor over a shared fetch pool.
func New(pool *Pool, vendorDomain string) *Extractor {
	return &Extractor{pool: pool, vendorDomain: vendorDomain}
}

// Extract renders every candidate URL in the mail concurrently (bounded by
// the shared pool), preserving input order in the returned slice so callers
// can classify/aggregate deterministically.
func (e *Extractor) Extract(ctx context.Context, m mail.RawMail) []Article {
	hospital := ParseHospitalName(m.Subject, m.Body)
	urls := CandidateURLs(m.Body, e.vendorDomain)
	if len(urls) == 0 {
		return nil
	}

	articles := make([]Article, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			articles[i] = e.pool.Fetch(ctx, u)
			articles[i].Hospital = hospital
		}(i, u)
	}
	wg.Wait()

	return articles
}
