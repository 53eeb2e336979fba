package extract

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Pool is the bounded-concurrency page-fetch capability standing in for a
// headless-browser pool: an HTTP client plus readability extraction, gated
// by a buffered-channel semaphore of size P_url, grounded directly in the
// donor's internal/fetch.ContentFetcher.
type Pool struct {
	client   *http.Client
	sem      chan struct{}
	retries  int
	byteCap  int
}

// NewPool builds a fetch pool with concurrency slots and a per-page timeout.
func NewPool(concurrency int, timeout time.Duration, retries, byteCap int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if byteCap <= 0 {
		byteCap = 20000
	}
	return &Pool{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		sem:     make(chan struct{}, concurrency),
		retries: retries,
		byteCap: byteCap,
	}
}

// Fetch acquires a pool slot and renders one page, returning a synthetic
// low-confidence Article on timeout/failure rather than an error, so a
// single bad link never aborts the mail it came from.
func (p *Pool) Fetch(ctx context.Context, pageURL string) Article {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		title, text, platform, err := p.fetchOnce(ctx, pageURL)
		if err == nil {
			return Article{
				Title:          title,
				URL:            pageURL,
				Body:           truncate(text, p.byteCap),
				SourcePlatform: platform,
			}
		}
		lastErr = err
	}

	_ = lastErr
	return Article{URL: pageURL, LowConfidence: true}
}

func (p *Pool) fetchOnce(ctx context.Context, pageURL string) (title, text, platform string, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", "", "", err
	}
	req.Header.Set("User-Agent", "sentinel/1.0 (reputation monitor)")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", "", err
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", "", "", err
	}

	platform = platformLabel(bodyBytes, parsedURL)
	return strings.TrimSpace(article.Title), strings.TrimSpace(article.TextContent), platform, nil
}

// platformLabel prefers the page's og:site_name meta tag, falling back to
// the resolved host.
func platformLabel(body []byte, u *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err == nil {
		if name, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	if u != nil {
		return u.Hostname()
	}
	return ""
}

func truncate(s string, byteCap int) string {
	if len(s) <= byteCap {
		return s
	}
	// Avoid splitting a multi-byte rune.
	cut := byteCap
	for cut > 0 && !isUTF8Boundary(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func isUTF8Boundary(b byte) bool {
	return b&0xC0 != 0x80
}

type httpError struct{ code int }

func (e *httpError) Error() string { return http.StatusText(e.code) }
