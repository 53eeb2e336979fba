package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var urlRE = regexp.MustCompile(`https?://[^\s"'<>()]+`)

// CandidateURLs collects distinct URLs from raw mail text (anchors are
// already flattened to plain URLs by the mail poller's HTML stripping, so a
// single regex scan covers both anchor hrefs and bare links), keeping only
// those on the configured vendor domain.
func CandidateURLs(body, vendorDomain string) []string {
	found := urlRE.FindAllString(body, -1)
	found = lo.Uniq(found)

	if vendorDomain == "" {
		return found
	}

	return lo.Filter(found, func(raw string, _ int) bool {
		u, err := url.Parse(raw)
		if err != nil {
			return false
		}
		host := strings.ToLower(u.Hostname())
		return host == vendorDomain || strings.HasSuffix(host, "."+vendorDomain)
	})
}
