package aggregate

import (
	"hash/fnv"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"
)

var defaultPortByScheme = map[string]string{
	"http":  "80",
	"https": "443",
}

// CanonicalizeURL normalizes a URL the way spec's event fingerprint requires:
// lower-case scheme and host, strip default ports, drop the fragment, strip
// tracking query parameters, and sort the remaining query keys. A string
// that does not parse as an absolute URL (no scheme or host) is returned
// trimmed and otherwise unchanged. It is
// idempotent: CanonicalizeURL(CanonicalizeURL(u)) == CanonicalizeURL(u).
func CanonicalizeURL(raw string, trackingParams []string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if host, port, ok := splitHostPort(u.Host); ok {
		if defaultPortByScheme[u.Scheme] == port {
			u.Host = host
		}
	}

	tracking := lo.SliceToMap(trackingParams, func(p string) (string, struct{}) {
		return strings.ToLower(p), struct{}{}
	})

	q := u.Query()
	keep := url.Values{}
	for k, v := range q {
		if _, dropped := tracking[strings.ToLower(k)]; dropped {
			continue
		}
		keep[k] = v
	}

	keys := lo.Keys(keep)
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := keep[k]
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(pairs, "&")

	return u.String()
}

func splitHostPort(host string) (h, port string, ok bool) {
	idx := strings.LastIndex(host, ":")
	if idx < 0 {
		return host, "", false
	}
	return host[:idx], host[idx+1:], true
}

var administrativeSuffixes = []string{"医院", "有限公司", "股份有限公司", "分院", "院区"}

var whitespaceRE = regexp.MustCompile(`\s+`)

// NormalizeHospital trims, collapses whitespace, and strips a single
// trailing administrative suffix duplicated by the extractor's hospital-name
// parsing (e.g. mail subjects sometimes append the legal-entity suffix a
// second time).
func NormalizeHospital(name string) string {
	name = strings.TrimSpace(name)
	name = whitespaceRE.ReplaceAllString(name, " ")
	for _, suffix := range administrativeSuffixes {
		trimmed := strings.TrimSuffix(name, suffix+suffix)
		if trimmed != name {
			name = trimmed + suffix
			break
		}
	}
	return name
}

// Fingerprint derives the 64-bit unsigned event key from a canonical URL and
// a normalized hospital name. FNV-64a is used because no non-cryptographic
// hash library appears anywhere in the retrieval pack; this is a deliberate
// standard-library choice, not an oversight (see DESIGN.md).
func Fingerprint(canonicalURL, normalizedHospital string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(canonicalURL))
	h.Write([]byte{0})
	h.Write([]byte(normalizedHospital))
	return h.Sum64()
}
