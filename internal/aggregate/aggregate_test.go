package aggregate

import "testing"

func TestCanonicalizeURL(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		params []string
		want   string
	}{
		{
			name: "lowercases scheme and host",
			raw:  "HTTP://Example.COM/path",
			want: "http://example.com/path",
		},
		{
			name: "strips default http port",
			raw:  "http://example.com:80/path",
			want: "http://example.com/path",
		},
		{
			name: "strips default https port",
			raw:  "https://example.com:443/path",
			want: "https://example.com/path",
		},
		{
			name: "keeps non-default port",
			raw:  "http://example.com:8080/path",
			want: "http://example.com:8080/path",
		},
		{
			name: "drops fragment",
			raw:  "https://example.com/path#section-2",
			want: "https://example.com/path",
		},
		{
			name:   "strips tracking params and sorts the rest",
			raw:    "https://example.com/a?utm_source=wechat&b=2&a=1&utm_campaign=x",
			params: []string{"utm_source", "utm_campaign"},
			want:   "https://example.com/a?a=1&b=2",
		},
		{
			name: "strips a single tracking param and keeps the rest",
			raw:  "https://news.example.com/report?spm=abc&id=42",
			params: []string{"spm"},
			want: "https://news.example.com/report?id=42",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanonicalizeURL(tc.raw, tc.params)
			if got != tc.want {
				t.Errorf("CanonicalizeURL(%q, %v) = %q, want %q", tc.raw, tc.params, got, tc.want)
			}
		})
	}
}

func TestCanonicalizeURLIsIdempotent(t *testing.T) {
	raw := "HTTP://Example.COM:80/path?utm_source=wechat&b=2&a=1#frag"
	params := []string{"utm_source"}

	once := CanonicalizeURL(raw, params)
	twice := CanonicalizeURL(once, params)
	if once != twice {
		t.Errorf("CanonicalizeURL is not idempotent: once=%q twice=%q", once, twice)
	}
}

func TestCanonicalizeURLUnparsable(t *testing.T) {
	raw := "  not a url at all  "
	got := CanonicalizeURL(raw, nil)
	if got != "not a url at all" {
		t.Errorf("expected the trimmed raw string to pass through unchanged, got %q", got)
	}
}

func TestNormalizeHospital(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"trims and collapses whitespace", "  示例   医院  ", "示例 医院"},
		{"strips one duplicated administrative suffix", "示例医院医院", "示例医院"},
		{"leaves a single suffix alone", "示例医院", "示例医院"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeHospital(tc.in)
			if got != tc.want {
				t.Errorf("NormalizeHospital(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Fingerprint("https://example.com/a", "示例医院")
	b := Fingerprint("https://example.com/a", "示例医院")
	if a != b {
		t.Errorf("expected the same inputs to fingerprint identically, got %d and %d", a, b)
	}
}

func TestFingerprintDiffersByURL(t *testing.T) {
	a := Fingerprint("https://example.com/a", "示例医院")
	b := Fingerprint("https://example.com/b", "示例医院")
	if a == b {
		t.Errorf("expected different URLs to fingerprint differently, both got %d", a)
	}
}

func TestFingerprintDiffersByHospital(t *testing.T) {
	a := Fingerprint("https://example.com/a", "示例医院")
	b := Fingerprint("https://example.com/a", "另一家医院")
	if a == b {
		t.Errorf("expected different hospitals to fingerprint differently, both got %d", a)
	}
}

func TestFingerprintNoDelimiterCollision(t *testing.T) {
	// Without an internal separator, ("ab", "c") and ("a", "bc") would collide.
	a := Fingerprint("ab", "c")
	b := Fingerprint("a", "bc")
	if a == b {
		t.Errorf("expected the NUL-separated fingerprint to avoid concatenation collisions, both got %d", a)
	}
}

func TestCanonicalizeThenFingerprintMatchesAcrossTrackingVariants(t *testing.T) {
	params := []string{"utm_source", "utm_medium"}
	a := Fingerprint(CanonicalizeURL("https://example.com/report?utm_source=wechat", params), NormalizeHospital("示例医院"))
	b := Fingerprint(CanonicalizeURL("https://example.com/report?utm_medium=share", params), NormalizeHospital("示例医院"))
	if a != b {
		t.Errorf("expected the same article shared with different tracking params to fingerprint identically, got %d and %d", a, b)
	}
}
