package extract

import (
	"strings"
	"testing"
)

func TestParseHospitalNameLabelled(t *testing.T) {
	body := "详情如下\n医院：市第一人民医院\n更多内容"
	got := ParseHospitalName("无关主题", body)
	if got != "市第一人民医院" {
		t.Errorf("expected labelled hospital name, got %q", got)
	}
}

func TestParseHospitalNameFromSubject(t *testing.T) {
	got := ParseHospitalName("【市中心医院】舆情提醒", "无标注正文")
	if !strings.Contains(got, "医院") {
		t.Errorf("expected a hospital name extracted from subject, got %q", got)
	}
}

func TestParseHospitalNameFallback(t *testing.T) {
	got := ParseHospitalName("普通邮件主题", "普通正文")
	if got != unknownHospital {
		t.Errorf("expected fallback %q, got %q", unknownHospital, got)
	}
}

func TestCandidateURLsFiltersVendorDomain(t *testing.T) {
	body := "详见 https://vendor.example.com/report/1 以及 https://other.com/x 和 https://sub.vendor.example.com/y"
	got := CandidateURLs(body, "vendor.example.com")
	if len(got) != 2 {
		t.Fatalf("expected 2 vendor-domain urls, got %d: %v", len(got), got)
	}
}

func TestCandidateURLsDedupes(t *testing.T) {
	body := "重复链接 https://vendor.example.com/x https://vendor.example.com/x"
	got := CandidateURLs(body, "vendor.example.com")
	if len(got) != 1 {
		t.Errorf("expected duplicate urls collapsed to 1, got %d", len(got))
	}
}

func TestTruncateRespectsByteCap(t *testing.T) {
	s := strings.Repeat("a", 100)
	got := truncate(s, 10)
	if len(got) > 13 { // 10 bytes + ellipsis (3 bytes for "…")
		t.Errorf("expected truncated string near the byte cap, got length %d", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("expected truncated string to end with an ellipsis")
	}
}
