package extract

import (
	"regexp"
	"strings"
)

var labelledHospitalRE = regexp.MustCompile(`(?m)^\s*(?:医院|机构|单位)[：:]\s*(\S.+)$`)

var subjectHospitalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`【(.+?医院.*?)】`),
	regexp.MustCompile(`(.+?(?:人民医院|中心医院|医学院附属医院|第[一二三四五六七八九十]+医院|医院))`),
}

const unknownHospital = "未知"

// ParseHospitalName extracts the hospital name from a mail's body and
// subject, preferring an explicit labelled line, then subject patterns, and
// falling back to a fixed "unknown" sentinel value.
func ParseHospitalName(subject, body string) string {
	if m := labelledHospitalRE.FindStringSubmatch(body); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	for _, re := range subjectHospitalPatterns {
		if m := re.FindStringSubmatch(subject); len(m) == 2 {
			return strings.TrimSpace(m[1])
		}
	}
	return unknownHospital
}
