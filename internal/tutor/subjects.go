package tutor

import (
	"strings"
	"unicode/utf8"
)

// プロフィール項目の上限。
const (
	maxSubjects      = 10
	maxSubjectLength = 50
	maxNameLength    = 100
	maxLocationLen   = 100
	maxBioLength     = 2000
)

// normalizeSubjects は科目名の前後の空白を除き、空要素と重複（大文字小文字を区別しない）を除いて
// 入力順を保ったまま最大maxSubjects件に制限する。
func normalizeSubjects(subjects []string) ([]string, bool) {
	out := make([]string, 0, len(subjects))
	seen := make(map[string]bool, len(subjects))

	for _, s := range subjects {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(s) > maxSubjectLength {
			return nil, false
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == maxSubjects {
			break
		}
	}
	return out, true
}
