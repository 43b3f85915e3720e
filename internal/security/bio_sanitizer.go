// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// BioSanitizer は講師プロフィールの自己紹介文をサニタイズする。
type BioSanitizer interface {
	// Sanitize は許可リストにないタグと属性を除去した自己紹介文を返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

type bioSanitizer struct {
	policy *bluemonday.Policy
}

// NewBioSanitizer は自己紹介文用のポリシーを持つBioSanitizerを生成する。
//   - 許可タグ: p, br, ul, ol, li, strong, em, a
//   - aタグ: http/https/mailtoのみ。rel="nofollow noreferrer noopener"とtarget="_blank"を付与
//   - 画像、script、style、on*イベント属性は除去
func NewBioSanitizer() *bioSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &bioSanitizer{policy: p}
}

// Sanitize は自己紹介文をサニタイズする。
func (s *bioSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// compile-time interface check
var _ BioSanitizer = (*bioSanitizer)(nil)
