package tutor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// excerptLength は一覧に表示する自己紹介文の最大文字数。
const excerptLength = 160

// Excerpt はHTMLの自己紹介文からタグを除いたテキストを取り出し、
// maxRunes文字を超える場合は末尾を"…"で省略する。
func Excerpt(bio string, maxRunes int) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(bio))

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return truncate(strings.Join(strings.Fields(b.String()), " "), maxRunes)
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// ブロック要素の境界で単語が連結されないようにする
			b.WriteByte(' ')
		}
	}
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
