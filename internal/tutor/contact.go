package tutor

import (
	"fmt"
	"net/url"
	"strings"
)

const contactSubject = "Interessado em explicações - Plastudo"

const contactBodyTemplate = "Olá %s,\n\n" +
	"Encontrei o seu perfil na Plastudo e estou interessado(a) nas suas explicações.\n\n" +
	"Podemos conversar sobre disponibilidade e condições?\n\n" +
	"Obrigado(a)!"

// MailtoLink は講師への問い合わせ用mailtoリンクを生成する。
func MailtoLink(email, tutorName string) string {
	q := "subject=" + escape(contactSubject) +
		"&body=" + escape(fmt.Sprintf(contactBodyTemplate, tutorName))
	return "mailto:" + email + "?" + q
}

// escape はmailtoのクエリ値として空白を%20でエスケープする。
// url.QueryEscapeは空白を"+"にするが、メールクライアントはそれを復元しない。
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
