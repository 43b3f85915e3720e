package handler

import (
	"net/http"

	"github.com/hitoshi/plastudo/internal/middleware"
	"github.com/hitoshi/plastudo/internal/model"
)

// SessionCookieConfig はログインセッションCookieの設定。
type SessionCookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 有効期間（秒）
}

// setSessionCookie はセッションIDをHTTP Only Cookieに設定する。
func setSessionCookie(w http.ResponseWriter, config SessionCookieConfig, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func clearSessionCookie(w http.ResponseWriter, config SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
