package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/plastudo/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethod_IssuesCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{CookieSecure: true, CookieDomain: "plastudo.pt"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/tutors", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	cookie := findCookie(w, csrfCookieName)
	if cookie == nil {
		t.Fatal("expected csrf_token cookie to be issued")
	}
	if len(cookie.Value) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(cookie.Value))
	}
	if cookie.HttpOnly {
		t.Error("csrf cookie must be readable from JavaScript")
	}
	if !cookie.Secure || cookie.Domain != "plastudo.pt" {
		t.Errorf("cookie = %+v, want secure cookie for plastudo.pt", cookie)
	}
}

func TestCSRFMiddleware_SafeMethod_KeepsExistingCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/tutors", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if findCookie(w, csrfCookieName) != nil {
		t.Error("existing token should not be replaced")
	}
}

func TestCSRFMiddleware_StateChanging_Validation(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"matching tokens", "tok", "tok", http.StatusOK},
		{"missing cookie", "", "tok", http.StatusForbidden},
		{"missing header", "tok", "", http.StatusForbidden},
		{"mismatch", "tok", "other", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

			req := httptest.NewRequest(http.MethodPut, "/api/questionnaires/tutor/attempts/x/answers", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				if body := decodeErrorBody(t, w); body.Code != model.ErrCodeCSRFTokenInvalid {
					t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFTokenInvalid)
				}
			}
		})
	}
}

func TestCSRFTokenHandler_ReturnsTokenAndCookie(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/csrf-token", NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	cookie := findCookie(w, csrfCookieName)
	if cookie == nil {
		t.Fatal("expected csrf_token cookie")
	}
	if body.Token == "" || body.Token != cookie.Value {
		t.Errorf("token = %q, cookie = %q, want equal non-empty values", body.Token, cookie.Value)
	}
}

func TestCSRFTokenHandler_ReusesExistingCookie(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "kept-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["token"] != "kept-token" {
		t.Errorf("token = %q, want kept-token", body["token"])
	}
	if findCookie(w, csrfCookieName) != nil {
		t.Error("existing cookie should not be reissued")
	}
}

func TestCSRFMiddleware_SignedTokens(t *testing.T) {
	config := CSRFConfig{Secret: []byte("test-session-secret")}
	handler := NewCSRFMiddleware(config)(okHandler())

	get := httptest.NewRecorder()
	handler.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/tutors", nil))
	issued := findCookie(get, csrfCookieName)
	if issued == nil {
		t.Fatal("expected csrf_token cookie to be issued")
	}
	nonce, sig, ok := strings.Cut(issued.Value, ".")
	if !ok || len(nonce) != 64 || len(sig) != 64 {
		t.Fatalf("token = %q, want <nonce>.<signature>", issued.Value)
	}

	otherSig := signCSRFNonce(nonce, []byte("another-secret"))
	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"issued token", issued.Value, http.StatusOK},
		{"unsigned token", nonce, http.StatusForbidden},
		{"forged signature", nonce + "." + otherSig, http.StatusForbidden},
		{"planted plain value", "attacker-value", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.token})
			req.Header.Set(csrfHeaderName, tt.token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestCSRFMiddleware_SignedTokens_ReissuesInvalidCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{Secret: []byte("test-session-secret")})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/tutors", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "attacker-value"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookie := findCookie(w, csrfCookieName)
	if cookie == nil || cookie.Value == "attacker-value" {
		t.Errorf("cookie = %+v, want a freshly signed token", cookie)
	}
}

func TestCSRFTokenHandler_SignedTokenIsReused(t *testing.T) {
	config := CSRFConfig{Secret: []byte("test-session-secret")}
	handler := NewCSRFTokenHandler(config)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	issued := findCookie(first, csrfCookieName)
	if issued == nil {
		t.Fatal("expected csrf_token cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(issued)
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)

	var body map[string]string
	if err := json.NewDecoder(second.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["token"] != issued.Value {
		t.Errorf("token = %q, want %q", body["token"], issued.Value)
	}
	if findCookie(second, csrfCookieName) != nil {
		t.Error("valid signed cookie should not be reissued")
	}
}
