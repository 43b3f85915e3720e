package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/plastudo/internal/middleware"
	"github.com/hitoshi/plastudo/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	createOrSignInFn func(ctx context.Context, creds model.Credentials) (*model.Session, error)
	oauthEnabled     bool
	getLoginURLFn    func(state string) (string, error)
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) CreateOrSignIn(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	if m.createOrSignInFn != nil {
		return m.createOrSignInFn(ctx, creds)
	}
	return nil, nil
}

func (m *mockAuthService) OAuthEnabled() bool {
	return m.oauthEnabled
}

func (m *mockAuthService) GetLoginURL(state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

type mockOnboardingService struct {
	startFn    func() attemptResponse
	stateFn    func(sessionID string) (*attemptResponse, error)
	answerFn   func(ctx context.Context, sessionID string, questionID int, value string) (*answerResponse, error)
	registerFn func(ctx context.Context, sessionID string, creds model.Credentials) (*model.Session, *promotionResponse, error)
	completeFn func(ctx context.Context, sessionID, userID string) (*promotionResponse, error)
}

func (m *mockOnboardingService) Start() attemptResponse {
	if m.startFn != nil {
		return m.startFn()
	}
	return attemptResponse{}
}

func (m *mockOnboardingService) State(sessionID string) (*attemptResponse, error) {
	if m.stateFn != nil {
		return m.stateFn(sessionID)
	}
	return nil, nil
}

func (m *mockOnboardingService) Answer(ctx context.Context, sessionID string, questionID int, value string) (*answerResponse, error) {
	if m.answerFn != nil {
		return m.answerFn(ctx, sessionID, questionID, value)
	}
	return nil, nil
}

func (m *mockOnboardingService) Register(ctx context.Context, sessionID string, creds model.Credentials) (*model.Session, *promotionResponse, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, sessionID, creds)
	}
	return nil, nil, nil
}

func (m *mockOnboardingService) Complete(ctx context.Context, sessionID, userID string) (*promotionResponse, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, sessionID, userID)
	}
	return nil, nil
}

type mockTutorService struct {
	listFn        func(ctx context.Context, filter model.TutorFilter) ([]tutorSummaryResponse, error)
	matchesFn     func(ctx context.Context, answers map[string]string) ([]tutorSummaryResponse, error)
	getFn         func(ctx context.Context, tutorID string) (*tutorResponse, error)
	mineFn        func(ctx context.Context, userID string) (*tutorResponse, error)
	pictureFn     func(ctx context.Context, tutorID string) ([]byte, string, error)
	contactLinkFn func(ctx context.Context, tutorID string) (string, error)
	updateFn      func(ctx context.Context, userID, tutorID string, update model.TutorUpdate) (*tutorResponse, error)
}

func (m *mockTutorService) List(ctx context.Context, filter model.TutorFilter) ([]tutorSummaryResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []tutorSummaryResponse{}, nil
}

func (m *mockTutorService) Matches(ctx context.Context, answers map[string]string) ([]tutorSummaryResponse, error) {
	if m.matchesFn != nil {
		return m.matchesFn(ctx, answers)
	}
	return []tutorSummaryResponse{}, nil
}

func (m *mockTutorService) Get(ctx context.Context, tutorID string) (*tutorResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, tutorID)
	}
	return nil, nil
}

func (m *mockTutorService) Mine(ctx context.Context, userID string) (*tutorResponse, error) {
	if m.mineFn != nil {
		return m.mineFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTutorService) Picture(ctx context.Context, tutorID string) ([]byte, string, error) {
	if m.pictureFn != nil {
		return m.pictureFn(ctx, tutorID)
	}
	return nil, "", nil
}

func (m *mockTutorService) ContactLink(ctx context.Context, tutorID string) (string, error) {
	if m.contactLinkFn != nil {
		return m.contactLinkFn(ctx, tutorID)
	}
	return "", nil
}

func (m *mockTutorService) Update(ctx context.Context, userID, tutorID string, update model.TutorUpdate) (*tutorResponse, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, tutorID, update)
	}
	return nil, nil
}

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// --- ヘルパー ---

// withUserID はリクエストコンテキストにユーザーIDを設定する。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withURLParams はchiのURLパラメータを設定したリクエストを返す。
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body.Code
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
