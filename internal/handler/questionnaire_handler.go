package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/plastudo/internal/model"
	"github.com/hitoshi/plastudo/internal/onboarding"
)

// OnboardingServiceInterface は講師アンケートのハンドラーが必要とするサービスインターフェース。
type OnboardingServiceInterface interface {
	Start() attemptResponse
	State(sessionID string) (*attemptResponse, error)
	Answer(ctx context.Context, sessionID string, questionID int, value string) (*answerResponse, error)
	// Register は昇格に失敗した場合もidentityが解決済みであればセッションを返す。
	Register(ctx context.Context, sessionID string, creds model.Credentials) (*model.Session, *promotionResponse, error)
	Complete(ctx context.Context, sessionID, userID string) (*promotionResponse, error)
}

// TutorMatcher は生徒アンケートの回答に一致する講師を返す。
type TutorMatcher interface {
	Matches(ctx context.Context, answers map[string]string) ([]tutorSummaryResponse, error)
}

// QuestionnaireHandler はアンケートのHTTPハンドラー。
type QuestionnaireHandler struct {
	onboarding OnboardingServiceInterface
	matcher    TutorMatcher
	cookie     SessionCookieConfig
}

// NewQuestionnaireHandler はQuestionnaireHandlerを生成する。
func NewQuestionnaireHandler(onboarding OnboardingServiceInterface, matcher TutorMatcher, cookie SessionCookieConfig) *QuestionnaireHandler {
	return &QuestionnaireHandler{
		onboarding: onboarding,
		matcher:    matcher,
		cookie:     cookie,
	}
}

type optionResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type questionResponse struct {
	ID        int              `json:"id"`
	Title     string           `json:"title"`
	AnswerKey string           `json:"answer_key"`
	Options   []optionResponse `json:"options"`
}

type questionnaireResponse struct {
	Kind      string             `json:"kind"`
	Questions []questionResponse `json:"questions"`
}

type answerRequest struct {
	QuestionID int    `json:"question_id"`
	Value      string `json:"value"`
}

type registerRequest struct {
	credentialsRequest
	// SignUp がfalseの場合は既存アカウントでサインインする。
	SignUp bool `json:"sign_up"`
}

type matchRequest struct {
	Answers map[string]string `json:"answers"`
}

type matchResponse struct {
	Tutors []tutorSummaryResponse `json:"tutors"`
}

// GetQuestionnaire はアンケートの質問と選択肢を返す。
// GET /api/questionnaires/{kind}
func (h *QuestionnaireHandler) GetQuestionnaire(w http.ResponseWriter, r *http.Request) {
	q, err := onboarding.Lookup(chi.URLParam(r, "kind"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := questionnaireResponse{Kind: q.Kind, Questions: make([]questionResponse, len(q.Questions))}
	for i, question := range q.Questions {
		options := make([]optionResponse, len(question.Options))
		for j, o := range question.Options {
			options[j] = optionResponse{Value: o.Value, Label: o.Label}
		}
		resp.Questions[i] = questionResponse{
			ID:        question.ID,
			Title:     question.Title,
			AnswerKey: onboarding.AnswerKey(question.ID),
			Options:   options,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// StartAttempt は講師アンケートの回答セッションを開始する。
// POST /api/questionnaires/tutor/attempts
func (h *QuestionnaireHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.onboarding.Start())
}

// GetAttempt は回答セッションの状態を返す。
// GET /api/questionnaires/tutor/attempts/{sessionID}
func (h *QuestionnaireHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	resp, err := h.onboarding.State(chi.URLParam(r, "sessionID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitAnswer は回答を記録し一時レコードを保存する。
// PUT /api/questionnaires/tutor/attempts/{sessionID}/answers
func (h *QuestionnaireHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.onboarding.Answer(r.Context(), chi.URLParam(r, "sessionID"), req.QuestionID, req.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register はアカウント作成またはサインインを行い、講師プロフィールを作成する。
// POST /api/questionnaires/tutor/attempts/{sessionID}/register
func (h *QuestionnaireHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, resp, err := h.onboarding.Register(r.Context(), chi.URLParam(r, "sessionID"), model.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		SignUp:   req.SignUp,
	})
	// 昇格に失敗してもログイン状態は維持する
	if session != nil {
		setSessionCookie(w, h.cookie, session)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Complete はログイン済みユーザーの講師プロフィールを作成する。
// POST /api/questionnaires/tutor/attempts/{sessionID}/complete
func (h *QuestionnaireHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.onboarding.Complete(r.Context(), chi.URLParam(r, "sessionID"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// StudentMatches は生徒アンケートの回答に一致する講師を返す。
// POST /api/questionnaires/student/matches
func (h *QuestionnaireHandler) StudentMatches(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tutors, err := h.matcher.Matches(r.Context(), req.Answers)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Tutors: tutors})
}
