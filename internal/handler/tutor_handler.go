package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/plastudo/internal/model"
)

// maxListLimit は講師一覧の最大取得件数。
const maxListLimit = 100

// TutorServiceInterface は講師ハンドラーが必要とするサービスインターフェース。
type TutorServiceInterface interface {
	TutorMatcher
	List(ctx context.Context, filter model.TutorFilter) ([]tutorSummaryResponse, error)
	Get(ctx context.Context, tutorID string) (*tutorResponse, error)
	// Mine はプロフィールが存在しない場合nilを返す。
	Mine(ctx context.Context, userID string) (*tutorResponse, error)
	Picture(ctx context.Context, tutorID string) ([]byte, string, error)
	ContactLink(ctx context.Context, tutorID string) (string, error)
	Update(ctx context.Context, userID, tutorID string, update model.TutorUpdate) (*tutorResponse, error)
}

// TutorHandler は講師一覧・プロフィールのHTTPハンドラー。
type TutorHandler struct {
	service TutorServiceInterface
}

// NewTutorHandler はTutorHandlerを生成する。
func NewTutorHandler(service TutorServiceInterface) *TutorHandler {
	return &TutorHandler{service: service}
}

type tutorListResponse struct {
	Tutors []tutorSummaryResponse `json:"tutors"`
}

type contactResponse struct {
	Mailto string `json:"mailto"`
}

// updateTutorRequest は講師プロフィール更新リクエストのボディ。
// 省略したフィールドは変更しない。
type updateTutorRequest struct {
	Name           *string   `json:"name"`
	Bio            *string   `json:"bio"`
	Subjects       *[]string `json:"subjects"`
	Location       *string   `json:"location"`
	ProfilePicture *string   `json:"profile_picture"`
}

// List は講師一覧を返す。
// GET /api/tutors?q=&subject=&limit=
func (h *TutorHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.TutorFilter{
		Query:   query.Get("q"),
		Subject: query.Get("subject"),
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxListLimit {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return
		}
		filter.Limit = limit
	}

	tutors, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tutorListResponse{Tutors: tutors})
}

// Get は講師の公開プロフィールを返す。
// GET /api/tutors/{id}
func (h *TutorHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Mine はログインユーザー自身の講師プロフィールを返す。
// プロフィールがない場合はnullを返す。
// GET /api/tutors/me
func (h *TutorHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Mine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Picture は保存済みのプロフィール画像を返す。
// GET /api/tutors/{id}/picture
func (h *TutorHandler) Picture(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.service.Picture(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodePictureUnavailable {
			writeAPIErrorResponse(w, http.StatusNotFound, apiErr)
			return
		}
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Contact は講師への問い合わせ用mailtoリンクを返す。
// GET /api/tutors/{id}/contact
func (h *TutorHandler) Contact(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.ContactLink(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contactResponse{Mailto: link})
}

// Update は講師プロフィールを部分更新する。所有者のみ実行できる。
// PATCH /api/tutors/{id}
func (h *TutorHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateTutorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), model.TutorUpdate{
		Name:           req.Name,
		Bio:            req.Bio,
		Subjects:       req.Subjects,
		Location:       req.Location,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
