package handler

import (
	"context"
	"time"

	"github.com/hitoshi/plastudo/internal/model"
	"github.com/hitoshi/plastudo/internal/onboarding"
	"github.com/hitoshi/plastudo/internal/tutor"
	"github.com/hitoshi/plastudo/internal/user"
)

// tutorResponse は講師プロフィールのAPIレスポンス。
type tutorResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Question1Answer string    `json:"question_1_answer"`
	Bio             string    `json:"bio"`
	Subjects        []string  `json:"subjects"`
	Location        string    `json:"location"`
	ProfilePicture  string    `json:"profile_picture"`
	PictureURL      string    `json:"picture_url,omitempty"` // 保存済み画像の配信URL
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// tutorSummaryResponse は講師一覧の1件分のレスポンス。
type tutorSummaryResponse struct {
	tutorResponse
	BioExcerpt string `json:"bio_excerpt"`
}

// attemptResponse は回答セッションの状態のレスポンス。
type attemptResponse struct {
	SessionID string            `json:"session_id"`
	State     string            `json:"state"`
	Answers   map[string]string `json:"answers"`
	TutorID   string            `json:"tutor_id,omitempty"`
}

// answerResponse は回答送信のレスポンス。
// 一時レコードの保存失敗はエラーにせずdraft_savedで通知する。
type answerResponse struct {
	attemptResponse
	DraftSaved bool `json:"draft_saved"`
	Submitted  bool `json:"submitted"`
}

// promotionResponse は講師プロフィール作成完了のレスポンス。
type promotionResponse struct {
	SessionID string         `json:"session_id"`
	State     string         `json:"state"`
	Tutor     *tutorResponse `json:"tutor"`
}

// toTutorResponse はドメインのTutorをhandlerのレスポンス型に変換する。
func toTutorResponse(t *model.Tutor) *tutorResponse {
	if t == nil {
		return nil
	}
	subjects := t.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	resp := &tutorResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Name:            t.Name,
		Email:           t.Email,
		Question1Answer: t.Question1Answer,
		Bio:             t.Bio,
		Subjects:        subjects,
		Location:        t.Location,
		ProfilePicture:  t.ProfilePicture,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.HasPicture() {
		resp.PictureURL = "/api/tutors/" + t.ID + "/picture"
	}
	return resp
}

func toSummaryResponses(summaries []tutor.Summary) []tutorSummaryResponse {
	results := make([]tutorSummaryResponse, len(summaries))
	for i, s := range summaries {
		results[i] = tutorSummaryResponse{
			tutorResponse: *toTutorResponse(s.Tutor),
			BioExcerpt:    s.Excerpt,
		}
	}
	return results
}

func toAttemptResponse(s onboarding.Snapshot) attemptResponse {
	answers := s.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	return attemptResponse{
		SessionID: s.SessionID,
		State:     string(s.State),
		Answers:   answers,
		TutorID:   s.TutorID,
	}
}

// TutorServiceAdapter は tutor.Service を TutorServiceInterface に適合させるアダプタ。
type TutorServiceAdapter struct {
	svc *tutor.Service
}

// NewTutorServiceAdapter はTutorServiceAdapterを生成する。
func NewTutorServiceAdapter(svc *tutor.Service) *TutorServiceAdapter {
	return &TutorServiceAdapter{svc: svc}
}

// List は講師一覧をhandlerレスポンス型で返す。
func (a *TutorServiceAdapter) List(ctx context.Context, filter model.TutorFilter) ([]tutorSummaryResponse, error) {
	summaries, err := a.svc.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return toSummaryResponses(summaries), nil
}

// Matches は生徒アンケートの回答に一致する講師をhandlerレスポンス型で返す。
func (a *TutorServiceAdapter) Matches(ctx context.Context, answers map[string]string) ([]tutorSummaryResponse, error) {
	summaries, err := a.svc.Matches(ctx, answers)
	if err != nil {
		return nil, err
	}
	return toSummaryResponses(summaries), nil
}

// Get は講師の公開プロフィールを返す。
func (a *TutorServiceAdapter) Get(ctx context.Context, tutorID string) (*tutorResponse, error) {
	t, err := a.svc.Get(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	return toTutorResponse(t), nil
}

// Mine はユーザー自身の講師プロフィールを返す。存在しない場合はnil。
func (a *TutorServiceAdapter) Mine(ctx context.Context, userID string) (*tutorResponse, error) {
	t, err := a.svc.Mine(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toTutorResponse(t), nil
}

// Picture はプロフィール画像を返す。
func (a *TutorServiceAdapter) Picture(ctx context.Context, tutorID string) ([]byte, string, error) {
	return a.svc.Picture(ctx, tutorID)
}

// ContactLink は問い合わせ用mailtoリンクを返す。
func (a *TutorServiceAdapter) ContactLink(ctx context.Context, tutorID string) (string, error) {
	return a.svc.ContactLink(ctx, tutorID)
}

// Update は講師プロフィールを更新しhandlerレスポンス型で返す。
func (a *TutorServiceAdapter) Update(ctx context.Context, userID, tutorID string, update model.TutorUpdate) (*tutorResponse, error) {
	t, err := a.svc.Update(ctx, userID, tutorID, update)
	if err != nil {
		return nil, err
	}
	return toTutorResponse(t), nil
}

// OnboardingServiceAdapter は onboarding.Workflow を OnboardingServiceInterface に適合させるアダプタ。
type OnboardingServiceAdapter struct {
	workflow *onboarding.Workflow
}

// NewOnboardingServiceAdapter はOnboardingServiceAdapterを生成する。
func NewOnboardingServiceAdapter(workflow *onboarding.Workflow) *OnboardingServiceAdapter {
	return &OnboardingServiceAdapter{workflow: workflow}
}

// Start は新しい回答セッションを開始する。
func (a *OnboardingServiceAdapter) Start() attemptResponse {
	return toAttemptResponse(a.workflow.Start())
}

// State は回答セッションの状態を返す。
func (a *OnboardingServiceAdapter) State(sessionID string) (*attemptResponse, error) {
	snap, err := a.workflow.State(sessionID)
	if err != nil {
		return nil, err
	}
	resp := toAttemptResponse(snap)
	return &resp, nil
}

// Answer は回答を記録しhandlerレスポンス型で返す。
func (a *OnboardingServiceAdapter) Answer(ctx context.Context, sessionID string, questionID int, value string) (*answerResponse, error) {
	result, err := a.workflow.Answer(ctx, sessionID, questionID, value)
	if err != nil {
		return nil, err
	}
	return &answerResponse{
		attemptResponse: toAttemptResponse(result.Snapshot),
		DraftSaved:      result.Draft.Saved,
		Submitted:       result.Submitted,
	}, nil
}

// Register はアカウント作成またはサインイン後に講師プロフィールを作成する。
// 昇格に失敗した場合も発行済みのセッションは返す。
func (a *OnboardingServiceAdapter) Register(ctx context.Context, sessionID string, creds model.Credentials) (*model.Session, *promotionResponse, error) {
	session, t, err := a.workflow.Register(ctx, sessionID, creds)
	if err != nil {
		return session, nil, err
	}
	return session, toPromotionResponse(sessionID, t), nil
}

// Complete はログイン済みユーザーの講師プロフィールを作成する。
func (a *OnboardingServiceAdapter) Complete(ctx context.Context, sessionID, userID string) (*promotionResponse, error) {
	t, err := a.workflow.Complete(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return toPromotionResponse(sessionID, t), nil
}

func toPromotionResponse(sessionID string, t *model.Tutor) *promotionResponse {
	return &promotionResponse{
		SessionID: sessionID,
		State:     string(onboarding.StateDone),
		Tutor:     toTutorResponse(t),
	}
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// --- compile-time interface checks ---

var _ TutorServiceInterface = (*TutorServiceAdapter)(nil)
var _ OnboardingServiceInterface = (*OnboardingServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
