package onboarding

import (
	"context"
	"log/slog"

	"github.com/hitoshi/plastudo/internal/model"
)

// IdentityResolver はアカウント作成またはサインインを行い、セッションを発行する。
// auth.Serviceが実装する。
type IdentityResolver interface {
	CreateOrSignIn(ctx context.Context, creds model.Credentials) (*model.Session, error)
}

// AnswerResult は回答送信の結果を表す。
type AnswerResult struct {
	Snapshot
	Draft SaveResult
	// Submitted はこの回答でsubmittedへ遷移した場合にtrueになる。
	Submitted bool
}

// Workflow は講師アンケートの回答から講師プロフィール作成までの流れを管理する。
type Workflow struct {
	questionnaire *Questionnaire
	tracker       *Tracker
	drafts        *DraftManager
	identity      IdentityResolver
	promoter      *Promoter
	logger        *slog.Logger
}

// NewWorkflow はWorkflowを生成する。
func NewWorkflow(
	tracker *Tracker,
	drafts *DraftManager,
	identity IdentityResolver,
	promoter *Promoter,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		questionnaire: questionnaires[KindTutor],
		tracker:       tracker,
		drafts:        drafts,
		identity:      identity,
		promoter:      promoter,
		logger:        logger,
	}
}

// Start は新しい回答セッションを開始する。
func (w *Workflow) Start() Snapshot {
	a := w.tracker.getOrCreate(NewSessionID())

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// State は回答セッションの現在の状態を返す。
// 未知のセッションIDは登録せず、回答なしのcollectingとして返す。
func (w *Workflow) State(sessionID string) (Snapshot, error) {
	if !ValidSessionID(sessionID) {
		return Snapshot{}, model.NewInvalidSessionIDError()
	}
	a, ok := w.tracker.get(sessionID)
	if !ok {
		return Snapshot{
			SessionID: sessionID,
			State:     StateCollecting,
			Answers:   map[string]string{},
		}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot(), nil
}

// Answer は回答を記録し、一時レコードを保存する。
// 最後の質問に回答した時点でsubmittedへ1回だけ遷移する。submitted後の再回答は
// 一時レコードを更新するのみで、遷移は再度発生しない。
// 一時レコードの保存失敗はフローを止めず、結果のDraftで通知する。
func (w *Workflow) Answer(ctx context.Context, sessionID string, questionID int, value string) (AnswerResult, error) {
	a, err := w.lookup(sessionID)
	if err != nil {
		return AnswerResult{}, err
	}
	if err := w.questionnaire.Validate(questionID, value); err != nil {
		return AnswerResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := guardAnswer(a.state); err != nil {
		return AnswerResult{}, err
	}

	a.answers[AnswerKey(questionID)] = value
	w.tracker.touch(a)

	result := AnswerResult{
		Draft: w.drafts.SaveDraft(ctx, sessionID, a.answers),
	}

	if a.state == StateCollecting && w.questionnaire.IsComplete(a.answers) {
		w.tracker.setState(a, StateSubmitted)
		result.Submitted = true
	}

	result.Snapshot = a.snapshot()
	return result, nil
}

// Register はアカウント作成またはサインインを行い、続けて講師プロフィールを作成する。
// identityの解決に失敗した場合はsubmittedに戻してエラーを返すため、再試行できる。
// 昇格処理の失敗後もidentityは作成済みのため、発行したセッションはエラーと共に返す。
func (w *Workflow) Register(ctx context.Context, sessionID string, creds model.Credentials) (*model.Session, *model.Tutor, error) {
	a, err := w.begin(sessionID)
	if err != nil {
		return nil, nil, err
	}

	session, err := w.identity.CreateOrSignIn(ctx, creds)
	if err != nil || session == nil || session.UserID == "" {
		w.revert(a)
		if err == nil {
			err = model.NewUnauthorizedError()
		}
		w.logger.Info("identity resolution failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil, nil, err
	}

	tutor, err := w.promote(ctx, a, session.UserID)
	return session, tutor, err
}

// Complete は認証済みユーザーの講師プロフィールを作成する。
// userIDはセッションミドルウェアが解決した値を明示的に受け取る。
func (w *Workflow) Complete(ctx context.Context, sessionID, userID string) (*model.Tutor, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	a, err := w.begin(sessionID)
	if err != nil {
		return nil, err
	}

	return w.promote(ctx, a, userID)
}

// lookup は回答セッションを取得する。未知のセッションIDはcollectingとして登録する。
func (w *Workflow) lookup(sessionID string) (*attempt, error) {
	if !ValidSessionID(sessionID) {
		return nil, model.NewInvalidSessionIDError()
	}
	return w.tracker.getOrCreate(sessionID), nil
}

// begin はsubmittedからauthenticatingへ遷移させる。
// 実行中・終了済みのセッションに対する再実行はエラーを返す。
func (w *Workflow) begin(sessionID string) (*attempt, error) {
	if !ValidSessionID(sessionID) {
		return nil, model.NewInvalidSessionIDError()
	}
	a, ok := w.tracker.get(sessionID)
	if !ok {
		return nil, model.NewQuestionnaireIncompleteError()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateSubmitted:
		w.tracker.setState(a, StateAuthenticating)
		return a, nil
	case StateCollecting:
		return nil, model.NewQuestionnaireIncompleteError()
	case StateAuthenticating, StatePromoting:
		return nil, model.NewPromotionInProgressError()
	default:
		return nil, model.NewAttemptClosedError()
	}
}

// revert はidentity解決の失敗時にsubmittedへ戻す。
func (w *Workflow) revert(a *attempt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w.tracker.setState(a, StateSubmitted)
}

// promote は昇格処理を実行する。クライアントの切断で中断しないよう、
// キャンセルを切り離したコンテキストで実行する。失敗した回答セッションは再利用できない。
func (w *Workflow) promote(ctx context.Context, a *attempt, userID string) (*model.Tutor, error) {
	a.mu.Lock()
	w.tracker.setState(a, StatePromoting)
	sessionID := a.sessionID
	a.mu.Unlock()

	tutor, err := w.promoter.Promote(context.WithoutCancel(ctx), sessionID, userID)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		w.tracker.setState(a, StateFailed)
		return nil, model.NewPromotionFailedError()
	}

	w.tracker.setState(a, StateDone)
	a.tutorID = tutor.ID
	return tutor, nil
}

func guardAnswer(state State) error {
	switch state {
	case StateCollecting, StateSubmitted:
		return nil
	case StateAuthenticating, StatePromoting:
		return model.NewPromotionInProgressError()
	default:
		return model.NewAttemptClosedError()
	}
}
