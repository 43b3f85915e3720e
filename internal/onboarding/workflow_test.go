package onboarding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hitoshi/plastudo/internal/model"
)

type workflowFixture struct {
	workflow *Workflow
	tracker  *Tracker
	drafts   *memoryDrafts
	tutors   *memoryTutors
	identity *mockIdentityResolver
	metrics  *recordingMetrics
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	f := &workflowFixture{
		drafts:  newMemoryDrafts(),
		tutors:  &memoryTutors{},
		metrics: &recordingMetrics{},
		identity: &mockIdentityResolver{
			createOrSignInFn: func(_ context.Context, creds model.Credentials) (*model.Session, error) {
				return &model.Session{ID: "cookie-session", UserID: "u1", Provider: model.ProviderPassword}, nil
			},
		},
	}
	users := usersByID(&model.User{ID: "u1", Email: "a@b.com"}, &model.User{ID: "u2", Email: "joana@b.com", Name: "Joana"})
	logger := discardLogger()

	f.tracker = newTestTracker(t, f.metrics)
	f.workflow = NewWorkflow(
		f.tracker,
		NewDraftManager(f.drafts, logger, f.metrics),
		f.identity,
		NewPromoter(f.drafts, f.tutors, users, logger, f.metrics),
		logger,
	)
	return f
}

// submitted状態まで進めた回答セッションIDを返す
func (f *workflowFixture) submitted(t *testing.T, answer string) string {
	t.Helper()
	snap := f.workflow.Start()
	res, err := f.workflow.Answer(context.Background(), snap.SessionID, 1, answer)
	if err != nil {
		t.Fatalf("Answer error: %v", err)
	}
	if res.State != StateSubmitted {
		t.Fatalf("state = %s, want %s", res.State, StateSubmitted)
	}
	return snap.SessionID
}

func TestWorkflow_Start_IssuesDistinctCollectingAttempts(t *testing.T) {
	f := newWorkflowFixture(t)

	a := f.workflow.Start()
	b := f.workflow.Start()

	if a.SessionID == b.SessionID {
		t.Error("two attempts should get distinct session ids")
	}
	if a.State != StateCollecting {
		t.Errorf("state = %s, want %s", a.State, StateCollecting)
	}
	if !ValidSessionID(a.SessionID) {
		t.Errorf("session id %q is not a canonical uuid", a.SessionID)
	}
}

func TestWorkflow_Answer_SavesDraftAndSubmitsOnce(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	id := f.workflow.Start().SessionID

	first, err := f.workflow.Answer(ctx, id, 1, "linguas")
	if err != nil {
		t.Fatalf("Answer error: %v", err)
	}
	if !first.Submitted || first.State != StateSubmitted {
		t.Errorf("first answer = %+v, want submitted transition", first)
	}
	if !first.Draft.Saved {
		t.Errorf("draft not saved: %v", first.Draft.Err)
	}

	// 戻って回答し直しても遷移は再度発生しない
	second, err := f.workflow.Answer(ctx, id, 1, "matematica")
	if err != nil {
		t.Fatalf("Answer error: %v", err)
	}
	if second.Submitted {
		t.Error("submitted transition should fire only once")
	}
	if second.State != StateSubmitted {
		t.Errorf("state = %s, want %s", second.State, StateSubmitted)
	}
	if got := f.drafts.get(id).Question1Answer; got != "matematica" {
		t.Errorf("draft answer = %q, want %q", got, "matematica")
	}
	if n := f.metrics.count(string(StateSubmitted)); n != 1 {
		t.Errorf("submitted transitions = %d, want 1", n)
	}
}

// 一時レコードの保存に失敗してもフローは継続する
func TestWorkflow_Answer_DraftFailureDoesNotBlock(t *testing.T) {
	f := newWorkflowFixture(t)
	f.drafts.upsertFn = func(*model.TutorDraft) error { return errors.New("store unreachable") }
	id := f.workflow.Start().SessionID

	res, err := f.workflow.Answer(context.Background(), id, 1, "ciencias")

	if err != nil {
		t.Fatalf("Answer error: %v, want nil", err)
	}
	if res.Draft.Saved || res.Draft.Err == nil {
		t.Errorf("Draft = %+v, want unsaved with error", res.Draft)
	}
	if res.State != StateSubmitted {
		t.Errorf("state = %s, want %s", res.State, StateSubmitted)
	}
}

func TestWorkflow_Answer_Validation(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.workflow.Start().SessionID

	_, err := f.workflow.Answer(context.Background(), "abc-123", 1, "matematica")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidSessionID)

	_, err = f.workflow.Answer(context.Background(), id, 1, "astrologia")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidAnswer)

	if f.drafts.upserts != 0 {
		t.Errorf("Upsert called %d times, want 0", f.drafts.upserts)
	}
}

func TestWorkflow_Register_PromotesAndDeletesDraft(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submitted(t, "matematica")

	session, tutor, err := f.workflow.Register(context.Background(), id, model.Credentials{Email: "a@b.com", Password: "secret1", SignUp: true})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if session == nil || session.ID != "cookie-session" {
		t.Errorf("session = %+v, want cookie-session", session)
	}
	if tutor.UserID != "u1" || tutor.Name != "a" || tutor.Question1Answer != "matematica" {
		t.Errorf("tutor = %+v", tutor)
	}
	if f.drafts.get(id) != nil {
		t.Error("draft should be deleted")
	}

	snap, err := f.workflow.State(id)
	if err != nil {
		t.Fatalf("State error: %v", err)
	}
	if snap.State != StateDone || snap.TutorID != tutor.ID {
		t.Errorf("snapshot = %+v, want done with tutor id", snap)
	}
}

// identityの解決に失敗した場合はプロフィールを作成せず、submittedに戻って再試行できる
func TestWorkflow_Register_IdentityFailure_AllowsRetry(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submitted(t, "matematica")

	calls := 0
	f.identity.createOrSignInFn = func(_ context.Context, _ model.Credentials) (*model.Session, error) {
		calls++
		if calls == 1 {
			return nil, model.NewInvalidCredentialsError()
		}
		return &model.Session{ID: "s", UserID: "u1"}, nil
	}

	_, _, err := f.workflow.Register(context.Background(), id, model.Credentials{Email: "a@b.com", Password: "wrong"})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)

	if len(f.tutors.all()) != 0 {
		t.Error("no tutor record should be created on identity failure")
	}
	if len(f.drafts.deletes) != 0 {
		t.Error("draft should not be deleted on identity failure")
	}
	if snap, _ := f.workflow.State(id); snap.State != StateSubmitted {
		t.Errorf("state = %s, want %s", snap.State, StateSubmitted)
	}

	if _, _, err := f.workflow.Register(context.Background(), id, model.Credentials{Email: "a@b.com", Password: "secret1"}); err != nil {
		t.Fatalf("retry Register error: %v", err)
	}
	if len(f.tutors.all()) != 1 {
		t.Errorf("tutor records = %d, want 1", len(f.tutors.all()))
	}
}

func TestWorkflow_Register_NilIdentity_NeverPromotes(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submitted(t, "matematica")
	f.identity.createOrSignInFn = func(context.Context, model.Credentials) (*model.Session, error) {
		return &model.Session{ID: "s"}, nil
	}

	_, _, err := f.workflow.Register(context.Background(), id, model.Credentials{})

	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
	if len(f.tutors.all()) != 0 {
		t.Error("no tutor record should be created without a user id")
	}
}

func TestWorkflow_Register_BeforeSubmission(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.workflow.Start().SessionID

	_, _, err := f.workflow.Register(context.Background(), id, model.Credentials{})

	assertAPIErrorCode(t, err, model.ErrCodeQuestionnaireIncomplete)
}

// 実行中の登録に対する同時リクエストはPROMOTION_IN_PROGRESSになる
func TestWorkflow_Register_ConcurrentTriggerRejected(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submitted(t, "matematica")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.identity.createOrSignInFn = func(context.Context, model.Credentials) (*model.Session, error) {
		close(entered)
		<-release
		return &model.Session{ID: "s", UserID: "u1"}, nil
	}

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, firstErr = f.workflow.Register(context.Background(), id, model.Credentials{})
	}()

	<-entered
	_, _, err := f.workflow.Register(context.Background(), id, model.Credentials{})
	assertAPIErrorCode(t, err, model.ErrCodePromotionInProgress)

	_, err = f.workflow.Answer(context.Background(), id, 1, "linguas")
	assertAPIErrorCode(t, err, model.ErrCodePromotionInProgress)

	close(release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first Register error: %v", firstErr)
	}
	if len(f.tutors.all()) != 1 {
		t.Errorf("tutor records = %d, want 1", len(f.tutors.all()))
	}
}

// 昇格に失敗した回答セッションは終了状態となり、再試行できない
func TestWorkflow_Complete_FailureIsTerminal(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submitted(t, "matematica")
	f.drafts.findFn = func(string) (*model.TutorDraft, error) { return nil, nil }

	_, err := f.workflow.Complete(context.Background(), id, "u1")
	assertAPIErrorCode(t, err, model.ErrCodePromotionFailed)

	if snap, _ := f.workflow.State(id); snap.State != StateFailed {
		t.Errorf("state = %s, want %s", snap.State, StateFailed)
	}

	_, err = f.workflow.Complete(context.Background(), id, "u1")
	assertAPIErrorCode(t, err, model.ErrCodeAttemptClosed)

	_, err = f.workflow.Answer(context.Background(), id, 1, "matematica")
	assertAPIErrorCode(t, err, model.ErrCodeAttemptClosed)

	if len(f.tutors.all()) != 0 {
		t.Error("no tutor record should be created")
	}
}

func TestWorkflow_Complete_UsesExplicitIdentity(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submitted(t, "humanas")

	tutor, err := f.workflow.Complete(context.Background(), id, "u2")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if tutor.UserID != "u2" || tutor.Name != "Joana" || tutor.Email != "joana@b.com" {
		t.Errorf("tutor = %+v", tutor)
	}

	_, err = f.workflow.Complete(context.Background(), id, "u2")
	assertAPIErrorCode(t, err, model.ErrCodeAttemptClosed)
}

func TestWorkflow_Complete_RequiresUser(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submitted(t, "humanas")

	_, err := f.workflow.Complete(context.Background(), id, "")
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)

	if snap, _ := f.workflow.State(id); snap.State != StateSubmitted {
		t.Errorf("state = %s, want %s", snap.State, StateSubmitted)
	}
}

// クライアントのキャンセル後も昇格処理は中断しない
func TestWorkflow_Complete_IgnoresClientCancellation(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submitted(t, "matematica")

	ctx, cancel := context.WithCancel(context.Background())
	f.drafts.findFn = func(sessionID string) (*model.TutorDraft, error) {
		cancel()
		return &model.TutorDraft{SessionID: sessionID, Question1Answer: "matematica"}, nil
	}
	defer cancel()

	var sawCancel bool
	lookup := usersByID(&model.User{ID: "u1", Email: "a@b.com"})
	f.workflow.promoter.users = &mockUserLookup{lookupFn: func(ctx context.Context, userID string) (*model.User, error) {
		sawCancel = ctx.Err() != nil
		return lookup.LookupUser(ctx, userID)
	}}

	if _, err := f.workflow.Complete(ctx, id, "u1"); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if sawCancel {
		t.Error("promotion context should be detached from client cancellation")
	}
}

func TestWorkflow_State_UnknownSessionIsNotRegistered(t *testing.T) {
	f := newWorkflowFixture(t)

	for i := 0; i < 100; i++ {
		id := NewSessionID()
		snap, err := f.workflow.State(id)
		if err != nil {
			t.Fatalf("State error: %v", err)
		}
		if snap.SessionID != id || snap.State != StateCollecting || len(snap.Answers) != 0 {
			t.Fatalf("snapshot = %+v, want empty collecting attempt", snap)
		}
	}
	if f.tracker.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after read-only lookups", f.tracker.Len())
	}

	_, err := f.workflow.State("not-a-uuid")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidSessionID)
}

func TestWorkflow_Register_UnknownSessionIsNotRegistered(t *testing.T) {
	f := newWorkflowFixture(t)

	_, _, err := f.workflow.Register(context.Background(), NewSessionID(), model.Credentials{})
	assertAPIErrorCode(t, err, model.ErrCodeQuestionnaireIncomplete)

	_, err = f.workflow.Complete(context.Background(), NewSessionID(), "u1")
	assertAPIErrorCode(t, err, model.ErrCodeQuestionnaireIncomplete)

	if f.tracker.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.tracker.Len())
	}
}

// 再起動後など未知のセッションIDでも回答を送信すれば回答セッションとして採用する
func TestWorkflow_Answer_AdoptsWellFormedUnknownSession(t *testing.T) {
	f := newWorkflowFixture(t)
	id := "6f1c2f5e-3a4b-4c8d-9e0f-112233445566"

	res, err := f.workflow.Answer(context.Background(), id, 1, "linguas")
	if err != nil {
		t.Fatalf("Answer error: %v", err)
	}
	if res.State != StateSubmitted {
		t.Errorf("state = %s, want %s", res.State, StateSubmitted)
	}
	if f.tracker.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.tracker.Len())
	}
}
