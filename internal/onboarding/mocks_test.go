package onboarding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/hitoshi/plastudo/internal/model"
	"github.com/hitoshi/plastudo/internal/repository"
)

// --- モック定義 ---

// memoryDrafts はsession_idをキーにしたインメモリの一時レコードストア。
type memoryDrafts struct {
	mu       sync.Mutex
	records  map[string]*model.TutorDraft
	upserts  int
	deletes  []string
	upsertFn func(draft *model.TutorDraft) error
	findFn   func(sessionID string) (*model.TutorDraft, error)
	deleteFn func(sessionID string) error
}

func newMemoryDrafts() *memoryDrafts {
	return &memoryDrafts{records: map[string]*model.TutorDraft{}}
}

func (m *memoryDrafts) Upsert(_ context.Context, draft *model.TutorDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertFn != nil {
		if err := m.upsertFn(draft); err != nil {
			return err
		}
	}
	stored := *draft
	stored.Answers = maps.Clone(draft.Answers)
	m.records[draft.SessionID] = &stored
	return nil
}

func (m *memoryDrafts) FindBySessionID(_ context.Context, sessionID string) (*model.TutorDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findFn != nil {
		return m.findFn(sessionID)
	}
	d, ok := m.records[sessionID]
	if !ok {
		return nil, nil
	}
	found := *d
	return &found, nil
}

func (m *memoryDrafts) DeleteBySessionID(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, sessionID)
	if m.deleteFn != nil {
		if err := m.deleteFn(sessionID); err != nil {
			return err
		}
	}
	delete(m.records, sessionID)
	return nil
}

func (m *memoryDrafts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memoryDrafts) get(sessionID string) *model.TutorDraft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[sessionID]
}

// memoryTutors はuser_idの一意制約を持つインメモリの講師プロフィールストア。
type memoryTutors struct {
	mu       sync.Mutex
	records  []*model.Tutor
	createFn func(tutor *model.Tutor) error
	seq      int
}

func (m *memoryTutors) Create(_ context.Context, tutor *model.Tutor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFn != nil {
		if err := m.createFn(tutor); err != nil {
			return err
		}
	}
	for _, existing := range m.records {
		if existing.UserID == tutor.UserID {
			return repository.ErrDuplicate
		}
	}
	m.seq++
	tutor.ID = fmt.Sprintf("tutor-%d", m.seq)
	stored := *tutor
	m.records = append(m.records, &stored)
	return nil
}

func (m *memoryTutors) FindByID(_ context.Context, _ string) (*model.Tutor, error) { return nil, nil }

func (m *memoryTutors) FindByUserID(_ context.Context, _ string) (*model.Tutor, error) {
	return nil, nil
}

func (m *memoryTutors) Search(_ context.Context, _ model.TutorFilter) ([]*model.Tutor, error) {
	return nil, nil
}

func (m *memoryTutors) Update(_ context.Context, _ *model.Tutor) error { return nil }

func (m *memoryTutors) UpdatePicture(_ context.Context, _, _ string, _ []byte, _ string) error {
	return nil
}

func (m *memoryTutors) DeleteByUserID(_ context.Context, _ string) error { return nil }

func (m *memoryTutors) all() []*model.Tutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Tutor(nil), m.records...)
}

type mockUserLookup struct {
	lookupFn func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockUserLookup) LookupUser(ctx context.Context, userID string) (*model.User, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

// usersByID は固定のユーザー一覧からLookupUserを返すモックを生成する。
func usersByID(users ...*model.User) *mockUserLookup {
	return &mockUserLookup{
		lookupFn: func(_ context.Context, userID string) (*model.User, error) {
			for _, u := range users {
				if u.ID == userID {
					return u, nil
				}
			}
			return nil, model.NewUserNotFoundError()
		},
	}
}

type mockIdentityResolver struct {
	createOrSignInFn func(ctx context.Context, creds model.Credentials) (*model.Session, error)
}

func (m *mockIdentityResolver) CreateOrSignIn(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	if m.createOrSignInFn != nil {
		return m.createOrSignInFn(ctx, creds)
	}
	return nil, model.NewInvalidCredentialsError()
}

// recordingMetrics は記録されたメトリクスを保持する。
type recordingMetrics struct {
	mu          sync.Mutex
	draftSaves  []bool
	promotions  []string
	transitions []string
}

func (r *recordingMetrics) RecordDraftSave(saved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draftSaves = append(r.draftSaves, saved)
}

func (r *recordingMetrics) RecordPromotion(result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promotions = append(r.promotions, result)
}

func (r *recordingMetrics) RecordAttemptTransition(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, state)
}

func (r *recordingMetrics) count(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.transitions {
		if s == state {
			n++
		}
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// compile-time interface check
var (
	_ repository.DraftRepository = (*memoryDrafts)(nil)
	_ repository.TutorRepository = (*memoryTutors)(nil)
)
