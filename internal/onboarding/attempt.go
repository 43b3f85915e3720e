package onboarding

import (
	"maps"
	"sync"
	"time"
)

// State は回答セッションの状態を表す。
type State string

// 回答セッションの状態。
// collecting → submitted → authenticating → promoting → done | failed の順に遷移する。
const (
	StateCollecting     State = "collecting"
	StateSubmitted      State = "submitted"
	StateAuthenticating State = "authenticating"
	StatePromoting      State = "promoting"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Snapshot は回答セッションのある時点の状態を表す。
type Snapshot struct {
	SessionID string
	State     State
	Answers   map[string]string
	TutorID   string // 昇格済みの場合のみ設定
}

// attempt はサーバー側で保持する1つの回答セッション。
// フィールドはmuで保護する。
type attempt struct {
	mu         sync.Mutex
	sessionID  string
	state      State
	answers    map[string]string
	tutorID    string
	lastAccess time.Time
}

func (a *attempt) snapshot() Snapshot {
	return Snapshot{
		SessionID: a.sessionID,
		State:     a.state,
		Answers:   maps.Clone(a.answers),
		TutorID:   a.tutorID,
	}
}

// defaultAttemptTTL は一時レコードの保持期間に合わせたデフォルトTTL。
const defaultAttemptTTL = 72 * time.Hour

// TrackerConfig は回答セッション管理の設定を保持する。
type TrackerConfig struct {
	TTL             time.Duration // 最終アクセスからの保持期間
	CleanupInterval time.Duration // 期限切れセッションのクリーンアップ間隔
}

// Tracker は回答セッションをプロセス内で管理する。
// 単一のAPIインスタンスを前提とし、インスタンスをまたぐ重複昇格はデータベースの一意制約で防ぐ。
type Tracker struct {
	config  TrackerConfig
	metrics Metrics
	now     func() time.Time

	mu       sync.RWMutex
	attempts map[string]*attempt

	stopCh chan struct{}
}

// NewTracker は新しいTrackerを生成する。
// バックグラウンドで期限切れセッションのクリーンアップを開始する。
func NewTracker(config TrackerConfig, metrics Metrics) *Tracker {
	if config.TTL <= 0 {
		config.TTL = defaultAttemptTTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}
	t := &Tracker{
		config:   config,
		metrics:  metricsOrNoop(metrics),
		now:      time.Now,
		attempts: make(map[string]*attempt),
		stopCh:   make(chan struct{}),
	}

	go t.cleanupLoop()

	return t
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (t *Tracker) Stop() {
	close(t.stopCh)
}

// Len は管理中の回答セッション数を返す。
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.attempts)
}

// get は登録済みの回答セッションを取得する。未知のセッションIDは登録しない。
func (t *Tracker) get(sessionID string) (*attempt, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.attempts[sessionID]
	return a, ok
}

// getOrCreate は回答セッションを取得する。
// 未知のセッションIDの場合はcollecting状態の回答セッションとして登録する。
func (t *Tracker) getOrCreate(sessionID string) *attempt {
	t.mu.RLock()
	a, exists := t.attempts[sessionID]
	t.mu.RUnlock()

	if exists {
		return a
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// ダブルチェック
	if a, exists := t.attempts[sessionID]; exists {
		return a
	}

	a = &attempt{
		sessionID:  sessionID,
		state:      StateCollecting,
		answers:    make(map[string]string),
		lastAccess: t.now(),
	}
	t.attempts[sessionID] = a
	t.metrics.RecordAttemptTransition(string(StateCollecting))
	return a
}

// setState は状態を遷移させる。呼び出し側はa.muを保持していること。
func (t *Tracker) setState(a *attempt, to State) {
	a.state = to
	a.lastAccess = t.now()
	t.metrics.RecordAttemptTransition(string(to))
}

// touch は最終アクセス時刻を更新する。呼び出し側はa.muを保持していること。
func (t *Tracker) touch(a *attempt) {
	a.lastAccess = t.now()
}

// cleanupLoop はバックグラウンドで期限切れセッションを定期的にクリーンアップする。
func (t *Tracker) cleanupLoop() {
	ticker := time.NewTicker(t.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup()
		case <-t.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからTTLを超えたセッションを削除する。
// 認証中・昇格中のセッションは削除しない。
func (t *Tracker) cleanup() {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, a := range t.attempts {
		a.mu.Lock()
		inFlight := a.state == StateAuthenticating || a.state == StatePromoting
		expired := now.Sub(a.lastAccess) > t.config.TTL
		a.mu.Unlock()

		if expired && !inFlight {
			delete(t.attempts, id)
		}
	}
}
