package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/plastudo/internal/database"
	"github.com/hitoshi/plastudo/internal/model"
)

// openTestDB はマイグレーション済みのテスト用データベースを返す。
// TEST_DATABASE_URL が未設定、または接続できない場合はテストをスキップする。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if _, err := database.RunMigrations(dbURL); err != nil {
		db.Close()
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE tutors, tutor_drafts, sessions, identities, users CASCADE`); err != nil {
		db.Close()
		t.Fatalf("テーブルの初期化に失敗: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser はpassword identity付きのユーザーを作成する。
func createTestUser(t *testing.T, db *sql.DB, email, name string) *model.User {
	t.Helper()

	now := time.Now()
	user := &model.User{ID: uuid.New().String(), Email: email, Name: name, CreatedAt: now, UpdatedAt: now}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       model.ProviderPassword,
		ProviderUserID: email,
		PasswordHash:   []byte("hash"),
		CreatedAt:      now,
	}
	if err := NewPostgresUserRepo(db).CreateWithIdentity(context.Background(), user, identity); err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return user
}
