// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（Identity Record）を表す。
// 作成はサインアップフローが行い、プロフィール昇格処理からは参照のみ行う。
type User struct {
	ID        string
	Email     string
	Name      string // 表示名。未設定の場合は空文字列
	CreatedAt time.Time
	UpdatedAt time.Time
}

// 認証プロバイダー名。
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Identity は認証手段とユーザーの紐付け情報を表す。
// パスワード認証の場合はProviderUserIDに正規化済みメールアドレスを、
// PasswordHashにbcryptハッシュを保持する。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	PasswordHash   []byte
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	Provider  string // ログインに使用した認証プロバイダー
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Credentials はメールアドレスとパスワードによる認証情報を表す。
// SignUpがtrueの場合はアカウント作成、falseの場合はサインインとして扱う。
type Credentials struct {
	Email    string
	Password string
	Name     string
	SignUp   bool
}
