// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/plastudo/internal/model"
)

var (
	// ErrDuplicate は一意制約違反で登録が拒否されたことを示す。
	ErrDuplicate = errors.New("duplicate record")
	// ErrAmbiguousDraft は同一セッションIDに複数の一時レコードが存在することを示す。
	ErrAmbiguousDraft = errors.New("ambiguous draft: multiple records for session")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// メールアドレスまたはidentityが重複する場合はErrDuplicateを返す。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、tutorsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は認証手段の紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// DraftRepository は講師アンケートの一時レコードの永続化インターフェース。
type DraftRepository interface {
	// Upsert はsession_idをキーに一時レコードを作成または上書きする。
	// created_atは初回作成時の値を維持する。
	Upsert(ctx context.Context, draft *model.TutorDraft) error

	// FindBySessionID は指定セッションIDの一時レコードを取得する。
	// 見つからない場合はnilを返し、複数見つかった場合はErrAmbiguousDraftを返す。
	FindBySessionID(ctx context.Context, sessionID string) (*model.TutorDraft, error)

	// DeleteBySessionID は指定セッションIDの一時レコードを削除する。
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

// TutorRepository は講師プロフィールの永続化インターフェース。
type TutorRepository interface {
	// Create は講師プロフィールを作成し、採番されたIDと作成日時をtutorに設定する。
	// 同一user_idのプロフィールが既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, tutor *model.Tutor) error

	// FindByID は指定IDの講師を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Tutor, error)

	// FindByUserID は指定ユーザーの講師プロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Tutor, error)

	// Search は検索条件に一致する講師を作成日時の降順で返す。
	// 画像バイナリは取得しない。
	Search(ctx context.Context, filter model.TutorFilter) ([]*model.Tutor, error)

	// Update は講師プロフィールのテキスト項目を更新する。
	Update(ctx context.Context, tutor *model.Tutor) error

	// UpdatePicture はプロフィール画像のURLとバイナリを更新する。
	UpdatePicture(ctx context.Context, tutorID, sourceURL string, data []byte, mime string) error

	// DeleteByUserID は指定ユーザーの講師プロフィールを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
