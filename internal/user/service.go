// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/plastudo/internal/model"
	"github.com/hitoshi/plastudo/internal/repository"
)

// TutorStore は退会時に参照・削除する講師プロフィールのインターフェース。
type TutorStore interface {
	FindByUserID(ctx context.Context, userID string) (*model.Tutor, error)
	DeleteByUserID(ctx context.Context, userID string) error
}

// CacheInvalidator は講師プロフィールキャッシュの削除インターフェース。
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tutorIDs ...string)
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tutors      TutorStore
	cache       CacheInvalidator
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tutors TutorStore,
	cache CacheInvalidator,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tutors:      tutors,
		cache:       cache,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: tutors → sessions → user（+ CASCADE: identities）
// 講師プロフィールを削除した場合はキャッシュも削除する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 講師プロフィールを削除
	var tutorID string
	if s.tutors != nil {
		t, err := s.tutors.FindByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("講師プロフィールの取得に失敗しました: %w", err)
		}
		if t != nil {
			tutorID = t.ID
			if err := s.tutors.DeleteByUserID(ctx, userID); err != nil {
				return fmt.Errorf("講師プロフィールの削除に失敗しました: %w", err)
			}
		}
	}

	// 2. セッションを削除
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	// 3. ユーザーを削除（identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if tutorID != "" && s.cache != nil {
		s.cache.Invalidate(ctx, tutorID)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
		slog.Bool("tutor_deleted", tutorID != ""),
	)

	return nil
}
