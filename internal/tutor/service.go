// Package tutor は講師一覧・プロフィール表示・編集・問い合わせのドメインロジックを提供する。
package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/plastudo/internal/cache"
	"github.com/hitoshi/plastudo/internal/model"
	"github.com/hitoshi/plastudo/internal/onboarding"
	"github.com/hitoshi/plastudo/internal/repository"
	"github.com/hitoshi/plastudo/internal/security"
)

// defaultCacheTTL はプロフィールキャッシュのデフォルト保持期間。
const defaultCacheTTL = 5 * time.Minute

// Metrics は講師サービスが記録するメトリクスのインターフェース。
type Metrics interface {
	RecordPictureFetch(result string)
}

// Summary は一覧表示用の講師情報。
type Summary struct {
	Tutor   *model.Tutor
	Excerpt string
}

// Service は講師プロフィールに関するビジネスロジックを提供する。
type Service struct {
	repo      repository.TutorRepository
	cache     cache.Store
	cacheTTL  time.Duration
	sanitizer security.BioSanitizer
	pictures  PictureFetcher
	metrics   Metrics
	logger    *slog.Logger
}

// ServiceConfig は講師サービスの設定。
type ServiceConfig struct {
	CacheTTL time.Duration
}

// NewService はServiceを生成する。
// storeがnilの場合はキャッシュを使用しない。
func NewService(
	repo repository.TutorRepository,
	store cache.Store,
	sanitizer security.BioSanitizer,
	pictures PictureFetcher,
	metrics Metrics,
	logger *slog.Logger,
	config ServiceConfig,
) *Service {
	if store == nil {
		store = cache.NoopStore{}
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultCacheTTL
	}
	return &Service{
		repo:      repo,
		cache:     store,
		cacheTTL:  config.CacheTTL,
		sanitizer: sanitizer,
		pictures:  pictures,
		metrics:   metrics,
		logger:    logger,
	}
}

// List は検索条件に一致する講師を作成日時の新しい順に返す。
func (s *Service) List(ctx context.Context, filter model.TutorFilter) ([]Summary, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	filter.Subject = strings.TrimSpace(filter.Subject)
	if strings.EqualFold(filter.Subject, model.SubjectAll) {
		filter.Subject = ""
	}

	tutors, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search tutors: %w", err)
	}

	summaries := make([]Summary, 0, len(tutors))
	for _, t := range tutors {
		summaries = append(summaries, Summary{Tutor: t, Excerpt: Excerpt(t.Bio, excerptLength)})
	}
	return summaries, nil
}

// Matches は生徒アンケートの回答に一致する講師を返す。
// 講師アンケートの専門分野と生徒が選んだ分野の完全一致で絞り込む。
func (s *Service) Matches(ctx context.Context, answers map[string]string) ([]Summary, error) {
	q, err := onboarding.Lookup(onboarding.KindStudent)
	if err != nil {
		return nil, err
	}
	for _, question := range q.Questions {
		if err := q.Validate(question.ID, answers[onboarding.AnswerKey(question.ID)]); err != nil {
			return nil, err
		}
	}

	return s.List(ctx, model.TutorFilter{Expertise: answers[onboarding.AnswerKey(1)]})
}

// Get は講師の公開プロフィールを取得する。キャッシュを優先して参照する。
// 画像バイナリは含まない。
func (s *Service) Get(ctx context.Context, tutorID string) (*model.Tutor, error) {
	if _, err := uuid.Parse(tutorID); err != nil {
		return nil, model.NewTutorNotFoundError(tutorID)
	}

	if t, ok := s.getCached(ctx, tutorID); ok {
		return t, nil
	}

	t, err := s.repo.FindByID(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find tutor: %w", err)
	}
	if t == nil {
		return nil, model.NewTutorNotFoundError(tutorID)
	}
	t.ProfilePictureData = nil

	s.setCached(ctx, t)
	return t, nil
}

// Mine はユーザー自身の講師プロフィールを返す。
// プロフィールが存在しない場合はエラーではなくnilを返す。
func (s *Service) Mine(ctx context.Context, userID string) (*model.Tutor, error) {
	t, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find tutor by user: %w", err)
	}
	if t != nil {
		t.ProfilePictureData = nil
	}
	return t, nil
}

// Picture はプロフィール画像のバイナリとMIMEタイプを返す。
func (s *Service) Picture(ctx context.Context, tutorID string) ([]byte, string, error) {
	if _, err := uuid.Parse(tutorID); err != nil {
		return nil, "", model.NewTutorNotFoundError(tutorID)
	}

	t, err := s.repo.FindByID(ctx, tutorID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find tutor: %w", err)
	}
	if t == nil {
		return nil, "", model.NewTutorNotFoundError(tutorID)
	}
	if !t.HasPicture() || len(t.ProfilePictureData) == 0 {
		return nil, "", model.NewPictureUnavailableError()
	}
	return t.ProfilePictureData, t.ProfilePictureMime, nil
}

// ContactLink は講師への問い合わせ用mailtoリンクを返す。
func (s *Service) ContactLink(ctx context.Context, tutorID string) (string, error) {
	t, err := s.Get(ctx, tutorID)
	if err != nil {
		return "", err
	}
	return MailtoLink(t.Email, t.Name), nil
}

// Update は講師プロフィールを部分更新する。プロフィールの所有者のみ更新できる。
// 自己紹介文はサニタイズし、科目は正規化する。画像URLが変更された場合は画像を取得して保存する。
func (s *Service) Update(ctx context.Context, userID, tutorID string, update model.TutorUpdate) (*model.Tutor, error) {
	if _, err := uuid.Parse(tutorID); err != nil {
		return nil, model.NewTutorNotFoundError(tutorID)
	}
	if update.IsEmpty() {
		return nil, model.NewInvalidProfileError("nenhum campo para atualizar")
	}

	t, err := s.repo.FindByID(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find tutor: %w", err)
	}
	if t == nil {
		return nil, model.NewTutorNotFoundError(tutorID)
	}
	if t.UserID != userID {
		return nil, model.NewForbiddenError()
	}

	if err := s.applyText(t, update); err != nil {
		return nil, err
	}

	var pic *pictureChange
	if update.ProfilePicture != nil {
		pic, err = s.preparePicture(ctx, t, strings.TrimSpace(*update.ProfilePicture))
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tutor: %w", err)
	}
	// テキスト項目は保存済みのため、画像の保存に失敗してもキャッシュは破棄する
	defer s.Invalidate(ctx, t.ID)

	if pic != nil {
		if err := s.repo.UpdatePicture(ctx, t.ID, pic.url, pic.data, pic.mime); err != nil {
			return nil, fmt.Errorf("failed to update tutor picture: %w", err)
		}
		t.ProfilePicture = pic.url
		t.ProfilePictureMime = pic.mime
	}

	t.ProfilePictureData = nil

	s.logger.Info("tutor profile updated",
		slog.String("tutor_id", t.ID),
		slog.String("user_id", userID),
	)
	return t, nil
}

// Invalidate はプロフィールキャッシュを削除する。失敗はログに記録するのみ。
func (s *Service) Invalidate(ctx context.Context, tutorIDs ...string) {
	keys := make([]string, len(tutorIDs))
	for i, id := range tutorIDs {
		keys[i] = cacheKey(id)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("failed to invalidate tutor cache", slog.String("error", err.Error()))
	}
}

func (s *Service) applyText(t *model.Tutor, update model.TutorUpdate) error {
	if update.Name != nil {
		name := strings.Join(strings.Fields(*update.Name), " ")
		if name == "" {
			return model.NewInvalidProfileError("o nome é obrigatório")
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return model.NewInvalidProfileError(fmt.Sprintf("o nome não pode exceder %d caracteres", maxNameLength))
		}
		t.Name = name
	}

	if update.Bio != nil {
		bio := strings.TrimSpace(s.sanitizer.Sanitize(*update.Bio))
		if utf8.RuneCountInString(bio) > maxBioLength {
			return model.NewInvalidProfileError(fmt.Sprintf("a biografia não pode exceder %d caracteres", maxBioLength))
		}
		t.Bio = bio
	}

	if update.Subjects != nil {
		subjects, ok := normalizeSubjects(*update.Subjects)
		if !ok {
			return model.NewInvalidProfileError(fmt.Sprintf("cada disciplina pode ter no máximo %d caracteres", maxSubjectLength))
		}
		t.Subjects = subjects
	}

	if update.Location != nil {
		location := strings.TrimSpace(*update.Location)
		if utf8.RuneCountInString(location) > maxLocationLen {
			return model.NewInvalidProfileError(fmt.Sprintf("a localização não pode exceder %d caracteres", maxLocationLen))
		}
		t.Location = location
	}
	return nil
}

// pictureChange は保存する画像の変更内容。
type pictureChange struct {
	url  string
	data []byte
	mime string
}

// preparePicture は画像URLの変更内容を用意する。空文字列は画像の削除を表す。
// URLが変わらない場合はnilを返す。
func (s *Service) preparePicture(ctx context.Context, t *model.Tutor, pictureURL string) (*pictureChange, error) {
	if pictureURL == t.ProfilePicture && (pictureURL == "" || t.HasPicture()) {
		return nil, nil
	}
	if pictureURL == "" {
		return &pictureChange{}, nil
	}

	data, mime, err := s.pictures.Fetch(ctx, pictureURL)
	if err != nil {
		s.recordPictureFetch("failure")
		s.logger.Warn("failed to fetch profile picture",
			slog.String("tutor_id", t.ID),
			slog.String("url", pictureURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPictureUnavailableError()
	}
	s.recordPictureFetch("success")

	return &pictureChange{url: pictureURL, data: data, mime: mime}, nil
}

func (s *Service) recordPictureFetch(result string) {
	if s.metrics != nil {
		s.metrics.RecordPictureFetch(result)
	}
}

func cacheKey(tutorID string) string {
	return "tutor:" + tutorID
}

func (s *Service) getCached(ctx context.Context, tutorID string) (*model.Tutor, bool) {
	b, err := s.cache.Get(ctx, cacheKey(tutorID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("failed to read tutor cache", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var t model.Tutor
	if err := json.Unmarshal(b, &t); err != nil {
		s.logger.Warn("discarding corrupt tutor cache entry", slog.String("tutor_id", tutorID))
		return nil, false
	}
	return &t, true
}

func (s *Service) setCached(ctx context.Context, t *model.Tutor) {
	b, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(t.ID), b, s.cacheTTL); err != nil {
		s.logger.Warn("failed to write tutor cache", slog.String("error", err.Error()))
	}
}
