package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/plastudo/internal/model"
)

// defaultSearchLimit はTutorFilter.Limitが未指定の場合の最大取得件数。
const defaultSearchLimit = 100

// PostgresTutorRepo はPostgreSQLを使用した講師プロフィールリポジトリ。
type PostgresTutorRepo struct {
	db *sql.DB
}

// NewPostgresTutorRepo はPostgresTutorRepoを生成する。
func NewPostgresTutorRepo(db *sql.DB) *PostgresTutorRepo {
	return &PostgresTutorRepo{db: db}
}

const tutorColumns = `id, user_id, name, email, question_1_answer, bio, subjects, location,
	profile_picture, profile_picture_mime, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTutor(row rowScanner, extra ...any) (*model.Tutor, error) {
	t := &model.Tutor{}
	dest := []any{
		&t.ID, &t.UserID, &t.Name, &t.Email, &t.Question1Answer, &t.Bio,
		pq.Array(&t.Subjects), &t.Location, &t.ProfilePicture, &t.ProfilePictureMime,
		&t.CreatedAt, &t.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if t.Subjects == nil {
		t.Subjects = []string{}
	}
	return t, nil
}

// Create は講師プロフィールを作成する。
// id・created_at・updated_atはDB側で採番し、tutorに書き戻す。
func (r *PostgresTutorRepo) Create(ctx context.Context, tutor *model.Tutor) error {
	subjects := tutor.Subjects
	if subjects == nil {
		subjects = []string{}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tutors (user_id, name, email, question_1_answer, bio, subjects, location, profile_picture)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		tutor.UserID, tutor.Name, tutor.Email, tutor.Question1Answer,
		tutor.Bio, pq.Array(subjects), tutor.Location, tutor.ProfilePicture,
	).Scan(&tutor.ID, &tutor.CreatedAt, &tutor.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create tutor: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create tutor: %w", err)
	}
	tutor.Subjects = subjects
	return nil
}

// FindByID は指定IDの講師を画像バイナリ込みで取得する。見つからない場合はnilを返す。
func (r *PostgresTutorRepo) FindByID(ctx context.Context, id string) (*model.Tutor, error) {
	var data []byte
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tutorColumns+`, profile_picture_data FROM tutors WHERE id = $1`, id)
	tutor, err := scanTutor(row, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tutor by ID: %w", err)
	}
	tutor.ProfilePictureData = data
	return tutor, nil
}

// FindByUserID は指定ユーザーの講師プロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresTutorRepo) FindByUserID(ctx context.Context, userID string) (*model.Tutor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tutorColumns+` FROM tutors WHERE user_id = $1`, userID)
	tutor, err := scanTutor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tutor by user ID: %w", err)
	}
	return tutor, nil
}

// Search は検索条件に一致する講師を作成日時の降順で返す。
// Queryは名前・科目・地域に対する大文字小文字を区別しない部分一致、
// Subjectは科目リストへの完全一致、Expertiseはquestion_1_answerの完全一致で絞り込む。
func (r *PostgresTutorRepo) Search(ctx context.Context, filter model.TutorFilter) ([]*model.Tutor, error) {
	query, args := buildSearchQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search tutors: %w", err)
	}
	defer rows.Close()

	tutors := []*model.Tutor{}
	for rows.Next() {
		tutor, err := scanTutor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tutor: %w", err)
		}
		tutors = append(tutors, tutor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tutors: %w", err)
	}
	return tutors, nil
}

func buildSearchQuery(filter model.TutorFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		p := next("%" + escapeLike(q) + "%")
		conds = append(conds, fmt.Sprintf(
			"(name ILIKE %[1]s OR location ILIKE %[1]s OR EXISTS (SELECT 1 FROM unnest(subjects) AS s WHERE s ILIKE %[1]s))", p))
	}
	if s := strings.TrimSpace(filter.Subject); s != "" && s != model.SubjectAll {
		p := next("%" + escapeLike(s) + "%")
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(subjects) AS s WHERE s ILIKE %s)", p))
	}
	if e := strings.TrimSpace(filter.Expertise); e != "" {
		conds = append(conds, fmt.Sprintf("question_1_answer = %s", next(e)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + tutorColumns + ` FROM tutors`)
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT " + next(limit))
	return sb.String(), args
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Update は講師プロフィールのテキスト項目を更新する。
func (r *PostgresTutorRepo) Update(ctx context.Context, tutor *model.Tutor) error {
	subjects := tutor.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	err := r.db.QueryRowContext(ctx,
		`UPDATE tutors
		 SET name = $2, bio = $3, subjects = $4, location = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		tutor.ID, tutor.Name, tutor.Bio, pq.Array(subjects), tutor.Location,
	).Scan(&tutor.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("tutor not found: %s", tutor.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update tutor: %w", err)
	}
	return nil
}

// UpdatePicture はプロフィール画像のURLとバイナリを更新する。
// sourceURLが空の場合は画像を削除する。
func (r *PostgresTutorRepo) UpdatePicture(ctx context.Context, tutorID, sourceURL string, data []byte, mime string) error {
	if sourceURL == "" {
		data, mime = nil, ""
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE tutors
		 SET profile_picture = $2, profile_picture_data = $3, profile_picture_mime = $4, updated_at = now()
		 WHERE id = $1`,
		tutorID, sourceURL, data, mime,
	)
	if err != nil {
		return fmt.Errorf("failed to update tutor picture: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの講師プロフィールを削除する。
func (r *PostgresTutorRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tutors WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete tutor: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TutorRepository = (*PostgresTutorRepo)(nil)
