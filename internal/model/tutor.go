package model

import "time"

// TutorDraft は回答途中のアンケート内容を表す一時レコード。
// 回答セッションIDをキーとし、回答のたびに上書きされる。
type TutorDraft struct {
	SessionID       string
	Question1Answer string
	Answers         map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Tutor は昇格済みの講師プロフィール（Permanent Tutor Record）を表す。
type Tutor struct {
	ID                 string
	UserID             string
	Name               string
	Email              string
	Question1Answer    string
	Bio                string
	Subjects           []string
	Location           string
	ProfilePicture     string // 取得元URL
	ProfilePictureData []byte
	ProfilePictureMime string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasPicture はプロフィール画像を保持しているかを返す。
// 画像バイナリとMIMEタイプは常に同時に更新されるため、一覧取得時のように
// バイナリを読み込んでいない場合もMIMEタイプで判定できる。
func (t *Tutor) HasPicture() bool {
	return t.ProfilePictureMime != ""
}

// TutorFilter は講師一覧の検索条件を表す。
type TutorFilter struct {
	// Query は名前・科目・地域に対する部分一致検索語（大文字小文字を区別しない）。
	Query string
	// Subject は科目フィルタ。空または"all"の場合は絞り込まない。
	Subject string
	// Expertise はアンケートの専門分野（question_1_answer）の完全一致条件。
	Expertise string
	// Limit は最大取得件数。
	Limit int
}

// SubjectAll は科目フィルタを適用しないことを示す値。
const SubjectAll = "all"

// TutorUpdate は講師プロフィールの部分更新内容を表す。
// nilのフィールドは変更しない。
type TutorUpdate struct {
	Name           *string
	Bio            *string
	Subjects       *[]string
	Location       *string
	ProfilePicture *string
}

// IsEmpty は更新対象のフィールドが1つもないかを返す。
func (u TutorUpdate) IsEmpty() bool {
	return u.Name == nil && u.Bio == nil && u.Subjects == nil && u.Location == nil && u.ProfilePicture == nil
}
