// Package onboarding は講師アンケートの回答セッションを管理し、
// 一時レコードから講師プロフィールへの昇格処理を提供する。
package onboarding

import "github.com/google/uuid"

// sessionIDLength は正規形UUID（ハイフン区切り）の文字数。
const sessionIDLength = 36

// NewSessionID は回答セッションIDを生成する。
// crypto/randを元にしたバージョン4のUUIDで、回答セッションの開始時に1回だけ発行する。
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID はクライアントから受け取ったセッションIDが正規形のUUIDかを返す。
func ValidSessionID(id string) bool {
	if len(id) != sessionIDLength {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
