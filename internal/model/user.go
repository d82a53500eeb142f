// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証バックエンドが検証済みのユーザーを表す。
// クライアントから送られた値からは決して生成しない。
type User struct {
	ID    string
	Email string
}

// Session は認証バックエンドが発行したトークンの組を表す。
// Cookieに保存され、期限切れ時はリフレッシュトークンでローテーションされる。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IsZero はトークンを1つも保持していない場合にtrueを返す。
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}
