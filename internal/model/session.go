package model

import "time"

// Session は管理者のログインセッションを表す。
type Session struct {
	ID        string
	Subject   string // ログインした管理者のユーザー名
	ExpiresAt time.Time
	CreatedAt time.Time
}
