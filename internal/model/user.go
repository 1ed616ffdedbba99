// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（アカウント）を表す。
// 表示名とメールアドレスはそれぞれ全ユーザー間で一意でなければならない。
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RecoveryState はパスワード再設定メールの最終送信時刻を表す。
// クールダウンの残り時間はこの値と現在時刻から都度再計算する。
// プロセス再起動後もレート制限が機能するようDBに永続化する。
type RecoveryState struct {
	Email         string
	LastRequestAt time.Time
}
