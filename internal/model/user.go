// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID             string
	Email          string
	Name           string
	AvatarURL      string
	GitHubNickname string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// LoginSession はユーザーのログインセッションを表す。
// グロースセッション（GrowthSession）とは別物。
type LoginSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
