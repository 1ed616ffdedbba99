package model

import "time"

// Listing は迷子ペットの掲載を表す。
// 全ユーザーが閲覧でき、更新・削除はOwnerIDのユーザーのみが行える。
type Listing struct {
	ID           string
	OwnerID      string
	Name         string // ペットの名前
	Breed        string // 種類・品種
	Age          string
	Locality     string // 迷子になった地域
	LastSeen     string // 最後に目撃された場所
	Description  string
	LostDate     time.Time // 迷子になった日。作成時点より未来は不可
	PhotoKey     string    // オブジェクトストレージ上の写真キー
	CreatedAt    time.Time
}

// CanModifyBy は指定ユーザーがこの掲載を更新・削除できるかを返す。
func (l *Listing) CanModifyBy(userID string) bool {
	return l.OwnerID == userID
}
