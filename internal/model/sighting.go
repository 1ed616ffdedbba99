package model

import "time"

// Sighting は掲載中のペットの目撃報告を表す。
// 親となるListingが存在しない場合は孤児（orphan）とみなし削除対象となる。
// ReporterIDは掲載のOwnerIDと異なるユーザーでなければならない。
type Sighting struct {
	ID         string
	ListingID  string
	ReporterID string
	Location   string
	PhotoKey   string // 任意
	CreatedAt  time.Time
}

// SightingNotice は目撃報告に親掲載の写真を結合した表示用ビュー。
// 掲載が存在する目撃報告のみがこの形に解決される。
type SightingNotice struct {
	Sighting
	ListingName  string
	ListingPhoto string // 親掲載の写真の参照URL
}
