// Package notify は目撃報告のプッシュ通知機能を提供する。
//
// 通知ペイロードの組み立てと送信のインターフェースを定義する。
// 実際の端末への配信は外部のプッシュ基盤が担うため、
// 本パッケージの既定実装は構造化ログへの出力のみを行う。
package notify

import (
	"context"
	"log/slog"
)

// ペイロード項目が欠けている場合の既定文言。
const (
	DefaultTitle    = "新しい目撃情報があります"
	DefaultBody     = "あなたのペットの目撃が報告されました"
	DefaultLocation = "場所情報なし"
)

// Payload はプッシュ通知の内容。
type Payload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Location string `json:"location"`
}

// BuildSightingPayload は目撃報告の通知ペイロードを組み立てる。
// 掲載名や場所が空の場合は既定文言で補完し、
// 受信側で欠損項目の処理をさせない。
func BuildSightingPayload(listingName, location string) Payload {
	p := Payload{
		Title:    DefaultTitle,
		Body:     DefaultBody,
		Location: location,
	}
	if listingName != "" {
		p.Body = listingName + "の目撃が報告されました"
	}
	if p.Location == "" {
		p.Location = DefaultLocation
	}
	return p
}

// PushSender はプッシュ通知送信のインターフェースを定義する。
type PushSender interface {
	// Send は指定ユーザー宛に通知を送信する。
	Send(ctx context.Context, userID string, payload Payload) error
}

// logPushSender はPushSenderのログ出力実装。
// 配信基盤が未接続の環境でも通知フローを動作させるための既定実装。
type logPushSender struct {
	logger *slog.Logger
}

// NewLogPushSender は通知内容を構造化ログに出力するPushSenderを生成する。
func NewLogPushSender(logger *slog.Logger) *logPushSender {
	return &logPushSender{logger: logger}
}

// Send は通知内容をログに出力する。
func (s *logPushSender) Send(ctx context.Context, userID string, payload Payload) error {
	s.logger.InfoContext(ctx, "push notification dispatched",
		"user_id", userID,
		"title", payload.Title,
		"body", payload.Body,
		"location", payload.Location,
	)
	return nil
}

// compile-time interface check
var _ PushSender = (*logPushSender)(nil)
