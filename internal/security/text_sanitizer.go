// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は掲載・目撃報告の自由入力テキストをサニタイズし、
// 保存されたマークアップが他ユーザーの画面で実行されるリスクを除去する。
// bluemondayライブラリの許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
// 掲載の名前・品種・説明や目撃報告の場所など、保存前の自由入力項目に使用される。
type TextSanitizerService interface {
	// SanitizePlain は入力からすべてのHTMLタグを除去し、プレーンテキストを返す。
	// タグ除去後のHTMLエンティティは元の文字に戻し、前後の空白を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizePlain(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはタグを一切許可しないため、script等の危険なタグだけでなく
// 装飾タグもすべて除去され、テキストのみが残る。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizePlain は入力からすべてのHTMLタグを除去し、プレーンテキストを返す。
// bluemondayはタグ除去後に残るテキストをエンティティエスケープするため、
// プレーンテキストとして保存する用途ではエスケープを解除して返す。
// 出力のエスケープは表示層の責務とする。
func (s *textSanitizer) SanitizePlain(raw string) string {
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
