package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, listing, sighting, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNameTaken       = "NAME_TAKEN"
	ErrCodeEmailTaken      = "EMAIL_TAKEN"
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeListingNotFound = "LISTING_NOT_FOUND"
	ErrCodeNotOwner        = "NOT_OWNER"
	ErrCodeOwnSighting     = "OWN_SIGHTING"
	ErrCodeCooldownActive  = "COOLDOWN_ACTIVE"
	ErrCodeStorageFailure  = "STORAGE_FAILURE"
	ErrCodeMailFailure     = "MAIL_FAILURE"
	ErrCodePhotoBlocked    = "PHOTO_URL_BLOCKED"
)

// NewValidationError は入力検証エラーを生成する。
// バックエンド呼び出し前にローカルで解決され、外部コラボレータには届かない。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewNameTakenError は表示名の一意性違反エラーを生成する。
func NewNameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeNameTaken,
		Message:  "この表示名は既に使われています。",
		Category: "validation",
		Action:   "別の表示名を選んでください。",
	}
}

// NewEmailTakenError はメールアドレスの一意性違反エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使うか、ログインしてください。",
	}
}

// NewAuthFailedError は認証失敗エラーを生成する。
// messageには変換テーブルで翻訳済みのユーザー向け文言を渡す。
func NewAuthFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  message,
		Category: "auth",
		Action:   "認証情報を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewListingNotFoundError は掲載が見つからない場合のエラーを生成する。
func NewListingNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定された掲載が見つかりません: %s", listingID),
		Category: "listing",
		Action:   "掲載IDを確認してください。",
	}
}

// NewNotOwnerError は掲載の所有者以外による変更操作のエラーを生成する。
func NewNotOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotOwner,
		Message:  "この掲載を変更する権限がありません。",
		Category: "auth",
		Action:   "自分が作成した掲載のみ変更できます。",
	}
}

// NewOwnSightingError は自分の掲載への目撃報告エラーを生成する。
func NewOwnSightingError() *APIError {
	return &APIError{
		Code:     ErrCodeOwnSighting,
		Message:  "自分の掲載には目撃報告できません。",
		Category: "sighting",
		Action:   "他のユーザーの掲載に対して報告してください。",
	}
}

// NewCooldownActiveError はクールダウン中の再設定メール要求エラーを生成する。
// ローカルで即時判定され、バックエンドへの通信は発生しない。
func NewCooldownActiveError(remainingSeconds int64) *APIError {
	return &APIError{
		Code:     ErrCodeCooldownActive,
		Message:  fmt.Sprintf("再設定メールは送信済みです。あと%d秒お待ちください。", remainingSeconds),
		Category: "validation",
		Action:   "表示された秒数が経過してから再度お試しください。",
	}
}

// NewStorageFailureError は写真ストレージの一時的な失敗エラーを生成する。
func NewStorageFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  fmt.Sprintf("写真の保存に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewMailFailureError は再設定・確認メール送信失敗エラーを生成する。
// 送信失敗時にクールダウンは開始されない。
func NewMailFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeMailFailure,
		Message:  fmt.Sprintf("メールの送信に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPhotoBlockedError は写真取り込みURLがセキュリティポリシーでブロックされた場合のエラーを生成する。
func NewPhotoBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodePhotoBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLからの写真取り込みがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。",
	}
}
