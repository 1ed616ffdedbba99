package auth

// 認証プロバイダー由来のエラーコード。
// 外部IdPの応答をアプリ内部の固定コードに正規化したもの。
const (
	CodeInvalidEmail      = "auth/invalid-email"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeEmailAlreadyInUse = "auth/email-already-in-use"
)

// authErrorMessages はエラーコードからユーザー向け文言への変換テーブル。
var authErrorMessages = map[string]string{
	CodeInvalidEmail:      "メールアドレスの形式が正しくありません。",
	CodeUserNotFound:      "このメールアドレスに対応するアカウントが見つかりません。削除された可能性があります。",
	CodeWrongPassword:     "パスワードが正しくないか、パスワードが設定されていません。",
	CodeInvalidCredential: "認証情報が正しくないか、有効期限が切れています。もう一度お試しください。",
	CodeEmailAlreadyInUse: "このメールアドレスは既に別のアカウントで使われています。別のメールアドレスを使うか、ログインしてください。",
}

// fallbackAuthErrorMessage は変換テーブルに存在しないコードへの無条件フォールバック。
const fallbackAuthErrorMessage = "認証情報が正しくありません。もう一度お試しください。"

// TranslateAuthError は認証エラーコードをユーザー向け文言に変換する。
// 未知のコードには必ずフォールバック文言を返し、内部コードを露出させない。
func TranslateAuthError(code string) string {
	if msg, ok := authErrorMessages[code]; ok {
		return msg
	}
	return fallbackAuthErrorMessage
}
