// Package mailer はSMTP経由のメール送信機能を提供する。
//
// パスワード再設定とメールアドレス変更確認の2種類のメールを送信する。
// SMTPサーバーへの接続はSSL/TLSのみを使用し、平文接続は行わない。
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
)

// MailerService はメール送信機能のインターフェースを定義する。
type MailerService interface {
	// SendPasswordRecovery はパスワード再設定メールを送信する。
	SendPasswordRecovery(ctx context.Context, to string, resetURL string) error

	// SendEmailChangeVerification は新しいメールアドレス宛に変更確認メールを送信する。
	// 受信者が確認リンクを開くまでアドレス変更は確定しない。
	SendEmailChangeVerification(ctx context.Context, to string, verifyURL string) error
}

// SMTPConfig はSMTPサーバーへの接続設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // 送信元アドレス
}

// smtpMailer はMailerServiceのSMTP実装。
type smtpMailer struct {
	config SMTPConfig
	// skipTLSVerify はテスト時のみtrueにする。
	skipTLSVerify bool
}

// NewSMTPMailer はSMTP経由でメールを送信するMailerServiceを生成する。
func NewSMTPMailer(config SMTPConfig) *smtpMailer {
	return &smtpMailer{config: config}
}

// SendPasswordRecovery はパスワード再設定メールを送信する。
func (m *smtpMailer) SendPasswordRecovery(ctx context.Context, to string, resetURL string) error {
	subject := "【ペットファインダー】パスワード再設定のご案内"
	body := fmt.Sprintf(
		"パスワード再設定のリクエストを受け付けました。\r\n"+
			"以下のリンクから新しいパスワードを設定してください。\r\n\r\n"+
			"%s\r\n\r\n"+
			"このメールに心当たりがない場合は破棄してください。\r\n",
		resetURL,
	)
	return m.send(ctx, to, subject, body)
}

// SendEmailChangeVerification は新しいメールアドレス宛に変更確認メールを送信する。
func (m *smtpMailer) SendEmailChangeVerification(ctx context.Context, to string, verifyURL string) error {
	subject := "【ペットファインダー】メールアドレス変更の確認"
	body := fmt.Sprintf(
		"メールアドレスの変更リクエストを受け付けました。\r\n"+
			"以下のリンクを開いて変更を確定してください。\r\n\r\n"+
			"%s\r\n\r\n"+
			"確認が完了するまで変更は反映されません。\r\n"+
			"このメールに心当たりがない場合は破棄してください。\r\n",
		verifyURL,
	)
	return m.send(ctx, to, subject, body)
}

// send はTLS接続でSMTPトランザクションを実行し、1通のメールを送信する。
func (m *smtpMailer) send(ctx context.Context, to string, subject string, body string) error {
	addr := net.JoinHostPort(m.config.Host, fmt.Sprintf("%d", m.config.Port))

	client, err := m.newTLSClient(ctx, addr)
	if err != nil {
		return fmt.Errorf("failed to create TLS smtp client: %w", err)
	}
	defer client.Close()
	defer client.Quit()

	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	if ok, _ := client.Extension("AUTH"); ok {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate with smtp server %s: %w", addr, err)
		}
	} else if m.config.Username != "" {
		// 認証情報を信頼できないネットワークに開示しない
		return fmt.Errorf("smtp server %s has no auth support", addr)
	}

	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("failed to execute MAIL command: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to execute RCPT command: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to execute DATA command: %w", err)
	}
	defer w.Close()

	msg := composeMessage(m.config.From, to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write email data: %w", err)
	}

	return nil
}

// newTLSClient はSMTPサーバーへのTLS接続を確立しクライアントを生成する。
func (m *smtpMailer) newTLSClient(ctx context.Context, addr string) (*smtp.Client, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp server address %s: %w", addr, err)
	}

	dialer := &tls.Dialer{
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: m.skipTLSVerify,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s via TLS: %w", addr, err)
	}

	return smtp.NewClient(conn, host)
}

// composeMessage はヘッダーと本文からメールメッセージを組み立てる。
// 件名は日本語を含むためRFC 2047のMIMEエンコードを適用する。
func composeMessage(from, to, subject, body string) string {
	fromAddr := mail.Address{Address: from}
	toAddr := mail.Address{Address: to}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", fromAddr.String())
	fmt.Fprintf(&b, "To: %s\r\n", toAddr.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprint(&b, "\r\n")
	fmt.Fprint(&b, body)
	return b.String()
}

// compile-time interface check
var _ MailerService = (*smtpMailer)(nil)
