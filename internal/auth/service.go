// Package auth はアカウント登録、ログイン、セッション管理、
// 再認証を伴うプロフィール更新を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/petfinder/internal/mailer"
	"github.com/hitoshi/petfinder/internal/model"
	"github.com/hitoshi/petfinder/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BaseURL       string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	mailer      mailer.MailerService
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	mail mailer.MailerService,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		mailer:      mail,
		config:      config,
	}
}

// Register は新規アカウントを登録し、セッションを発行する。
// 表示名とメールアドレスの一意性を確認してから作成する。
// パスワードは8文字以上かつ数字を1つ以上含む必要がある。
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*model.User, *model.Session, error) {
	email = strings.TrimSpace(email)
	displayName = strings.TrimSpace(displayName)

	if email == "" {
		return nil, nil, model.NewValidationError("メールアドレスを入力してください")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, model.NewValidationError(TranslateAuthError(CodeInvalidEmail))
	}
	if displayName == "" {
		return nil, nil, model.NewValidationError("表示名を入力してください")
	}
	if !isValidPassword(password) {
		return nil, nil, model.NewValidationError("パスワードは8文字以上で、数字を1つ以上含めてください")
	}

	// 一意性確認: 表示名 → メールアドレスの順
	existing, err := s.userRepo.FindByDisplayName(ctx, displayName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check display name uniqueness: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewNameTakenError()
	}

	existing, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("new account registered",
		slog.String("user_id", user.ID),
		slog.String("display_name", displayName),
	)
	return user, session, nil
}

// Login はメールアドレスとパスワードで認証し、セッションを発行する。
// 失敗理由は変換テーブルで翻訳済みの文言で返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil, model.NewValidationError("メールアドレスを入力してください")
	}
	if password == "" {
		return nil, nil, model.NewValidationError("パスワードを入力してください")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewAuthFailedError(TranslateAuthError(CodeUserNotFound))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewAuthFailedError(TranslateAuthError(CodeWrongPassword))
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return user, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// Reauthenticate は現在のパスワードでユーザー本人であることを再確認する。
// メールアドレス変更や退会など、破壊的な操作の前提条件として呼ばれる。
func (s *Service) Reauthenticate(ctx context.Context, userID, password string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.NewAuthFailedError(TranslateAuthError(CodeInvalidCredential))
	}
	return nil
}

// UpdateEmail はメールアドレスを変更する。
// 手順: 新アドレスの一意性確認 → 再認証 → 新アドレス宛の確認メール送信 →
// プロフィール更新 → 全セッション破棄（強制ログアウト）。
// 確認メールの送信に失敗した場合は変更を適用しない。
func (s *Service) UpdateEmail(ctx context.Context, userID, password, newEmail string) error {
	newEmail = strings.TrimSpace(newEmail)
	if newEmail == "" {
		return model.NewValidationError("新しいメールアドレスを入力してください")
	}
	if _, err := mail.ParseAddress(newEmail); err != nil {
		return model.NewValidationError(TranslateAuthError(CodeInvalidEmail))
	}

	existing, err := s.userRepo.FindByEmail(ctx, newEmail)
	if err != nil {
		return fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if existing != nil && existing.ID != userID {
		return model.NewAuthFailedError(TranslateAuthError(CodeEmailAlreadyInUse))
	}

	if err := s.Reauthenticate(ctx, userID, password); err != nil {
		return err
	}

	verifyURL := fmt.Sprintf("%s/verify-email?email=%s",
		strings.TrimRight(s.config.BaseURL, "/"), url.QueryEscape(newEmail))
	if err := s.mailer.SendEmailChangeVerification(ctx, newEmail, verifyURL); err != nil {
		slog.Error("failed to send email change verification",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return model.NewMailFailureError("メールアドレス変更の確認メール")
	}

	if err := s.userRepo.UpdateEmail(ctx, userID, newEmail); err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}

	// メールアドレス変更後は全端末で再ログインさせる
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	slog.Info("email updated", slog.String("user_id", userID))
	return nil
}

// UpdateDisplayName は表示名を変更する。一意性を確認してから更新する。
func (s *Service) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return model.NewValidationError("表示名を入力してください")
	}

	existing, err := s.userRepo.FindByDisplayName(ctx, displayName)
	if err != nil {
		return fmt.Errorf("failed to check display name uniqueness: %w", err)
	}
	if existing != nil && existing.ID != userID {
		return model.NewNameTakenError()
	}

	if err := s.userRepo.UpdateDisplayName(ctx, userID, displayName); err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}

	slog.Info("display name updated", slog.String("user_id", userID))
	return nil
}

// isValidPassword はパスワード規則（8文字以上かつ数字を1つ以上含む）を検証する。
func isValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	for _, r := range password {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
