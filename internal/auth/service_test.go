package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/petfinder/internal/model"
)

// mockUserRepo はrepository.UserRepositoryのモック実装。
type mockUserRepo struct {
	createFunc            func(ctx context.Context, user *model.User) error
	findByIDFunc          func(ctx context.Context, id string) (*model.User, error)
	findByEmailFunc       func(ctx context.Context, email string) (*model.User, error)
	findByDisplayNameFunc func(ctx context.Context, displayName string) (*model.User, error)
	updateEmailFunc       func(ctx context.Context, id, email string) error
	updateDisplayNameFunc func(ctx context.Context, id, displayName string) error
	deleteByIDFunc        func(ctx context.Context, id string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByDisplayName(ctx context.Context, displayName string) (*model.User, error) {
	if m.findByDisplayNameFunc != nil {
		return m.findByDisplayNameFunc(ctx, displayName)
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateEmail(ctx context.Context, id, email string) error {
	if m.updateEmailFunc != nil {
		return m.updateEmailFunc(ctx, id, email)
	}
	return nil
}

func (m *mockUserRepo) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	if m.updateDisplayNameFunc != nil {
		return m.updateDisplayNameFunc(ctx, id, displayName)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFunc != nil {
		return m.deleteByIDFunc(ctx, id)
	}
	return nil
}

// mockSessionRepo はrepository.SessionRepositoryのモック実装。
type mockSessionRepo struct {
	createFunc         func(ctx context.Context, session *model.Session) error
	findByIDFunc       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFunc     func(ctx context.Context, id string) error
	deleteByUserIDFunc func(ctx context.Context, userID string) error
	deleteByUserCalls  int
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFunc != nil {
		return m.deleteByIDFunc(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	m.deleteByUserCalls++
	if m.deleteByUserIDFunc != nil {
		return m.deleteByUserIDFunc(ctx, userID)
	}
	return nil
}

// mockMailer はmailer.MailerServiceのモック実装。
type mockMailer struct {
	sendVerificationFunc func(ctx context.Context, to string, verifyURL string) error
	verificationCalls    int
}

func (m *mockMailer) SendPasswordRecovery(ctx context.Context, to string, resetURL string) error {
	return nil
}

func (m *mockMailer) SendEmailChangeVerification(ctx context.Context, to string, verifyURL string) error {
	m.verificationCalls++
	if m.sendVerificationFunc != nil {
		return m.sendVerificationFunc(ctx, to, verifyURL)
	}
	return nil
}

func newTestService(users *mockUserRepo, sessions *mockSessionRepo, mail *mockMailer) *Service {
	return NewService(users, sessions, mail, ServiceConfig{
		SessionMaxAge: 86400,
		BaseURL:       "https://petfinder.example.com",
	})
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(h)
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != wantCode {
		t.Fatalf("error code = %s, want %s", apiErr.Code, wantCode)
	}
}

// TestRegister_Success は新規登録とセッション発行をテストする。
func TestRegister_Success(t *testing.T) {
	var created *model.User
	users := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	sessions := &mockSessionRepo{}

	user, session, err := newTestService(users, sessions, &mockMailer{}).Register(
		context.Background(), "user@example.com", "password1", "ポチの飼い主")
	if err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	if created == nil {
		t.Fatal("user was not persisted")
	}
	if user.Email != "user@example.com" {
		t.Errorf("email = %q, want user@example.com", user.Email)
	}
	if user.DisplayName != "ポチの飼い主" {
		t.Errorf("display name = %q, want ポチの飼い主", user.DisplayName)
	}
	if user.PasswordHash == "" || user.PasswordHash == "password1" {
		t.Error("password must be stored as a hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password1")); err != nil {
		t.Error("stored hash does not match the password")
	}
	if session == nil || session.UserID != user.ID {
		t.Error("session was not issued for the new user")
	}
}

// TestRegister_PasswordRule はパスワード規則（8文字以上+数字1つ以上）をテストする。
func TestRegister_PasswordRule(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockMailer{})

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"8文字未満は拒否", "pass1", true},
		{"数字なしは拒否", "passwordonly", true},
		{"7文字+数字は拒否", "passwd1", true},
		{"8文字+数字は許可", "passwd12", false},
		{"長いパスワードも許可", "very-long-password-9", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), "user@example.com", tt.password, "名前")
			if tt.wantErr {
				assertAPIErrorCode(t, err, model.ErrCodeValidation)
			} else if err != nil {
				t.Errorf("Register() with password %q returned error: %v", tt.password, err)
			}
		})
	}
}

// TestRegister_NameTaken は表示名の一意性違反をテストする。
func TestRegister_NameTaken(t *testing.T) {
	users := &mockUserRepo{
		findByDisplayNameFunc: func(ctx context.Context, displayName string) (*model.User, error) {
			return &model.User{ID: "other", DisplayName: displayName}, nil
		},
	}

	_, _, err := newTestService(users, &mockSessionRepo{}, &mockMailer{}).Register(
		context.Background(), "user@example.com", "password1", "使用済みの名前")
	assertAPIErrorCode(t, err, model.ErrCodeNameTaken)
}

// TestRegister_EmailTaken はメールアドレスの一意性違反をテストする。
func TestRegister_EmailTaken(t *testing.T) {
	users := &mockUserRepo{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "other", Email: email}, nil
		},
	}

	_, _, err := newTestService(users, &mockSessionRepo{}, &mockMailer{}).Register(
		context.Background(), "taken@example.com", "password1", "新しい名前")
	assertAPIErrorCode(t, err, model.ErrCodeEmailTaken)
}

// TestRegister_InvalidEmail は不正な形式のメールアドレスの拒否をテストする。
func TestRegister_InvalidEmail(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockMailer{})

	_, _, err := svc.Register(context.Background(), "not-an-email", "password1", "名前")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

// TestLogin_Success はログイン成功とセッション発行をテストする。
func TestLogin_Success(t *testing.T) {
	hash := hashOf(t, "password1")
	users := &mockUserRepo{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}

	user, session, err := newTestService(users, &mockSessionRepo{}, &mockMailer{}).Login(
		context.Background(), "user@example.com", "password1")
	if err != nil {
		t.Fatalf("Login() returned error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user ID = %q, want user-1", user.ID)
	}
	if session == nil || session.UserID != "user-1" {
		t.Error("session was not issued")
	}
}

// TestLogin_WrongPassword は誤ったパスワードで翻訳済み文言が返ることをテストする。
func TestLogin_WrongPassword(t *testing.T) {
	hash := hashOf(t, "password1")
	users := &mockUserRepo{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}

	_, _, err := newTestService(users, &mockSessionRepo{}, &mockMailer{}).Login(
		context.Background(), "user@example.com", "wrong-pass-9")
	assertAPIErrorCode(t, err, model.ErrCodeAuthFailed)

	var apiErr *model.APIError
	errors.As(err, &apiErr)
	if apiErr.Message != TranslateAuthError(CodeWrongPassword) {
		t.Errorf("message = %q, want translated wrong-password text", apiErr.Message)
	}
}

// TestLogin_UnknownUser は未登録アドレスでのログイン失敗をテストする。
func TestLogin_UnknownUser(t *testing.T) {
	_, _, err := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockMailer{}).Login(
		context.Background(), "nobody@example.com", "password1")
	assertAPIErrorCode(t, err, model.ErrCodeAuthFailed)
}

// TestGetCurrentUser はセッションからのユーザー取得をテストする。
func TestGetCurrentUser(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1"}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, DisplayName: "ポチの飼い主"}, nil
		},
	}

	user, err := newTestService(users, sessions, &mockMailer{}).GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("GetCurrentUser() returned error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user ID = %q, want user-1", user.ID)
	}
}

// TestGetCurrentUser_ExpiredSession は期限切れセッションの拒否をテストする。
func TestGetCurrentUser_ExpiredSession(t *testing.T) {
	_, err := newTestService(&mockUserRepo{}, &mockSessionRepo{}, &mockMailer{}).GetCurrentUser(
		context.Background(), "expired-session")
	if err == nil {
		t.Fatal("expected error for expired session, got nil")
	}
}

// TestReauthenticate は再認証をテストする。
func TestReauthenticate(t *testing.T) {
	hash := hashOf(t, "password1")
	users := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PasswordHash: hash}, nil
		},
	}
	svc := newTestService(users, &mockSessionRepo{}, &mockMailer{})

	if err := svc.Reauthenticate(context.Background(), "user-1", "password1"); err != nil {
		t.Errorf("Reauthenticate() with correct password returned error: %v", err)
	}

	err := svc.Reauthenticate(context.Background(), "user-1", "wrong-pass-9")
	assertAPIErrorCode(t, err, model.ErrCodeAuthFailed)
}

// TestUpdateEmail_Success はメールアドレス変更の全段階をテストする。
// 一意性確認 → 再認証 → 確認メール送信 → 更新 → 全セッション破棄の順で行われる。
func TestUpdateEmail_Success(t *testing.T) {
	hash := hashOf(t, "password1")
	var updatedEmail string
	users := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "old@example.com", PasswordHash: hash}, nil
		},
		updateEmailFunc: func(ctx context.Context, id, email string) error {
			updatedEmail = email
			return nil
		},
	}
	sessions := &mockSessionRepo{}
	mail := &mockMailer{}

	err := newTestService(users, sessions, mail).UpdateEmail(
		context.Background(), "user-1", "password1", "new@example.com")
	if err != nil {
		t.Fatalf("UpdateEmail() returned error: %v", err)
	}

	if mail.verificationCalls != 1 {
		t.Errorf("verification mail sent %d times, want 1", mail.verificationCalls)
	}
	if updatedEmail != "new@example.com" {
		t.Errorf("updated email = %q, want new@example.com", updatedEmail)
	}
	if sessions.deleteByUserCalls != 1 {
		t.Error("all sessions must be revoked after email change")
	}
}

// TestUpdateEmail_Taken は使用中アドレスへの変更拒否をテストする。
func TestUpdateEmail_Taken(t *testing.T) {
	users := &mockUserRepo{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "other", Email: email}, nil
		},
	}
	mail := &mockMailer{}

	err := newTestService(users, &mockSessionRepo{}, mail).UpdateEmail(
		context.Background(), "user-1", "password1", "taken@example.com")
	assertAPIErrorCode(t, err, model.ErrCodeAuthFailed)
	if mail.verificationCalls != 0 {
		t.Error("verification mail must not be sent when the address is taken")
	}
}

// TestUpdateEmail_ReauthFailure は再認証失敗時に変更が適用されないことをテストする。
func TestUpdateEmail_ReauthFailure(t *testing.T) {
	hash := hashOf(t, "password1")
	users := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PasswordHash: hash}, nil
		},
		updateEmailFunc: func(ctx context.Context, id, email string) error {
			t.Fatal("UpdateEmail must not be called when reauthentication fails")
			return nil
		},
	}

	err := newTestService(users, &mockSessionRepo{}, &mockMailer{}).UpdateEmail(
		context.Background(), "user-1", "wrong-pass-9", "new@example.com")
	assertAPIErrorCode(t, err, model.ErrCodeAuthFailed)
}

// TestUpdateEmail_MailFailure は確認メール送信失敗時に変更が適用されないことをテストする。
func TestUpdateEmail_MailFailure(t *testing.T) {
	hash := hashOf(t, "password1")
	users := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PasswordHash: hash}, nil
		},
		updateEmailFunc: func(ctx context.Context, id, email string) error {
			t.Fatal("UpdateEmail must not be called when verification mail fails")
			return nil
		},
	}
	mail := &mockMailer{
		sendVerificationFunc: func(ctx context.Context, to string, verifyURL string) error {
			return errors.New("smtp down")
		},
	}
	sessions := &mockSessionRepo{}

	err := newTestService(users, sessions, mail).UpdateEmail(
		context.Background(), "user-1", "password1", "new@example.com")
	assertAPIErrorCode(t, err, model.ErrCodeMailFailure)
	if sessions.deleteByUserCalls != 0 {
		t.Error("sessions must not be revoked when the change was not applied")
	}
}

// TestUpdateDisplayName は表示名変更をテストする。
func TestUpdateDisplayName(t *testing.T) {
	var updatedName string
	users := &mockUserRepo{
		updateDisplayNameFunc: func(ctx context.Context, id, displayName string) error {
			updatedName = displayName
			return nil
		},
	}

	err := newTestService(users, &mockSessionRepo{}, &mockMailer{}).UpdateDisplayName(
		context.Background(), "user-1", "新しい名前")
	if err != nil {
		t.Fatalf("UpdateDisplayName() returned error: %v", err)
	}
	if updatedName != "新しい名前" {
		t.Errorf("updated name = %q, want 新しい名前", updatedName)
	}
}

// TestUpdateDisplayName_Taken は使用中の表示名への変更拒否をテストする。
func TestUpdateDisplayName_Taken(t *testing.T) {
	users := &mockUserRepo{
		findByDisplayNameFunc: func(ctx context.Context, displayName string) (*model.User, error) {
			return &model.User{ID: "other", DisplayName: displayName}, nil
		},
	}

	err := newTestService(users, &mockSessionRepo{}, &mockMailer{}).UpdateDisplayName(
		context.Background(), "user-1", "使用済みの名前")
	assertAPIErrorCode(t, err, model.ErrCodeNameTaken)
}

// TestTranslateAuthError は変換テーブルとフォールバックをテストする。
func TestTranslateAuthError(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{CodeInvalidEmail, authErrorMessages[CodeInvalidEmail]},
		{CodeUserNotFound, authErrorMessages[CodeUserNotFound]},
		{CodeWrongPassword, authErrorMessages[CodeWrongPassword]},
		{CodeInvalidCredential, authErrorMessages[CodeInvalidCredential]},
		{CodeEmailAlreadyInUse, authErrorMessages[CodeEmailAlreadyInUse]},
		{"auth/some-unknown-code", fallbackAuthErrorMessage},
		{"", fallbackAuthErrorMessage},
	}

	for _, tt := range tests {
		if got := TranslateAuthError(tt.code); got != tt.want {
			t.Errorf("TranslateAuthError(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
