// Package recovery はパスワード再設定メールのクールダウン制御を提供する。
//
// 再設定メールの連続送信を防ぐため、メールアドレスごとに最終送信時刻を記録し、
// 一定時間が経過するまで新しいリクエストを外部送信なしで拒否する。
// 最終送信時刻は永続化されるため、プロセス再起動によるレート制限の回避はできない。
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/petfinder/internal/mailer"
	"github.com/hitoshi/petfinder/internal/model"
	"github.com/hitoshi/petfinder/internal/repository"
)

// CooldownDuration は再設定メール送信後に次のリクエストを拒否する期間。
const CooldownDuration = 60 * time.Second

// SentMessage は送信成功後にユーザーへ表示するメッセージ。
const SentMessage = "パスワード再設定メールを送信しました"

// Service はパスワード再設定リクエストのゲート処理を行う。
//
// 状態遷移は Idle → Cooldown（送信成功時）→ Idle（残り時間が0になった時）のみ。
// 送信失敗時はクールダウンを開始せず、即座に再試行できる。
// クールダウン中のリクエストは状態を変化させない。
type Service struct {
	userRepo     repository.UserRepository
	recoveryRepo repository.RecoveryRepository
	mailer       mailer.MailerService
	baseURL      string
	logger       *slog.Logger
	metrics      MetricsRecorder // nil可
	now          func() time.Time
	tickInterval time.Duration

	// ループの生存期間はサービスに紐づく。Closeで全ループを停止する。
	loopCtx    context.Context
	loopCancel context.CancelFunc

	mu         sync.Mutex
	countdowns map[string]*Countdown
	messages   map[string]string
}

// NewService はrecovery.Serviceを生成する。
// baseURLは再設定リンクの組み立てに使用する公開URL（例: "https://petfinder.example.com"）。
func NewService(
	userRepo repository.UserRepository,
	recoveryRepo repository.RecoveryRepository,
	mail mailer.MailerService,
	baseURL string,
	logger *slog.Logger,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		userRepo:     userRepo,
		recoveryRepo: recoveryRepo,
		mailer:       mail,
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger,
		now:          time.Now,
		tickInterval: time.Second,
		loopCtx:      ctx,
		loopCancel:   cancel,
		countdowns:   make(map[string]*Countdown),
		messages:     make(map[string]string),
	}
}

// MetricsRecorder はパスワード再設定イベントのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordRecoveryMailSent()
	RecordCooldownRejection()
	RecordMailFailure(reason string)
}

// SetMetrics はメトリクスレコーダーを設定する。未設定でも動作に影響しない。
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// Close は実行中のカウントダウンループをすべて停止する。
func (s *Service) Close() {
	s.loopCancel()
}

// RequestRecovery はパスワード再設定メールの送信リクエストを処理する。
//
// メールアドレスが登録済みアカウントに対応しない場合は拒否する。
// クールダウン中の場合は外部送信を行わずCOOLDOWN_ACTIVEエラーを返す。
// 送信に成功した場合のみ最終送信時刻を記録し、クールダウンを開始する。
func (s *Service) RequestRecovery(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.NewValidationError("メールアドレスを入力してください")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	remaining, err := s.RemainingSeconds(ctx, email)
	if err != nil {
		return err
	}
	if remaining > 0 {
		if s.metrics != nil {
			s.metrics.RecordCooldownRejection()
		}
		return model.NewCooldownActiveError(remaining)
	}

	resetURL := fmt.Sprintf("%s/reset-password?email=%s", s.baseURL, url.QueryEscape(email))
	if err := s.mailer.SendPasswordRecovery(ctx, email, resetURL); err != nil {
		// 送信失敗時はクールダウンを開始しない。ユーザーは即座に再試行できる。
		s.logger.ErrorContext(ctx, "failed to send recovery email", "email", email, "error", err)
		if s.metrics != nil {
			s.metrics.RecordMailFailure("recovery")
		}
		return model.NewMailFailureError("パスワード再設定メール")
	}

	sentAt := s.now()
	if err := s.recoveryRepo.Upsert(ctx, email, sentAt); err != nil {
		// メールはすでに送信済みのため、記録失敗はリクエスト自体の失敗にしない。
		// メモリ上のカウントダウンがプロセス生存中のレート制限を維持する。
		s.logger.ErrorContext(ctx, "failed to persist recovery timestamp", "email", email, "error", err)
	}

	if s.metrics != nil {
		s.metrics.RecordRecoveryMailSent()
	}

	s.startCooldown(email)
	s.setMessage(email, SentMessage)

	s.logger.InfoContext(ctx, "recovery email sent", "email", email)
	return nil
}

// RemainingSeconds はクールダウンの残り秒数を返す。
// 永続化された最終送信時刻から都度再計算するため、画面遷移や
// プロセス再起動をまたいでも値は一貫する。時刻の記録に失敗していた場合は
// プロセス内のカウントダウンが残り秒数の下限を与える。記録がなければ0を返す。
func (s *Service) RemainingSeconds(ctx context.Context, email string) (int64, error) {
	state, err := s.recoveryRepo.Find(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("failed to find recovery state: %w", err)
	}

	var persisted int64
	if state != nil {
		if d := CooldownDuration - s.now().Sub(state.LastRequestAt); d > 0 {
			persisted = int64(math.Ceil(d.Seconds()))
		}
	}

	if mem := s.memoryRemaining(email); mem > persisted {
		return mem, nil
	}
	return persisted, nil
}

// memoryRemaining はプロセス内カウントダウンの残り秒数を返す。
// カウントダウンが存在しないメールアドレスに対しては0を返す。
func (s *Service) memoryRemaining(email string) int64 {
	s.mu.Lock()
	c, ok := s.countdowns[email]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return c.Remaining()
}

// StatusMessage は最後のリクエスト結果に対する表示用メッセージを返す。
func (s *Service) StatusMessage(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[email]
}

// ClearMessage は表示用メッセージをリセットする。クールダウンタイマーには影響しない。
func (s *Service) ClearMessage(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, email)
}

// startCooldown はメールアドレスごとのカウントダウンを開始する。
// すでにループが動いている場合はCountdown側の二重起動ガードが働く。
// カウントが0に達して終了したループは、そのメールアドレスの内部状態を破棄する。
func (s *Service) startCooldown(email string) {
	s.mu.Lock()
	c, ok := s.countdowns[email]
	if !ok {
		c = NewCountdown()
		s.countdowns[email] = c
	}
	s.mu.Unlock()

	c.Reset(int64(CooldownDuration / time.Second))
	go func() {
		if c.Start(s.loopCtx, s.tickInterval) {
			s.evict(email, c)
		}
	}()
}

// evict はクールダウンが完了したメールアドレスの内部状態を破棄する。
// カウントダウンが再開されていた場合（残りが0でない場合）は何もしない。
func (s *Service) evict(email string, c *Countdown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countdowns[email] != c || c.Remaining() != 0 {
		return
	}
	delete(s.countdowns, email)
	delete(s.messages, email)
}

func (s *Service) setMessage(email, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[email] = message
}
