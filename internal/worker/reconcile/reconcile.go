// Package reconcile は孤児となった目撃報告の定期掃除ジョブを提供する。
//
// 目撃報告と掲載の間に外部キー制約は張っていないため、掲載の削除後も
// 参照先を失った報告行が残りうる。閲覧時のリコンシリエーションに加えて、
// このジョブが残存する孤児をバッチで削除する。
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// OrphanMetrics は削除件数のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type OrphanMetrics interface {
	RecordOrphansRemoved(count int)
}

// Job は孤児目撃報告の削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	db      Executor
	logger  *slog.Logger
	metrics OrphanMetrics // nil可
}

// NewJob は新しいJobを生成する。metricsはnilでもよい。
func NewJob(db Executor, logger *slog.Logger, metrics OrphanMetrics) *Job {
	return &Job{
		db:      db,
		logger:  logger,
		metrics: metrics,
	}
}

// Run は親掲載が存在しない目撃報告を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	query := `DELETE FROM avistamientos a
WHERE NOT EXISTS (
	SELECT 1 FROM mascotas_perdidas m WHERE m.id = a.listing_id
)`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("孤児目撃報告の削除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("孤児目撃報告の削除に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.metrics != nil && deletedCount > 0 {
		j.metrics.RecordOrphansRemoved(int(deletedCount))
	}

	duration := time.Since(start)
	j.logger.Info("孤児目撃報告の削除ジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔でRunを繰り返し実行する。起動直後にも1回実行する。
// ctxのキャンセルで停止する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("孤児目撃報告の削除ジョブを開始します",
		slog.Duration("interval", interval),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("削除ジョブの実行に失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("孤児目撃報告の削除ジョブを停止します")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("削除ジョブの実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
