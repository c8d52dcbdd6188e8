// Package cleanup はどのレコードからも参照されなくなった添付ファイル（孤児Blob）と
// 期限切れセッションを定期的に削除するジョブを提供する。
// コンテンツ更新時の添付ファイル削除はレコードからの参照を外すだけで、
// Blobの回収はこのジョブが猶予期間の経過後に行う。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jovenes/internal/storage"
)

// DefaultGracePeriod は孤児Blobを削除するまでの猶予期間のデフォルト値。
const DefaultGracePeriod = 7 * 24 * time.Hour

// BlobStore はジョブが使用するBlobストアの操作。
type BlobStore interface {
	List(ctx context.Context) ([]storage.BlobInfo, error)
	Delete(ctx context.Context, key string) error
}

// ReferenceLister は全レコードから参照されている保存名を返す。
type ReferenceLister interface {
	ListStoredNames(ctx context.Context) ([]string, error)
}

// SessionPurger は期限切れセッションを削除する。
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// OrphanRecorder は回収した孤児Blobの件数を記録する。
type OrphanRecorder interface {
	RecordOrphansReclaimed(count int)
}

// CleanupJob は孤児Blobと期限切れセッションの削除ジョブ。
// 冪等であり、何度実行しても結果は変わらない。
type CleanupJob struct {
	blobs       BlobStore
	refs        ReferenceLister
	sessions    SessionPurger
	recorder    OrphanRecorder
	logger      *slog.Logger
	GracePeriod time.Duration // 最終更新からこの期間を経過した孤児Blobのみ削除する
	now         func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// sessionsとrecorderはnilでもよい。
func NewCleanupJob(
	blobs BlobStore,
	refs ReferenceLister,
	sessions SessionPurger,
	recorder OrphanRecorder,
	logger *slog.Logger,
) *CleanupJob {
	return &CleanupJob{
		blobs:       blobs,
		refs:        refs,
		sessions:    sessions,
		recorder:    recorder,
		logger:      logger,
		GracePeriod: DefaultGracePeriod,
		now:         time.Now,
	}
}

// Run は孤児Blobの回収と期限切れセッションの削除を1回実行する。
// 一方が失敗してももう一方は実行し、エラーはまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	reclaimed, orphanErr := j.ReclaimOrphans(ctx)
	if orphanErr != nil {
		j.logger.Error("孤児ファイルの回収に失敗しました",
			slog.String("error", orphanErr.Error()),
		)
	}

	var purged int64
	var sessionErr error
	if j.sessions != nil {
		purged, sessionErr = j.sessions.PurgeExpiredSessions(ctx)
		if sessionErr != nil {
			j.logger.Error("期限切れセッションの削除に失敗しました",
				slog.String("error", sessionErr.Error()),
			)
		}
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int("orphans_reclaimed", reclaimed),
		slog.Int64("sessions_purged", purged),
		slog.Duration("grace_period", j.GracePeriod),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)

	return errors.Join(orphanErr, sessionErr)
}

// ReclaimOrphans はどのレコードからも参照されず、猶予期間を過ぎたBlobを削除する。
// 削除した件数を返す。個々の削除失敗はログに残して次回の実行に回す。
//
// Blobの一覧を参照の一覧より先に取得する。一覧取得後に保存された新しいBlobは
// 対象にならず、一覧取得時点で未参照の新しいBlobは猶予期間により保護される。
func (j *CleanupJob) ReclaimOrphans(ctx context.Context) (int, error) {
	blobs, err := j.blobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list blobs: %w", err)
	}
	if len(blobs) == 0 {
		return 0, nil
	}

	names, err := j.refs.ListStoredNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list referenced names: %w", err)
	}
	referenced := make(map[string]struct{}, len(names))
	for _, name := range names {
		referenced[name] = struct{}{}
	}

	cutoff := j.now().Add(-j.GracePeriod)
	reclaimed := 0
	for _, blob := range blobs {
		if err := ctx.Err(); err != nil {
			return reclaimed, err
		}
		if _, ok := referenced[blob.Key]; ok {
			continue
		}
		if blob.Modified.After(cutoff) {
			continue
		}

		if err := j.blobs.Delete(ctx, blob.Key); err != nil {
			j.logger.Warn("孤児ファイルの削除に失敗しました",
				slog.String("stored_name", blob.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		j.logger.Info("孤児ファイルを削除しました",
			slog.String("stored_name", blob.Key),
			slog.Time("modified", blob.Modified),
		)
		reclaimed++
	}

	if j.recorder != nil {
		j.recorder.RecordOrphansReclaimed(reclaimed)
	}
	return reclaimed, nil
}

// Start は起動直後に1回実行し、その後はintervalごとに実行する。
// コンテキストがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("grace_period", j.GracePeriod),
	)

	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
