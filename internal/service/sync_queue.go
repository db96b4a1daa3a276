package service

import (
	"context"
	"strconv"
	"time"

	"campus_edu_backend/internal/config"
	"campus_edu_backend/internal/util"
	"campus_edu_backend/pkg/logger"
	"campus_edu_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	syncQueueKey   = "score_sync:queue"
	syncRetriesKey = "score_sync:retries"
)

// RedisSyncQueue 基于 Redis 有序集合的延迟队列。
// score 是任务可执行的时间戳，重试把任务按间隔往后推。
type RedisSyncQueue struct {
	rdb *redis.Client
}

func NewRedisSyncQueue(rdb *redis.Client) *RedisSyncQueue {
	return &RedisSyncQueue{rdb: rdb}
}

func (q *RedisSyncQueue) Enqueue(attemptID uint) error {
	return q.enqueueAt(context.Background(), attemptID, time.Now())
}

func (q *RedisSyncQueue) enqueueAt(ctx context.Context, attemptID uint, at time.Time) error {
	member := strconv.FormatUint(uint64(attemptID), 10)
	return q.rdb.ZAdd(ctx, syncQueueKey, &redis.Z{
		Score:  float64(at.Unix()),
		Member: member,
	}).Err()
}

// due 取出所有到期任务
func (q *RedisSyncQueue) due(ctx context.Context, now time.Time) ([]uint, error) {
	members, err := q.rdb.ZRangeByScore(ctx, syncQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			q.remove(ctx, m)
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func (q *RedisSyncQueue) remove(ctx context.Context, member string) {
	q.rdb.ZRem(ctx, syncQueueKey, member)
	q.rdb.HDel(ctx, syncRetriesKey, member)
}

func (q *RedisSyncQueue) bumpRetries(ctx context.Context, member string) (int, error) {
	n, err := q.rdb.HIncrBy(ctx, syncRetriesKey, member, 1).Result()
	return int(n), err
}

// SyncWorker 后台消费同步队列。
// 暂态失败线性退避重试，超过上限丢弃并记日志，不阻塞后续任务。
type SyncWorker struct {
	Queue   *RedisSyncQueue
	Syncer  *ScoreSyncService
	Grading config.GradingConfig
}

func NewSyncWorker(queue *RedisSyncQueue, syncer *ScoreSyncService, grading config.GradingConfig) *SyncWorker {
	return &SyncWorker{Queue: queue, Syncer: syncer, Grading: grading}
}

func (w *SyncWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Grading.SyncPollInterval)
	defer ticker.Stop()

	logger.Log.Info("score sync worker started",
		zap.Duration("pollInterval", w.Grading.SyncPollInterval),
		zap.Int("maxRetries", w.Grading.SyncMaxRetries))

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("score sync worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *SyncWorker) drain(ctx context.Context) {
	now := time.Now()
	ids, err := w.Queue.due(ctx, now)
	if err != nil {
		logger.Log.Error("failed to poll score sync queue", zap.Error(err))
		return
	}
	for _, attemptID := range ids {
		w.process(ctx, attemptID, now)
	}
}

func (w *SyncWorker) process(ctx context.Context, attemptID uint, now time.Time) {
	member := strconv.FormatUint(uint64(attemptID), 10)

	err := w.Syncer.SyncAttemptScore(ctx, attemptID)
	if err == nil {
		w.Queue.remove(ctx, member)
		monitoring.ScoreSyncRuns.WithLabelValues("ok").Inc()
		return
	}

	// 策略禁止补录属于终态，重试不会改变结果
	if util.IsCode(err, util.CodeInvalidState) {
		w.Queue.remove(ctx, member)
		monitoring.ScoreSyncRuns.WithLabelValues("dropped").Inc()
		logger.Log.Warn("score sync rejected by policy, dropping",
			zap.Uint("attemptId", attemptID), zap.Error(err))
		return
	}

	retries, rerr := w.Queue.bumpRetries(ctx, member)
	if rerr != nil {
		logger.Log.Error("failed to record sync retry count",
			zap.Uint("attemptId", attemptID), zap.Error(rerr))
		return
	}
	if retries > w.Grading.SyncMaxRetries {
		w.Queue.remove(ctx, member)
		monitoring.ScoreSyncRuns.WithLabelValues("dropped").Inc()
		logger.Log.Error("score sync exhausted retries, dropping",
			zap.Uint("attemptId", attemptID),
			zap.Int("retries", retries),
			zap.Error(err))
		return
	}

	// 线性退避：第 n 次重试推后 n 个间隔
	delay := time.Duration(retries) * w.Grading.SyncRetryInterval
	if qerr := w.Queue.enqueueAt(ctx, attemptID, now.Add(delay)); qerr != nil {
		logger.Log.Error("failed to reschedule score sync",
			zap.Uint("attemptId", attemptID), zap.Error(qerr))
		return
	}
	monitoring.ScoreSyncRuns.WithLabelValues("retry").Inc()
	logger.Log.Warn("score sync failed, will retry",
		zap.Uint("attemptId", attemptID),
		zap.Int("retries", retries),
		zap.Duration("delay", delay),
		zap.Error(err))
}
