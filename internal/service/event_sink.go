package service

import (
	"context"
	"encoding/json"
	"time"

	"campus_edu_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const eventChannel = "campus_edu:events"

// RedisEventSink 把领域事件发布到 Redis 频道供通知侧消费。
// 发布失败只记日志，绝不影响触发事件的业务操作。
type RedisEventSink struct {
	rdb *redis.Client
}

func NewRedisEventSink(rdb *redis.Client) *RedisEventSink {
	return &RedisEventSink{rdb: rdb}
}

type domainEvent struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

func (s *RedisEventSink) publish(eventType string, payload any) {
	data, err := json.Marshal(domainEvent{
		Type:       eventType,
		OccurredAt: time.Now(),
		Payload:    payload,
	})
	if err != nil {
		logger.Log.Error("failed to marshal domain event",
			zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.rdb.Publish(context.Background(), eventChannel, data).Err(); err != nil {
		logger.Log.Error("failed to publish domain event",
			zap.String("type", eventType), zap.Error(err))
	}
}

func (s *RedisEventSink) QuizPublished(quizID, classSectionID uint) {
	s.publish("quiz.published", map[string]uint{
		"quizId":         quizID,
		"classSectionId": classSectionID,
	})
}

func (s *RedisEventSink) GradebookDecided(gradebookID uint, approved bool) {
	s.publish("gradebook.decided", map[string]any{
		"gradebookId": gradebookID,
		"approved":    approved,
	})
}
