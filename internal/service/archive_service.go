package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"campus_edu_backend/internal/config"
	"campus_edu_backend/internal/model"
	"campus_edu_backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ArchiveService 审批通过后把成绩册快照以 CSV 形式归档到 MinIO。
// 纯旁路功能，任何失败只记日志。
type ArchiveService struct {
	client *minio.Client
	bucket string
	books  GradebookStore
}

func NewArchiveService(cfg config.ArchiveConfig, books GradebookStore) (*ArchiveService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &ArchiveService{client: client, bucket: cfg.Bucket, books: books}, nil
}

func (s *ArchiveService) ArchiveGradebook(ctx context.Context, classSectionID uint) {
	book, err := s.books.FindBySection(classSectionID)
	if err != nil {
		logger.Log.Error("archive: gradebook lookup failed",
			zap.Uint("classSectionId", classSectionID), zap.Error(err))
		return
	}
	items, err := s.books.GetItems(book.ID)
	if err != nil {
		logger.Log.Error("archive: failed to load grade items",
			zap.Uint("gradebookId", book.ID), zap.Error(err))
		return
	}
	entries, err := s.books.GetEntries(book.ID)
	if err != nil {
		logger.Log.Error("archive: failed to load grade entries",
			zap.Uint("gradebookId", book.ID), zap.Error(err))
		return
	}

	buf, err := renderSnapshotCSV(items, entries)
	if err != nil {
		logger.Log.Error("archive: failed to render snapshot", zap.Error(err))
		return
	}

	objectName := fmt.Sprintf("gradebooks/%d/%s-%s.csv",
		classSectionID, time.Now().Format("20060102T150405"), uuid.New().String())
	_, err = s.client.PutObject(ctx, s.bucket, objectName, buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		logger.Log.Error("archive: upload failed",
			zap.String("object", objectName), zap.Error(err))
		return
	}
	logger.Log.Info("gradebook snapshot archived",
		zap.Uint("classSectionId", classSectionID),
		zap.String("object", objectName))
}

// renderSnapshotCSV 每行一格：enrollment_id, item_id, item_name, score, max_score, updated_at
func renderSnapshotCSV(items []model.GradeItem, entries []model.GradeEntry) (*bytes.Buffer, error) {
	itemByID := make(map[uint]model.GradeItem, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"enrollment_id", "grade_item_id", "grade_item", "score", "max_score", "updated_at"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		item := itemByID[e.GradeItemID]
		score := ""
		if e.Score != nil {
			score = strconv.FormatFloat(*e.Score, 'f', 2, 64)
		}
		row := []string{
			strconv.FormatUint(uint64(e.EnrollmentID), 10),
			strconv.FormatUint(uint64(e.GradeItemID), 10),
			item.Name,
			score,
			strconv.FormatFloat(item.MaxScore, 'f', 2, 64),
			e.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf, w.Error()
}
