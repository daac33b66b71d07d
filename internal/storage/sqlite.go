package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/capekei/safra-sub003/internal/log"
	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/capekei/safra-sub003/pkg/storage"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore is a gorm-backed Store for local runs and demos. SQLite has a
// single writer, so the pool is capped at one connection and transactions
// serialize on it.
type SQLiteStore struct {
	db   *gorm.DB
	inTx bool
}

var _ storage.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens dsn ("memory" or empty for a private in-memory
// database, otherwise a file path or sqlite URI) and migrates the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" || dsn == "memory" {
		dsn = "file::memory:"
	} else if dir := filepath.Dir(dsn); dir != "." && dir != "/" && !isURI(dsn) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create database directory %q", dir)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(log.GetLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite database %q", dsn)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sqlite connection pool")
	}
	sqlDB.SetMaxOpenConns(1)
	// Keep the only connection alive; an in-memory database dies with it.
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&models.Article{}, &models.ReviewRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "migrate sqlite schema")
	}
	return &SQLiteStore{db: db}, nil
}

func isURI(dsn string) bool {
	return len(dsn) >= 5 && dsn[:5] == "file:"
}

func (s *SQLiteStore) Begin(ctx context.Context) (storage.Store, error) {
	if s.inTx {
		return nil, fmt.Errorf("transaction already in progress")
	}
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &SQLiteStore{db: tx, inTx: true}, nil
}

func (s *SQLiteStore) Commit() error {
	if !s.inTx {
		return fmt.Errorf("cannot commit: not a transaction")
	}
	return s.db.Commit().Error
}

func (s *SQLiteStore) Rollback() error {
	if !s.inTx {
		return fmt.Errorf("cannot rollback: not a transaction")
	}
	return s.db.Rollback().Error
}

func (s *SQLiteStore) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) CreateArticle(ctx context.Context, a models.Article) (int64, error) {
	if !a.Status.Valid() {
		a.Status = models.DraftArticleStatus
	}
	a.ID = 0
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return 0, fmt.Errorf("create article: %w", err)
	}
	return a.ID, nil
}

func (s *SQLiteStore) GetArticle(ctx context.Context, id int64) (models.Article, error) {
	var a models.Article
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Article{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Article{}, fmt.Errorf("get article %d: %w", id, err)
	}
	return a, nil
}

// UpdateArticleStatus performs a compare-and-set on status.
func (s *SQLiteStore) UpdateArticleStatus(ctx context.Context, change models.StatusChange) error {
	updates := map[string]interface{}{
		"status":     change.To,
		"updated_at": change.ChangedAt,
	}
	if change.SubmittedAt != nil {
		updates["submitted_at"] = *change.SubmittedAt
	}
	if change.PublishedAt != nil {
		updates["published_at"] = *change.PublishedAt
	}
	res := s.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ? AND status = ?", change.ArticleID, change.From).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update article %d status: %w", change.ArticleID, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", change.ArticleID).Count(&count).Error; err != nil {
		return fmt.Errorf("check article %d: %w", change.ArticleID, err)
	}
	if count == 0 {
		return storage.ErrNotFound
	}
	return storage.ErrStatusConflict
}

func (s *SQLiteStore) ListArticlesByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]models.Article, error) {
	articles := []models.Article{}
	q := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("submitted_at IS NULL, submitted_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("list %s articles: %w", status, err)
	}
	return articles, nil
}

func (s *SQLiteStore) CountArticlesByStatus(ctx context.Context) (map[models.ArticleStatus]int64, error) {
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(&models.Article{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count articles by status: %w", err)
	}
	counts := make(map[models.ArticleStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *SQLiteStore) AppendReview(ctx context.Context, r models.ReviewRecord) (int64, error) {
	// AutoMigrate creates no foreign key, so the reference is checked here.
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", r.ArticleID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("check article %d: %w", r.ArticleID, err)
	}
	if count == 0 {
		return 0, errors.Wrapf(storage.ErrNotFound, "article %d", r.ArticleID)
	}
	r.ID = 0
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return 0, fmt.Errorf("append review for article %d: %w", r.ArticleID, err)
	}
	return r.ID, nil
}

func (s *SQLiteStore) ListReviewsByArticle(ctx context.Context, articleID int64) ([]models.ReviewRecord, error) {
	reviews := []models.ReviewRecord{}
	err := s.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("created_at ASC, id ASC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("list reviews for article %d: %w", articleID, err)
	}
	return reviews, nil
}
