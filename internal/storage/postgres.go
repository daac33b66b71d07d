package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/capekei/safra-sub003/pkg/storage"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// pgForeignKeyViolation is the SQLSTATE for a missing referenced row.
const pgForeignKeyViolation = "23503"

const articleColumns = "id, title, author_id, status, submitted_at, published_at, created_at, updated_at"

// DBInterface is satisfied by both *sqlx.DB and *sqlx.Tx.
type DBInterface interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db  DBInterface
	psq sq.StatementBuilderType
}

var _ storage.Store = (*PostgresStore)(nil)

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB wraps an already opened connection pool.
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, psq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// SetMaxOpenConns caps the connection pool; n <= 0 leaves it unlimited.
func (s *PostgresStore) SetMaxOpenConns(n int) {
	if db, ok := s.db.(*sqlx.DB); ok && n > 0 {
		db.SetMaxOpenConns(n)
	}
}

func (s *PostgresStore) Begin(ctx context.Context) (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx, psq: s.psq}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

func (s *PostgresStore) inTx() bool {
	_, ok := s.db.(*sqlx.Tx)
	return ok
}

// CreateArticle inserts an article and returns its ID
func (s *PostgresStore) CreateArticle(ctx context.Context, a models.Article) (int64, error) {
	if !a.Status.Valid() {
		a.Status = models.DraftArticleStatus
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	var id int64
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO articles (title, author_id, status, submitted_at, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.Title, a.AuthorID, a.Status, a.SubmittedAt, a.PublishedAt, a.CreatedAt, a.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create article: %w", err)
	}
	return id, nil
}

// GetArticle retrieves an article by ID. Inside a transaction the row stays
// locked until commit so concurrent transitions queue behind each other.
func (s *PostgresStore) GetArticle(ctx context.Context, id int64) (models.Article, error) {
	query := "SELECT " + articleColumns + " FROM articles WHERE id = $1"
	if s.inTx() {
		query += " FOR UPDATE"
	}
	var a models.Article
	err := s.db.GetContext(ctx, &a, query, id)
	if err == sql.ErrNoRows {
		return models.Article{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Article{}, fmt.Errorf("get article %d: %w", id, err)
	}
	return a, nil
}

// UpdateArticleStatus performs a compare-and-set on status. submitted_at and
// published_at keep their stored value unless the change carries a new one.
func (s *PostgresStore) UpdateArticleStatus(ctx context.Context, change models.StatusChange) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET status = $1,
		updated_at = $2,
		submitted_at = COALESCE($3, submitted_at),
		published_at = COALESCE($4, published_at)
		WHERE id = $5 AND status = $6`,
		change.To, change.ChangedAt, change.SubmittedAt, change.PublishedAt, change.ArticleID, change.From)
	if err != nil {
		return fmt.Errorf("update article %d status: %w", change.ArticleID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article %d status: %w", change.ArticleID, err)
	}
	if n == 1 {
		return nil
	}
	// Zero rows: either the article is gone or its status moved on.
	var exists bool
	if err := s.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM articles WHERE id = $1)", change.ArticleID); err != nil {
		return fmt.Errorf("check article %d: %w", change.ArticleID, err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrStatusConflict
}

// ListArticlesByStatus returns up to limit articles, oldest submission first.
func (s *PostgresStore) ListArticlesByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]models.Article, error) {
	q := s.psq.Select(articleColumns).
		From("articles").
		Where(sq.Eq{"status": status}).
		OrderBy("submitted_at ASC NULLS LAST", "id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build article list query: %w", err)
	}
	articles := []models.Article{}
	if err := s.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("list %s articles: %w", status, err)
	}
	return articles, nil
}

type statusCount struct {
	Status models.ArticleStatus `db:"status"`
	Count  int64                `db:"count"`
}

func (s *PostgresStore) CountArticlesByStatus(ctx context.Context) (map[models.ArticleStatus]int64, error) {
	query, args, err := s.psq.Select("status", "COUNT(*) AS count").
		From("articles").
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build status count query: %w", err)
	}
	var rows []statusCount
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count articles by status: %w", err)
	}
	counts := make(map[models.ArticleStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// AppendReview inserts a review record. The table rejects updates and deletes.
func (s *PostgresStore) AppendReview(ctx context.Context, r models.ReviewRecord) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO article_reviews (article_id, reviewer_id, decision, comments, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		r.ArticleID, r.ReviewerID, r.Decision, r.Comments, r.CreatedAt).Scan(&id)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
		return 0, errors.Wrapf(storage.ErrNotFound, "article %d", r.ArticleID)
	}
	if err != nil {
		return 0, fmt.Errorf("append review for article %d: %w", r.ArticleID, err)
	}
	return id, nil
}

func (s *PostgresStore) ListReviewsByArticle(ctx context.Context, articleID int64) ([]models.ReviewRecord, error) {
	query, args, err := s.psq.Select("id", "article_id", "reviewer_id", "decision", "comments", "created_at").
		From("article_reviews").
		Where(sq.Eq{"article_id": articleID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build review list query: %w", err)
	}
	reviews := []models.ReviewRecord{}
	if err := s.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, fmt.Errorf("list reviews for article %d: %w", articleID, err)
	}
	return reviews, nil
}
