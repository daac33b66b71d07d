package storage

import (
	"context"

	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a requested article does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict is returned by UpdateArticleStatus when the stored
	// status no longer matches the expected "from" status.
	ErrStatusConflict = errors.New("article status changed concurrently")
)

// ArticleStore holds articles and their workflow state.
type ArticleStore interface {
	// CreateArticle inserts an article and returns its ID. It stands in for the
	// authoring flow, which owns article creation.
	CreateArticle(ctx context.Context, a models.Article) (int64, error)
	// GetArticle reads one article. Inside a transaction the row is locked
	// where the backend supports it.
	GetArticle(ctx context.Context, id int64) (models.Article, error)
	// UpdateArticleStatus applies change only if the stored status equals
	// change.From, otherwise it returns ErrStatusConflict.
	UpdateArticleStatus(ctx context.Context, change models.StatusChange) error
	// ListArticlesByStatus returns up to limit articles with the given status,
	// oldest submission first.
	ListArticlesByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]models.Article, error)
	CountArticlesByStatus(ctx context.Context) (map[models.ArticleStatus]int64, error)
}

// ReviewStore is the append-only review ledger. It has no update or delete.
type ReviewStore interface {
	AppendReview(ctx context.Context, r models.ReviewRecord) (int64, error)
	// ListReviewsByArticle returns the article's records ordered by created_at, then id.
	ListReviewsByArticle(ctx context.Context, articleID int64) ([]models.ReviewRecord, error)
}

// Store defines the storage operations for newsdesk.
type Store interface {
	ArticleStore
	ReviewStore

	// Begin starts a transaction and returns a Store bound to it.
	Begin(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error
	Close() error
}
