package service

import (
	"context"

	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/capekei/safra-sub003/pkg/storage"
	"github.com/pkg/errors"
)

// ReviewLedger is the append-only log of review decisions, keyed by article.
// Records are never updated or deleted.
type ReviewLedger struct {
	store storage.ReviewStore
}

func NewReviewLedger(store storage.ReviewStore) *ReviewLedger {
	return &ReviewLedger{store: store}
}

// Append validates and stores r, returning it with its assigned ID.
func (l *ReviewLedger) Append(ctx context.Context, r models.ReviewRecord) (models.ReviewRecord, error) {
	if r.ArticleID <= 0 {
		return models.ReviewRecord{}, errors.Wrap(ErrValidation, "review article ID must be positive")
	}
	if r.ReviewerID <= 0 {
		return models.ReviewRecord{}, errors.Wrap(ErrValidation, "reviewer ID must be positive")
	}
	if !r.Decision.Valid() {
		return models.ReviewRecord{}, errors.Wrapf(ErrValidation, "unknown review decision %q", r.Decision)
	}
	if r.CreatedAt.IsZero() {
		return models.ReviewRecord{}, errors.Wrap(ErrValidation, "review record has no creation time")
	}
	id, err := l.store.AppendReview(ctx, r)
	if err != nil {
		return models.ReviewRecord{}, storageError(err, "append review for article %d", r.ArticleID)
	}
	r.ID = id
	return r, nil
}

// ListByArticle returns the article's history, oldest first.
func (l *ReviewLedger) ListByArticle(ctx context.Context, articleID int64) ([]models.ReviewRecord, error) {
	records, err := l.store.ListReviewsByArticle(ctx, articleID)
	if err != nil {
		return nil, storageError(err, "list reviews for article %d", articleID)
	}
	return records, nil
}
