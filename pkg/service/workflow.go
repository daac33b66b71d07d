package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/capekei/safra-sub003/pkg/storage"
	"github.com/pkg/errors"
)

const (
	DefaultMaxCommentLength = 5000
	MaxTitleLength          = 300
)

// Logger defines the logging interface for WorkflowService
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Option configures a WorkflowService.
type Option func(*WorkflowService)

// WithClock replaces time.Now as the source of transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *WorkflowService) {
		s.now = now
	}
}

// WithMaxCommentLength bounds review comments, counted in runes.
func WithMaxCommentLength(n int) Option {
	return func(s *WorkflowService) {
		if n > 0 {
			s.maxCommentLength = n
		}
	}
}

type submitConfig struct {
	override bool
}

// SubmitOption adjusts a single SubmitForReview call.
type SubmitOption func(*submitConfig)

// WithOwnershipOverride lets a privileged caller submit an article it does not own.
func WithOwnershipOverride() SubmitOption {
	return func(c *submitConfig) {
		c.override = true
	}
}

// WorkflowService runs the editorial state machine:
//
//	draft, needs_changes -> pending_review      (SubmitForReview)
//	pending_review -> approved, rejected, needs_changes (ReviewArticle)
//	approved -> published                       (PublishArticle)
//
// It is the only writer of article status and of the review ledger. Each
// transition reads and writes inside one store transaction, and the status
// write is a compare-and-set, so a caller that loses a race gets
// ErrInvalidTransition and nothing it wrote is kept.
type WorkflowService struct {
	store            storage.Store
	logger           Logger
	now              func() time.Time
	maxCommentLength int
}

func NewWorkflowService(store storage.Store, logger Logger, opts ...Option) *WorkflowService {
	s := &WorkflowService{
		store:            store,
		logger:           logger,
		now:              time.Now,
		maxCommentLength: DefaultMaxCommentLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDraft stores a new article in draft status. It stands in for the
// authoring flow, which normally creates articles.
func (s *WorkflowService) CreateDraft(ctx context.Context, title string, authorID int64) (models.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Article{}, errors.Wrap(ErrValidation, "article title cannot be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return models.Article{}, errors.Wrapf(ErrValidation, "article title too long (max %d characters)", MaxTitleLength)
	}
	if err := validateID("author", authorID); err != nil {
		return models.Article{}, err
	}
	now := s.now()
	a := models.Article{
		Title:     title,
		AuthorID:  authorID,
		Status:    models.DraftArticleStatus,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.inTx(ctx, "create draft", func(tx storage.Store) error {
		id, err := tx.CreateArticle(ctx, a)
		if err != nil {
			return storageError(err, "create article")
		}
		a.ID = id
		return nil
	})
	if err != nil {
		s.logFailure("create draft for author", authorID, err)
		return models.Article{}, err
	}
	s.logger.Infof("Created draft article %d for author %d", a.ID, authorID)
	return a, nil
}

// SubmitForReview moves an article from draft or needs_changes to
// pending_review. Re-submitting a pending article is an invalid transition.
func (s *WorkflowService) SubmitForReview(ctx context.Context, articleID, authorID int64, opts ...SubmitOption) (models.Article, error) {
	if err := validateID("article", articleID); err != nil {
		return models.Article{}, err
	}
	if err := validateID("author", authorID); err != nil {
		return models.Article{}, err
	}
	var cfg submitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	now := s.now()
	var updated models.Article
	err := s.inTx(ctx, "submit", func(tx storage.Store) error {
		a, err := loadArticle(ctx, tx, articleID)
		if err != nil {
			return err
		}
		if !cfg.override && a.AuthorID != authorID {
			return errors.Wrapf(ErrUnauthorized, "user %d does not own article %d", authorID, articleID)
		}
		if a.Status != models.DraftArticleStatus && a.Status != models.NeedsChangesArticleStatus {
			return invalidTransition(a, "submit")
		}
		change := models.StatusChange{
			ArticleID:   articleID,
			From:        a.Status,
			To:          models.PendingReviewArticleStatus,
			ChangedAt:   now,
			SubmittedAt: &now,
		}
		if err := applyChange(ctx, tx, change); err != nil {
			return err
		}
		a.Status = change.To
		a.SubmittedAt = &now
		a.UpdatedAt = now
		updated = a
		return nil
	})
	if err != nil {
		s.logFailure("submit article", articleID, err)
		return models.Article{}, err
	}
	s.logger.Infof("Article %d submitted for review by user %d", articleID, authorID)
	return updated, nil
}

// ReviewArticle records a decision on a pending article and moves it to the
// decision's target status. The ledger append and the status update commit
// together or not at all.
func (s *WorkflowService) ReviewArticle(ctx context.Context, articleID, reviewerID int64, decision models.ReviewDecision, comments string) (models.ReviewRecord, error) {
	if err := validateID("article", articleID); err != nil {
		return models.ReviewRecord{}, err
	}
	if err := validateID("reviewer", reviewerID); err != nil {
		return models.ReviewRecord{}, err
	}
	target, ok := decision.TargetStatus()
	if !ok {
		return models.ReviewRecord{}, errors.Wrapf(ErrValidation, "unknown review decision %q", decision)
	}
	comments = strings.TrimSpace(comments)
	if utf8.RuneCountInString(comments) > s.maxCommentLength {
		return models.ReviewRecord{}, errors.Wrapf(ErrValidation, "review comments too long (max %d characters)", s.maxCommentLength)
	}

	now := s.now()
	var record models.ReviewRecord
	err := s.inTx(ctx, "review", func(tx storage.Store) error {
		a, err := loadArticle(ctx, tx, articleID)
		if err != nil {
			return err
		}
		if a.Status != models.PendingReviewArticleStatus {
			return invalidTransition(a, "review")
		}
		record, err = NewReviewLedger(tx).Append(ctx, models.ReviewRecord{
			ArticleID:  articleID,
			ReviewerID: reviewerID,
			Decision:   decision,
			Comments:   comments,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		return applyChange(ctx, tx, models.StatusChange{
			ArticleID: articleID,
			From:      models.PendingReviewArticleStatus,
			To:        target,
			ChangedAt: now,
		})
	})
	if err != nil {
		s.logFailure("review article", articleID, err)
		return models.ReviewRecord{}, err
	}
	s.logger.Infof("Article %d reviewed by user %d: %s", articleID, reviewerID, decision)
	return record, nil
}

// PublishArticle moves an approved article to published and stamps
// publishedAt. The timestamp is taken once per call.
func (s *WorkflowService) PublishArticle(ctx context.Context, articleID, publisherID int64) (models.Article, error) {
	if err := validateID("article", articleID); err != nil {
		return models.Article{}, err
	}
	if err := validateID("publisher", publisherID); err != nil {
		return models.Article{}, err
	}

	now := s.now()
	var updated models.Article
	err := s.inTx(ctx, "publish", func(tx storage.Store) error {
		a, err := loadArticle(ctx, tx, articleID)
		if err != nil {
			return err
		}
		if a.Status != models.ApprovedArticleStatus {
			return invalidTransition(a, "publish")
		}
		change := models.StatusChange{
			ArticleID:   articleID,
			From:        models.ApprovedArticleStatus,
			To:          models.PublishedArticleStatus,
			ChangedAt:   now,
			PublishedAt: &now,
		}
		if err := applyChange(ctx, tx, change); err != nil {
			return err
		}
		a.Status = change.To
		a.PublishedAt = &now
		a.UpdatedAt = now
		updated = a
		return nil
	})
	if err != nil {
		s.logFailure("publish article", articleID, err)
		return models.Article{}, err
	}
	s.logger.Infof("Article %d published by user %d", articleID, publisherID)
	return updated, nil
}

// GetPendingReviews returns the review queue, oldest submission first.
func (s *WorkflowService) GetPendingReviews(ctx context.Context, limit int) ([]models.Article, error) {
	if limit <= 0 {
		return nil, errors.Wrap(ErrValidation, "limit must be positive")
	}
	articles, err := s.store.ListArticlesByStatus(ctx, models.PendingReviewArticleStatus, limit)
	if err != nil {
		s.logger.Errorf("Failed to list pending reviews: %v", err)
		return nil, storageError(err, "list pending reviews")
	}
	return articles, nil
}

// GetArticleReviews returns the full review history of an article, oldest first.
func (s *WorkflowService) GetArticleReviews(ctx context.Context, articleID int64) ([]models.ReviewRecord, error) {
	if err := validateID("article", articleID); err != nil {
		return nil, err
	}
	if _, err := loadArticle(ctx, s.store, articleID); err != nil {
		s.logFailure("list reviews of article", articleID, err)
		return nil, err
	}
	records, err := NewReviewLedger(s.store).ListByArticle(ctx, articleID)
	if err != nil {
		s.logger.Errorf("Failed to list reviews of article %d: %v", articleID, err)
		return nil, err
	}
	return records, nil
}

func (s *WorkflowService) GetArticle(ctx context.Context, articleID int64) (models.Article, error) {
	if err := validateID("article", articleID); err != nil {
		return models.Article{}, err
	}
	a, err := loadArticle(ctx, s.store, articleID)
	if err != nil {
		s.logFailure("get article", articleID, err)
		return models.Article{}, err
	}
	return a, nil
}

// GetWorkflowStats counts articles per status.
func (s *WorkflowService) GetWorkflowStats(ctx context.Context) (models.WorkflowStats, error) {
	counts, err := s.store.CountArticlesByStatus(ctx)
	if err != nil {
		s.logger.Errorf("Failed to count articles by status: %v", err)
		return models.WorkflowStats{}, storageError(err, "count articles by status")
	}
	return models.NewWorkflowStats(counts), nil
}

// inTx runs fn in a store transaction, committing when fn and the commit succeed.
func (s *WorkflowService) inTx(ctx context.Context, op string, fn func(tx storage.Store) error) (err error) {
	txStore, err := s.store.Begin(ctx)
	if err != nil {
		return storageError(err, "begin %s", op)
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit %s: %v", op, commitErr)
			err = storageError(commitErr, "commit %s", op)
		}
	}()
	return fn(txStore)
}

// logFailure keeps caller mistakes out of the error log.
func (s *WorkflowService) logFailure(action string, id int64, err error) {
	switch {
	case errors.Is(err, ErrStorage):
		s.logger.Errorf("Failed to %s %d: %v", action, id, err)
		return
	case errors.Is(err, ErrUnauthorized):
		s.logger.Warnf("Refused to %s %d: %v", action, id, err)
		return
	}
	s.logger.Infof("Refused to %s %d: %v", action, id, err)
}

func loadArticle(ctx context.Context, store storage.ArticleStore, id int64) (models.Article, error) {
	a, err := store.GetArticle(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Article{}, errors.Wrapf(ErrNotFound, "article %d", id)
	}
	if err != nil {
		return models.Article{}, storageError(err, "get article %d", id)
	}
	return a, nil
}

func applyChange(ctx context.Context, store storage.ArticleStore, change models.StatusChange) error {
	err := store.UpdateArticleStatus(ctx, change)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrStatusConflict):
		return errors.Wrapf(ErrInvalidTransition, "article %d is no longer %s", change.ArticleID, change.From)
	case errors.Is(err, storage.ErrNotFound):
		return errors.Wrapf(ErrNotFound, "article %d", change.ArticleID)
	}
	return storageError(err, "update status of article %d", change.ArticleID)
}

func invalidTransition(a models.Article, action string) error {
	return errors.Wrapf(ErrInvalidTransition, "cannot %s article %d in status %s", action, a.ID, a.Status)
}

func validateID(kind string, id int64) error {
	if id <= 0 {
		return errors.Wrapf(ErrValidation, "%s ID must be positive", kind)
	}
	return nil
}
