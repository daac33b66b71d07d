package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/capekei/safra-sub003/internal/log"
	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/capekei/safra-sub003/pkg/service"
	"github.com/capekei/safra-sub003/pkg/storage"
	"github.com/stretchr/testify/assert"
)

// runStoreSuite checks the storage.Store contract against a backend.
// newStore must return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()
	base := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	at := func(minutes int) *time.Time {
		ts := base.Add(time.Duration(minutes) * time.Minute)
		return &ts
	}
	create := func(t *testing.T, store storage.Store, status models.ArticleStatus, submittedAt *time.Time) int64 {
		id, err := store.CreateArticle(ctx, models.Article{
			Title:       "Harbour reopens",
			AuthorID:    7,
			Status:      status,
			SubmittedAt: submittedAt,
			CreatedAt:   base,
			UpdatedAt:   base,
		})
		assert.NoError(t, err)
		assert.Greater(t, id, int64(0))
		return id
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		store := newStore(t)
		id := create(t, store, models.DraftArticleStatus, nil)

		a, err := store.GetArticle(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, id, a.ID)
		assert.Equal(t, "Harbour reopens", a.Title)
		assert.Equal(t, int64(7), a.AuthorID)
		assert.Equal(t, models.DraftArticleStatus, a.Status)
		assert.Nil(t, a.SubmittedAt)
		assert.Nil(t, a.PublishedAt)
		assert.True(t, base.Equal(a.CreatedAt))
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetArticle(ctx, 12345)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		store := newStore(t)
		id := create(t, store, models.ApprovedArticleStatus, at(1))

		err := store.UpdateArticleStatus(ctx, models.StatusChange{
			ArticleID:   id,
			From:        models.ApprovedArticleStatus,
			To:          models.PublishedArticleStatus,
			ChangedAt:   *at(9),
			PublishedAt: at(9),
		})
		assert.NoError(t, err)

		a, err := store.GetArticle(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, models.PublishedArticleStatus, a.Status)
		if assert.NotNil(t, a.PublishedAt) {
			assert.True(t, at(9).Equal(*a.PublishedAt))
		}
		// Untouched when the change carries no submission time.
		if assert.NotNil(t, a.SubmittedAt) {
			assert.True(t, at(1).Equal(*a.SubmittedAt))
		}
		assert.True(t, at(9).Equal(a.UpdatedAt))
	})

	t.Run("UpdateStatusConflict", func(t *testing.T) {
		store := newStore(t)
		id := create(t, store, models.RejectedArticleStatus, at(1))

		err := store.UpdateArticleStatus(ctx, models.StatusChange{
			ArticleID: id,
			From:      models.PendingReviewArticleStatus,
			To:        models.ApprovedArticleStatus,
			ChangedAt: *at(2),
		})
		assert.ErrorIs(t, err, storage.ErrStatusConflict)

		a, err := store.GetArticle(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, models.RejectedArticleStatus, a.Status)
	})

	t.Run("UpdateStatusMissing", func(t *testing.T) {
		store := newStore(t)
		err := store.UpdateArticleStatus(ctx, models.StatusChange{
			ArticleID: 999,
			From:      models.DraftArticleStatus,
			To:        models.PendingReviewArticleStatus,
			ChangedAt: base,
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListByStatus", func(t *testing.T) {
		store := newStore(t)
		third := create(t, store, models.PendingReviewArticleStatus, at(30))
		first := create(t, store, models.PendingReviewArticleStatus, at(10))
		second := create(t, store, models.PendingReviewArticleStatus, at(20))
		create(t, store, models.DraftArticleStatus, nil)
		create(t, store, models.ApprovedArticleStatus, at(5))

		all, err := store.ListArticlesByStatus(ctx, models.PendingReviewArticleStatus, 10)
		assert.NoError(t, err)
		ids := make([]int64, 0, len(all))
		for _, a := range all {
			ids = append(ids, a.ID)
		}
		assert.Equal(t, []int64{first, second, third}, ids)

		limited, err := store.ListArticlesByStatus(ctx, models.PendingReviewArticleStatus, 2)
		assert.NoError(t, err)
		if assert.Len(t, limited, 2) {
			assert.Equal(t, first, limited[0].ID)
			assert.Equal(t, second, limited[1].ID)
		}

		none, err := store.ListArticlesByStatus(ctx, models.NeedsChangesArticleStatus, 10)
		assert.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("CountByStatus", func(t *testing.T) {
		store := newStore(t)
		create(t, store, models.DraftArticleStatus, nil)
		create(t, store, models.DraftArticleStatus, nil)
		create(t, store, models.PendingReviewArticleStatus, at(1))
		create(t, store, models.RejectedArticleStatus, at(1))

		counts, err := store.CountArticlesByStatus(ctx)
		assert.NoError(t, err)
		assert.Equal(t, map[models.ArticleStatus]int64{
			models.DraftArticleStatus:         2,
			models.PendingReviewArticleStatus: 1,
			models.RejectedArticleStatus:      1,
		}, counts)
	})

	t.Run("Reviews", func(t *testing.T) {
		store := newStore(t)
		id := create(t, store, models.PendingReviewArticleStatus, at(0))
		other := create(t, store, models.PendingReviewArticleStatus, at(0))

		for _, r := range []models.ReviewRecord{
			{ArticleID: id, ReviewerID: 2, Decision: models.NeedsChangesReviewDecision, Comments: "sources?", CreatedAt: *at(20)},
			{ArticleID: other, ReviewerID: 3, Decision: models.RejectReviewDecision, CreatedAt: *at(15)},
			{ArticleID: id, ReviewerID: 2, Decision: models.ApproveReviewDecision, CreatedAt: *at(40)},
		} {
			_, err := store.AppendReview(ctx, r)
			assert.NoError(t, err)
		}

		reviews, err := store.ListReviewsByArticle(ctx, id)
		assert.NoError(t, err)
		if assert.Len(t, reviews, 2) {
			assert.Equal(t, models.NeedsChangesReviewDecision, reviews[0].Decision)
			assert.Equal(t, "sources?", reviews[0].Comments)
			assert.Equal(t, models.ApproveReviewDecision, reviews[1].Decision)
			assert.Empty(t, reviews[1].Comments)
			assert.Less(t, reviews[0].ID, reviews[1].ID)
		}

		none, err := store.ListReviewsByArticle(ctx, 424242)
		assert.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("AppendReviewUnknownArticle", func(t *testing.T) {
		store := newStore(t)
		_, err := store.AppendReview(ctx, models.ReviewRecord{ArticleID: 31337, ReviewerID: 1, Decision: models.ApproveReviewDecision, CreatedAt: base})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("RollbackDiscardsWrites", func(t *testing.T) {
		store := newStore(t)
		id := create(t, store, models.PendingReviewArticleStatus, at(0))

		tx, err := store.Begin(ctx)
		assert.NoError(t, err)
		_, err = tx.AppendReview(ctx, models.ReviewRecord{ArticleID: id, ReviewerID: 2, Decision: models.ApproveReviewDecision, CreatedAt: base})
		assert.NoError(t, err)
		assert.NoError(t, tx.UpdateArticleStatus(ctx, models.StatusChange{
			ArticleID: id,
			From:      models.PendingReviewArticleStatus,
			To:        models.ApprovedArticleStatus,
			ChangedAt: base,
		}))
		assert.NoError(t, tx.Rollback())

		a, err := store.GetArticle(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, models.PendingReviewArticleStatus, a.Status)
		reviews, err := store.ListReviewsByArticle(ctx, id)
		assert.NoError(t, err)
		assert.Empty(t, reviews)
	})

	t.Run("CommitOutsideTransaction", func(t *testing.T) {
		store := newStore(t)
		assert.Error(t, store.Commit())
		assert.Error(t, store.Rollback())
	})

	t.Run("ConcurrentReviews", func(t *testing.T) {
		store := newStore(t)
		svc := service.NewWorkflowService(store, log.GetLogger())
		id := create(t, store, models.PendingReviewArticleStatus, at(0))

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i, d := range []models.ReviewDecision{models.ApproveReviewDecision, models.NeedsChangesReviewDecision} {
			wg.Add(1)
			go func(i int, d models.ReviewDecision) {
				defer wg.Done()
				_, errs[i] = svc.ReviewArticle(ctx, id, int64(i+1), d, "")
			}(i, d)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, service.ErrInvalidTransition)
		}
		assert.Equal(t, 1, succeeded)

		reviews, err := store.ListReviewsByArticle(ctx, id)
		assert.NoError(t, err)
		assert.Len(t, reviews, 1)
	})
}
