package service_test

import (
	"context"
	"testing"

	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/capekei/safra-sub003/pkg/service"
	"github.com/capekei/safra-sub003/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func TestReviewLedger(t *testing.T) {
	ctx := context.Background()

	newLedger := func(t *testing.T) (*service.ReviewLedger, int64) {
		store := storage.NewMemoryStore()
		id, err := store.CreateArticle(ctx, models.Article{Title: "Ledger", AuthorID: 1, Status: models.PendingReviewArticleStatus})
		assert.NoError(t, err)
		return service.NewReviewLedger(store), id
	}

	t.Run("AppendAssignsIDs", func(t *testing.T) {
		ledger, articleID := newLedger(t)
		first, err := ledger.Append(ctx, models.ReviewRecord{
			ArticleID:  articleID,
			ReviewerID: 2,
			Decision:   models.NeedsChangesReviewDecision,
			Comments:   "tighten the headline",
			CreatedAt:  epoch,
		})
		assert.NoError(t, err)
		second, err := ledger.Append(ctx, models.ReviewRecord{
			ArticleID:  articleID,
			ReviewerID: 2,
			Decision:   models.ApproveReviewDecision,
			CreatedAt:  epoch,
		})
		assert.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)

		// Equal timestamps fall back to insertion order.
		records, err := ledger.ListByArticle(ctx, articleID)
		assert.NoError(t, err)
		if assert.Len(t, records, 2) {
			assert.Equal(t, first, records[0])
			assert.Equal(t, second, records[1])
		}
	})

	t.Run("RejectsMalformedRecords", func(t *testing.T) {
		ledger, articleID := newLedger(t)
		for name, r := range map[string]models.ReviewRecord{
			"NoArticle":   {ReviewerID: 2, Decision: models.ApproveReviewDecision, CreatedAt: epoch},
			"NoReviewer":  {ArticleID: articleID, Decision: models.ApproveReviewDecision, CreatedAt: epoch},
			"BadDecision": {ArticleID: articleID, ReviewerID: 2, Decision: "publish", CreatedAt: epoch},
			"NoTimestamp": {ArticleID: articleID, ReviewerID: 2, Decision: models.RejectReviewDecision},
		} {
			_, err := ledger.Append(ctx, r)
			assert.ErrorIs(t, err, service.ErrValidation, name)
		}

		records, err := ledger.ListByArticle(ctx, articleID)
		assert.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("UnknownArticleIsStorageFailure", func(t *testing.T) {
		ledger, _ := newLedger(t)
		_, err := ledger.Append(ctx, models.ReviewRecord{ArticleID: 99, ReviewerID: 2, Decision: models.ApproveReviewDecision, CreatedAt: epoch})
		assert.ErrorIs(t, err, service.ErrStorage)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
