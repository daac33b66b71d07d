package service_test

import (
	"context"

	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/capekei/safra-sub003/pkg/storage"
	"github.com/stretchr/testify/mock"
)

// mockStore is a testify mock of storage.Store. Begin returns the mock
// itself, so calls made inside a transaction are recorded on it too.
type mockStore struct {
	mock.Mock
}

var _ storage.Store = (*mockStore)(nil)

func (m *mockStore) CreateArticle(ctx context.Context, a models.Article) (int64, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) GetArticle(ctx context.Context, id int64) (models.Article, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Article), args.Error(1)
}

func (m *mockStore) UpdateArticleStatus(ctx context.Context, change models.StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *mockStore) ListArticlesByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]models.Article, error) {
	args := m.Called(ctx, status, limit)
	articles, _ := args.Get(0).([]models.Article)
	return articles, args.Error(1)
}

func (m *mockStore) CountArticlesByStatus(ctx context.Context) (map[models.ArticleStatus]int64, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[models.ArticleStatus]int64)
	return counts, args.Error(1)
}

func (m *mockStore) AppendReview(ctx context.Context, r models.ReviewRecord) (int64, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListReviewsByArticle(ctx context.Context, articleID int64) ([]models.ReviewRecord, error) {
	args := m.Called(ctx, articleID)
	records, _ := args.Get(0).([]models.ReviewRecord)
	return records, args.Error(1)
}

func (m *mockStore) Begin(ctx context.Context) (storage.Store, error) {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *mockStore) Commit() error {
	return m.Called().Error(0)
}

func (m *mockStore) Rollback() error {
	return m.Called().Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
