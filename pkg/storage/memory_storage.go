package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/pkg/errors"
)

// memoryData is the committed state shared by a memory store and its transactions.
type memoryData struct {
	articles      map[int64]models.Article
	reviews       []models.ReviewRecord
	nextArticleID int64
	nextReviewID  int64
}

// memoryRoot serializes transactions through sem; only one may be open at a
// time. mu guards data against root-level readers while a commit applies.
type memoryRoot struct {
	sem  chan struct{}
	mu   sync.RWMutex
	data memoryData
}

// memoryStore implements Store in memory. A zero tx means the store is the
// root handle; writes on the root run as single-statement transactions.
type memoryStore struct {
	root *memoryRoot
	tx   *memoryTx
}

// memoryTx stages writes until Commit.
type memoryTx struct {
	articles      map[int64]models.Article
	reviews       []models.ReviewRecord
	nextArticleID int64
	nextReviewID  int64
	done          bool
}

// NewMemoryStore returns an in-memory Store with serializable transactions.
func NewMemoryStore() Store {
	root := &memoryRoot{
		sem: make(chan struct{}, 1),
		data: memoryData{
			articles: make(map[int64]models.Article),
		},
	}
	return &memoryStore{root: root}
}

func (m *memoryStore) Begin(ctx context.Context) (Store, error) {
	if m.tx != nil {
		return nil, errors.New("transaction already in progress")
	}
	select {
	case m.root.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "begin transaction")
	}
	return &memoryStore{
		root: m.root,
		tx: &memoryTx{
			articles:      make(map[int64]models.Article),
			nextArticleID: m.root.data.nextArticleID,
			nextReviewID:  m.root.data.nextReviewID,
		},
	}, nil
}

func (m *memoryStore) Commit() error {
	if m.tx == nil {
		return errors.New("cannot commit: not a transaction")
	}
	if m.tx.done {
		return errors.New("transaction already committed")
	}
	m.root.mu.Lock()
	for id, a := range m.tx.articles {
		m.root.data.articles[id] = a
	}
	m.root.data.reviews = append(m.root.data.reviews, m.tx.reviews...)
	m.root.data.nextArticleID = m.tx.nextArticleID
	m.root.data.nextReviewID = m.tx.nextReviewID
	m.root.mu.Unlock()
	m.finish()
	return nil
}

func (m *memoryStore) Rollback() error {
	if m.tx == nil {
		return errors.New("cannot rollback: not a transaction")
	}
	if m.tx.done {
		return errors.New("cannot rollback committed transaction")
	}
	m.finish()
	return nil
}

func (m *memoryStore) finish() {
	m.tx.done = true
	<-m.root.sem
}

func (m *memoryStore) Close() error {
	return nil
}

// rlock guards committed data for root-level reads. Transactions hold sem,
// so no commit can run underneath them.
func (m *memoryStore) rlock() func() {
	if m.tx != nil {
		return func() {}
	}
	m.root.mu.RLock()
	return m.root.mu.RUnlock
}

// write runs fn inside the current transaction, or inside a fresh one when m is the root.
func (m *memoryStore) write(ctx context.Context, fn func(tx *memoryStore) error) (err error) {
	if m.tx != nil {
		if m.tx.done {
			return errors.New("transaction already committed")
		}
		return fn(m)
	}
	txStore, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	tx := txStore.(*memoryStore)
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// lookup reads an article through the transaction overlay, if any.
func (m *memoryStore) lookup(id int64) (models.Article, bool) {
	if m.tx != nil {
		if a, ok := m.tx.articles[id]; ok {
			return a, true
		}
	}
	a, ok := m.root.data.articles[id]
	return a, ok
}

func (m *memoryStore) CreateArticle(ctx context.Context, a models.Article) (int64, error) {
	var id int64
	err := m.write(ctx, func(tx *memoryStore) error {
		if !a.Status.Valid() {
			a.Status = models.DraftArticleStatus
		}
		now := time.Now()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = a.CreatedAt
		}
		tx.tx.nextArticleID++
		a.ID = tx.tx.nextArticleID
		tx.tx.articles[a.ID] = a
		id = a.ID
		return nil
	})
	return id, err
}

func (m *memoryStore) GetArticle(ctx context.Context, id int64) (models.Article, error) {
	defer m.rlock()()
	a, ok := m.lookup(id)
	if !ok {
		return models.Article{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) UpdateArticleStatus(ctx context.Context, change models.StatusChange) error {
	return m.write(ctx, func(tx *memoryStore) error {
		a, ok := tx.lookup(change.ArticleID)
		if !ok {
			return ErrNotFound
		}
		if a.Status != change.From {
			return ErrStatusConflict
		}
		a.Status = change.To
		a.UpdatedAt = change.ChangedAt
		if change.SubmittedAt != nil {
			t := *change.SubmittedAt
			a.SubmittedAt = &t
		}
		if change.PublishedAt != nil {
			t := *change.PublishedAt
			a.PublishedAt = &t
		}
		tx.tx.articles[a.ID] = a
		return nil
	})
}

func (m *memoryStore) ListArticlesByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]models.Article, error) {
	defer m.rlock()()
	articles := []models.Article{}
	seen := make(map[int64]bool)
	if m.tx != nil {
		for id, a := range m.tx.articles {
			seen[id] = true
			if a.Status == status {
				articles = append(articles, a)
			}
		}
	}
	for id, a := range m.root.data.articles {
		if !seen[id] && a.Status == status {
			articles = append(articles, a)
		}
	}
	sort.Slice(articles, func(i, j int) bool {
		ai, aj := articles[i], articles[j]
		switch {
		case ai.SubmittedAt == nil && aj.SubmittedAt == nil:
		case ai.SubmittedAt == nil:
			return false
		case aj.SubmittedAt == nil:
			return true
		case !ai.SubmittedAt.Equal(*aj.SubmittedAt):
			return ai.SubmittedAt.Before(*aj.SubmittedAt)
		}
		return ai.ID < aj.ID
	})
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func (m *memoryStore) CountArticlesByStatus(ctx context.Context) (map[models.ArticleStatus]int64, error) {
	defer m.rlock()()
	counts := make(map[models.ArticleStatus]int64)
	seen := make(map[int64]bool)
	if m.tx != nil {
		for id, a := range m.tx.articles {
			seen[id] = true
			counts[a.Status]++
		}
	}
	for id, a := range m.root.data.articles {
		if !seen[id] {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (m *memoryStore) AppendReview(ctx context.Context, r models.ReviewRecord) (int64, error) {
	var id int64
	err := m.write(ctx, func(tx *memoryStore) error {
		if _, ok := tx.lookup(r.ArticleID); !ok {
			return errors.Wrapf(ErrNotFound, "article %d", r.ArticleID)
		}
		tx.tx.nextReviewID++
		r.ID = tx.tx.nextReviewID
		tx.tx.reviews = append(tx.tx.reviews, r)
		id = r.ID
		return nil
	})
	return id, err
}

func (m *memoryStore) ListReviewsByArticle(ctx context.Context, articleID int64) ([]models.ReviewRecord, error) {
	defer m.rlock()()
	reviews := []models.ReviewRecord{}
	all := m.root.data.reviews
	if m.tx != nil {
		all = append(append([]models.ReviewRecord{}, all...), m.tx.reviews...)
	}
	for _, r := range all {
		if r.ArticleID == articleID {
			reviews = append(reviews, r)
		}
	}
	sort.SliceStable(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.Before(reviews[j].CreatedAt)
		}
		return reviews[i].ID < reviews[j].ID
	})
	return reviews, nil
}
