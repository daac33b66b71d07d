package models

import "time"

type ArticleStatus string

const (
	DraftArticleStatus         ArticleStatus = "draft"
	PendingReviewArticleStatus ArticleStatus = "pending_review"
	ApprovedArticleStatus      ArticleStatus = "approved"
	NeedsChangesArticleStatus  ArticleStatus = "needs_changes"
	RejectedArticleStatus      ArticleStatus = "rejected"
	PublishedArticleStatus     ArticleStatus = "published"
)

// ArticleStatuses lists every status in workflow order.
var ArticleStatuses = []ArticleStatus{
	DraftArticleStatus,
	PendingReviewArticleStatus,
	ApprovedArticleStatus,
	NeedsChangesArticleStatus,
	RejectedArticleStatus,
	PublishedArticleStatus,
}

func (s ArticleStatus) Valid() bool {
	for _, known := range ArticleStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s ArticleStatus) Terminal() bool {
	return s == RejectedArticleStatus || s == PublishedArticleStatus
}

// Article is the editorial view of a news article: identity, ownership and workflow state.
type Article struct {
	ID          int64         `json:"id" yaml:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	Title       string        `json:"title" yaml:"title" db:"title" gorm:"not null"`
	AuthorID    int64         `json:"authorId" yaml:"authorId" db:"author_id" gorm:"not null;index"`
	Status      ArticleStatus `json:"status" yaml:"status" db:"status" gorm:"type:varchar(32);not null;default:'draft';index:idx_articles_status_submitted,priority:1"`
	SubmittedAt *time.Time    `json:"submittedAt,omitempty" yaml:"submittedAt,omitempty" db:"submitted_at" gorm:"index:idx_articles_status_submitted,priority:2"` // Last entry into pending_review
	PublishedAt *time.Time    `json:"publishedAt,omitempty" yaml:"publishedAt,omitempty" db:"published_at"`                                                       // Set once, on publish
	CreatedAt   time.Time     `json:"createdAt" yaml:"createdAt" db:"created_at" gorm:"not null"`
	UpdatedAt   time.Time     `json:"updatedAt" yaml:"updatedAt" db:"updated_at" gorm:"not null"`
}

func (Article) TableName() string {
	return "articles"
}

// StatusChange describes one compare-and-set write of an article's status.
// SubmittedAt and PublishedAt are only written when non-nil.
type StatusChange struct {
	ArticleID   int64
	From        ArticleStatus
	To          ArticleStatus
	ChangedAt   time.Time
	SubmittedAt *time.Time
	PublishedAt *time.Time
}

// WorkflowStats holds article counts per status.
type WorkflowStats struct {
	Draft         int64 `json:"draft" yaml:"draft"`
	PendingReview int64 `json:"pending_review" yaml:"pending_review"`
	Approved      int64 `json:"approved" yaml:"approved"`
	NeedsChanges  int64 `json:"needs_changes" yaml:"needs_changes"`
	Rejected      int64 `json:"rejected" yaml:"rejected"`
	Published     int64 `json:"published" yaml:"published"`
	Total         int64 `json:"total" yaml:"total"`
}

// NewWorkflowStats folds raw per-status counts into WorkflowStats.
// Unknown statuses count towards Total only.
func NewWorkflowStats(counts map[ArticleStatus]int64) WorkflowStats {
	var st WorkflowStats
	for status, n := range counts {
		switch status {
		case DraftArticleStatus:
			st.Draft = n
		case PendingReviewArticleStatus:
			st.PendingReview = n
		case ApprovedArticleStatus:
			st.Approved = n
		case NeedsChangesArticleStatus:
			st.NeedsChanges = n
		case RejectedArticleStatus:
			st.Rejected = n
		case PublishedArticleStatus:
			st.Published = n
		}
		st.Total += n
	}
	return st
}
