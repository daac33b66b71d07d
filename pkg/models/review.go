package models

import "time"

type ReviewDecision string

const (
	ApproveReviewDecision      ReviewDecision = "approve"
	RejectReviewDecision       ReviewDecision = "reject"
	NeedsChangesReviewDecision ReviewDecision = "needs_changes"
)

func (d ReviewDecision) Valid() bool {
	switch d {
	case ApproveReviewDecision, RejectReviewDecision, NeedsChangesReviewDecision:
		return true
	}
	return false
}

// TargetStatus is the article status a decision moves a pending article to.
func (d ReviewDecision) TargetStatus() (ArticleStatus, bool) {
	switch d {
	case ApproveReviewDecision:
		return ApprovedArticleStatus, true
	case RejectReviewDecision:
		return RejectedArticleStatus, true
	case NeedsChangesReviewDecision:
		return NeedsChangesArticleStatus, true
	}
	return "", false
}

// ReviewRecord is one entry of the append-only review ledger.
type ReviewRecord struct {
	ID         int64          `json:"id" yaml:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	ArticleID  int64          `json:"articleId" yaml:"articleId" db:"article_id" gorm:"not null;index:idx_article_reviews_article,priority:1"`
	ReviewerID int64          `json:"reviewerId" yaml:"reviewerId" db:"reviewer_id" gorm:"not null"`
	Decision   ReviewDecision `json:"decision" yaml:"decision" db:"decision" gorm:"type:varchar(32);not null"`
	Comments   string         `json:"comments,omitempty" yaml:"comments,omitempty" db:"comments" gorm:"type:text;not null;default:''"`
	CreatedAt  time.Time      `json:"createdAt" yaml:"createdAt" db:"created_at" gorm:"not null;index:idx_article_reviews_article,priority:2"`
}

func (ReviewRecord) TableName() string {
	return "article_reviews"
}
