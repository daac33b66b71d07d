package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/capekei/safra-sub003/internal/config"
	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/capekei/safra-sub003/pkg/service"
	"github.com/gin-gonic/gin"
)

// Handler serves the admin editorial workflow endpoints.
type Handler struct {
	svc *service.WorkflowService
	cfg config.WorkflowConfig
}

func NewHandler(svc *service.WorkflowService, cfg config.WorkflowConfig) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

type submitRequest struct {
	// Raw so that both 42 and "42" are accepted and anything else maps to INVALID_ARTICLE_ID.
	ArticleID json.RawMessage `json:"articleId"`
}

type reviewRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comments string `json:"comments"`
}

func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Submit handles POST /submit.
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendJSONError(c, http.StatusBadRequest, CodeInvalidRequestBody, "Invalid request format.", err)
		return
	}
	articleID, ok := parseArticleID(string(req.ArticleID))
	if !ok {
		sendJSONError(c, http.StatusBadRequest, CodeInvalidArticleID, "articleId must be a positive integer.", nil)
		return
	}
	p := principalFrom(c)
	article, err := h.svc.SubmitForReview(c.Request.Context(), articleID, p.UserID, service.WithOwnershipOverride())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Article submitted for review.",
		"data": gin.H{
			"articleId": article.ID,
			"status":    article.Status,
		},
	})
}

// Review handles POST /:id/review.
func (h *Handler) Review(c *gin.Context) {
	articleID, ok := articleIDParam(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendJSONError(c, http.StatusBadRequest, CodeInvalidRequestBody, "Invalid request format: decision is required.", err)
		return
	}
	decision := models.ReviewDecision(strings.TrimSpace(req.Decision))
	if !decision.Valid() {
		sendJSONError(c, http.StatusBadRequest, CodeInvalidDecision, "decision must be one of approve, reject, needs_changes.", nil)
		return
	}
	p := principalFrom(c)
	record, err := h.svc.ReviewArticle(c.Request.Context(), articleID, p.UserID, decision, req.Comments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Review recorded.",
		"data": gin.H{
			"articleId":  record.ArticleID,
			"decision":   record.Decision,
			"reviewerId": record.ReviewerID,
		},
	})
}

// Pending handles GET /pending?limit=N.
func (h *Handler) Pending(c *gin.Context) {
	limit := h.cfg.PendingDefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			sendJSONError(c, http.StatusBadRequest, CodeInvalidLimit, "limit must be a positive integer.", nil)
			return
		}
		limit = n
	}
	if limit > h.cfg.PendingMaxLimit {
		limit = h.cfg.PendingMaxLimit
	}
	articles, err := h.svc.GetPendingReviews(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    articles,
		"count":   len(articles),
	})
}

// History handles GET /:id/history.
func (h *Handler) History(c *gin.Context) {
	articleID, ok := articleIDParam(c)
	if !ok {
		return
	}
	records, err := h.svc.GetArticleReviews(c.Request.Context(), articleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    records,
		"count":   len(records),
	})
}

// Publish handles POST /:id/publish.
func (h *Handler) Publish(c *gin.Context) {
	articleID, ok := articleIDParam(c)
	if !ok {
		return
	}
	p := principalFrom(c)
	article, err := h.svc.PublishArticle(c.Request.Context(), articleID, p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Article published.",
		"data": gin.H{
			"articleId":   article.ID,
			"status":      article.Status,
			"publisherId": p.UserID,
			"publishedAt": article.PublishedAt,
		},
	})
}

// Stats handles GET /stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.GetWorkflowStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// Get handles GET /:id.
func (h *Handler) Get(c *gin.Context) {
	articleID, ok := articleIDParam(c)
	if !ok {
		return
	}
	article, err := h.svc.GetArticle(c.Request.Context(), articleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    article,
	})
}

// articleIDParam parses the :id path segment, writing a 400 when it is not a positive integer.
func articleIDParam(c *gin.Context) (int64, bool) {
	id, ok := parseArticleID(c.Param("id"))
	if !ok {
		sendJSONError(c, http.StatusBadRequest, CodeInvalidArticleID, "Article ID must be a positive integer.", nil)
	}
	return id, ok
}

func parseArticleID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
