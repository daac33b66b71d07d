package http

import (
	"context"
	"net/http"
	"time"

	"github.com/capekei/safra-sub003/internal/config"
	"github.com/capekei/safra-sub003/internal/log"
	"github.com/capekei/safra-sub003/pkg/service"
	"github.com/capekei/safra-sub003/pkg/storage"
	"github.com/gin-gonic/gin"
)

const (
	AdminPrefix     = "/api/admin/articles"
	shutdownTimeout = 10 * time.Second
)

// NewRouter builds the gin engine with the health check and the admin routes.
func NewRouter(svc *service.WorkflowService, cfg config.Config, auth Authenticator) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(log.GetLogger()), gin.Recovery(), RequestTimeout(cfg.Server.RequestTimeout))
	r.NoRoute(func(c *gin.Context) {
		sendJSONError(c, http.StatusNotFound, CodeRouteNotFound, "Route not found.", nil)
	})

	r.GET("/health", HealthHandler)

	h := NewHandler(svc, cfg.Workflow)
	admin := r.Group(AdminPrefix, RequireAdmin(auth, cfg.Auth.AdminRoles))
	{
		admin.POST("/submit", h.Submit)
		admin.GET("/pending", h.Pending)
		admin.GET("/stats", h.Stats)
		admin.GET("/:id", h.Get)
		admin.GET("/:id/history", h.History)
		admin.POST("/:id/review", h.Review)
		admin.POST("/:id/publish", h.Publish)
	}
	return r
}

// StartServer serves the admin API on cfg.Server.Port until ctx is cancelled,
// then shuts down gracefully.
func StartServer(ctx context.Context, cfg config.Config, store storage.Store) error {
	svc := service.NewWorkflowService(store, log.GetLogger(),
		service.WithMaxCommentLength(cfg.Workflow.MaxCommentLength))
	router := NewRouter(svc, cfg, HeaderAuthenticator{Token: cfg.Auth.APIToken})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.GetLogger().Infof("Starting newsdesk server on :%s", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.GetLogger().Info("Shutting down newsdesk server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
