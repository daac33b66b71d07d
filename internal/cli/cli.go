package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/capekei/safra-sub003/internal/config"
	internal_http "github.com/capekei/safra-sub003/internal/http"
	"github.com/capekei/safra-sub003/internal/log"
	internal_storage "github.com/capekei/safra-sub003/internal/storage"
	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/capekei/safra-sub003/pkg/service"
	"github.com/capekei/safra-sub003/pkg/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

type globalFlags struct {
	configPath string
	driver     string
	dsn        string
}

// SetupCLI registers the newsdesk commands and persistent flags on rootCmd.
func SetupCLI(rootCmd *cobra.Command) {
	var flags globalFlags
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a config file (default ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "Database driver: postgres or sqlite (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.dsn, "db", "", "Database connection string or SQLite path (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin review API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.Server.Port = port
			}
			store, err := initStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore(store)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return internal_http.StartServer(ctx, cfg, store)
		},
	}
	serveCmd.Flags().String("port", "", "Port to listen on (overrides config)")

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			authorID, _ := cmd.Flags().GetInt64("author")
			return withService(cmd, flags, func(ctx context.Context, svc *service.WorkflowService, _ config.Config) error {
				a, err := svc.CreateDraft(ctx, title, authorID)
				if err != nil {
					return fmt.Errorf("failed to create article: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created draft article '%s' with ID %d\n", a.Title, a.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("title", "", "Article title")
	createCmd.Flags().Int64("author", 0, "Author user ID")
	markRequired(createCmd, "title", "author")

	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an article for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			articleID, _ := cmd.Flags().GetInt64("article")
			authorID, _ := cmd.Flags().GetInt64("author")
			override, _ := cmd.Flags().GetBool("override")
			var opts []service.SubmitOption
			if override {
				opts = append(opts, service.WithOwnershipOverride())
			}
			return withService(cmd, flags, func(ctx context.Context, svc *service.WorkflowService, _ config.Config) error {
				a, err := svc.SubmitForReview(ctx, articleID, authorID, opts...)
				if err != nil {
					return fmt.Errorf("failed to submit article: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted article %d for review (status: %s)\n", a.ID, a.Status)
				return nil
			})
		},
	}
	submitCmd.Flags().Int64("article", 0, "Article ID")
	submitCmd.Flags().Int64("author", 0, "Submitting user ID")
	submitCmd.Flags().Bool("override", false, "Submit on behalf of the author (admin)")
	markRequired(submitCmd, "article", "author")

	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Record a review decision on a pending article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			articleID, _ := cmd.Flags().GetInt64("article")
			reviewerID, _ := cmd.Flags().GetInt64("reviewer")
			decision, _ := cmd.Flags().GetString("decision")
			comments, _ := cmd.Flags().GetString("comments")
			return withService(cmd, flags, func(ctx context.Context, svc *service.WorkflowService, _ config.Config) error {
				r, err := svc.ReviewArticle(ctx, articleID, reviewerID, models.ReviewDecision(decision), comments)
				if err != nil {
					return fmt.Errorf("failed to review article: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded review %d on article %d: %s\n", r.ID, r.ArticleID, r.Decision)
				return nil
			})
		},
	}
	reviewCmd.Flags().Int64("article", 0, "Article ID")
	reviewCmd.Flags().Int64("reviewer", 0, "Reviewer user ID")
	reviewCmd.Flags().String("decision", "", "approve, reject or needs_changes")
	reviewCmd.Flags().String("comments", "", "Review comments")
	markRequired(reviewCmd, "article", "reviewer", "decision")

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an approved article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			articleID, _ := cmd.Flags().GetInt64("article")
			publisherID, _ := cmd.Flags().GetInt64("publisher")
			return withService(cmd, flags, func(ctx context.Context, svc *service.WorkflowService, _ config.Config) error {
				a, err := svc.PublishArticle(ctx, articleID, publisherID)
				if err != nil {
					return fmt.Errorf("failed to publish article: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published article %d at %s\n", a.ID, a.PublishedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
	publishCmd.Flags().Int64("article", 0, "Article ID")
	publishCmd.Flags().Int64("publisher", 0, "Publisher user ID")
	markRequired(publishCmd, "article", "publisher")

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List articles awaiting review, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			format, _ := cmd.Flags().GetString("output")
			return withService(cmd, flags, func(ctx context.Context, svc *service.WorkflowService, cfg config.Config) error {
				if !cmd.Flags().Changed("limit") {
					limit = cfg.Workflow.PendingDefaultLimit
				}
				articles, err := svc.GetPendingReviews(ctx, limit)
				if err != nil {
					return fmt.Errorf("failed to list pending reviews: %w", err)
				}
				return render(cmd.OutOrStdout(), format, articles, func(w io.Writer) {
					printArticles(w, articles)
				})
			})
		},
	}
	pendingCmd.Flags().Int("limit", 0, "Maximum number of articles (default from config)")
	addOutputFlag(pendingCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the review history of an article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			articleID, _ := cmd.Flags().GetInt64("article")
			format, _ := cmd.Flags().GetString("output")
			return withService(cmd, flags, func(ctx context.Context, svc *service.WorkflowService, _ config.Config) error {
				records, err := svc.GetArticleReviews(ctx, articleID)
				if err != nil {
					return fmt.Errorf("failed to get review history: %w", err)
				}
				return render(cmd.OutOrStdout(), format, records, func(w io.Writer) {
					printReviews(w, articleID, records)
				})
			})
		},
	}
	historyCmd.Flags().Int64("article", 0, "Article ID")
	markRequired(historyCmd, "article")
	addOutputFlag(historyCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the workflow state of an article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			articleID, _ := cmd.Flags().GetInt64("article")
			format, _ := cmd.Flags().GetString("output")
			return withService(cmd, flags, func(ctx context.Context, svc *service.WorkflowService, _ config.Config) error {
				a, err := svc.GetArticle(ctx, articleID)
				if err != nil {
					return fmt.Errorf("failed to get article: %w", err)
				}
				return render(cmd.OutOrStdout(), format, a, func(w io.Writer) {
					printArticle(w, a)
				})
			})
		},
	}
	showCmd.Flags().Int64("article", 0, "Article ID")
	markRequired(showCmd, "article")
	addOutputFlag(showCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Count articles per workflow status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("output")
			return withService(cmd, flags, func(ctx context.Context, svc *service.WorkflowService, _ config.Config) error {
				stats, err := svc.GetWorkflowStats(ctx)
				if err != nil {
					return fmt.Errorf("failed to get workflow stats: %w", err)
				}
				return render(cmd.OutOrStdout(), format, stats, func(w io.Writer) {
					printStats(w, stats)
				})
			})
		},
	}
	addOutputFlag(statsCmd)

	rootCmd.AddCommand(serveCmd, createCmd, submitCmd, reviewCmd, publishCmd,
		pendingCmd, historyCmd, showCmd, statsCmd)
}

func loadConfig(flags globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.driver != "" {
		cfg.Database.Driver = flags.driver
	}
	if flags.dsn != "" {
		cfg.Database.DSN = flags.dsn
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	log.Configure(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func initStore(cfg config.Config) (storage.Store, error) {
	log.GetLogger().Debugf("Opening %s store", cfg.Database.Driver)
	store, err := internal_storage.InitStore(cfg.Database)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return store, nil
}

func closeStore(store storage.Store) {
	if err := store.Close(); err != nil {
		log.GetLogger().Errorf("Failed to close store: %v", err)
	}
}

// withService opens the configured store, runs fn against a WorkflowService
// on it and closes the store again.
func withService(cmd *cobra.Command, flags globalFlags, fn func(ctx context.Context, svc *service.WorkflowService, cfg config.Config) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	svc := service.NewWorkflowService(store, log.GetLogger(),
		service.WithMaxCommentLength(cfg.Workflow.MaxCommentLength))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, svc, cfg)
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		_ = cmd.MarkFlagRequired(name)
	}
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", OutputText, "Output format: text, json or yaml")
}

// render writes v in the requested format; text output is delegated to text.
func render(w io.Writer, format string, v interface{}, text func(io.Writer)) error {
	switch format {
	case OutputText, "":
		text(w)
		return nil
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q (want text, json or yaml)", format)
}

func printArticles(w io.Writer, articles []models.Article) {
	if len(articles) == 0 {
		fmt.Fprintf(w, "No articles pending review.\n")
		return
	}
	fmt.Fprintf(w, "Pending review:\n")
	for _, a := range articles {
		fmt.Fprintf(w, "- ID: %d, Title: %s, Author: %d, Submitted: %s\n",
			a.ID, a.Title, a.AuthorID, formatTime(a.SubmittedAt))
	}
}

func printArticle(w io.Writer, a models.Article) {
	fmt.Fprintf(w, "ID: %d\nTitle: %s\nAuthor: %d\nStatus: %s\nSubmitted: %s\nPublished: %s\n",
		a.ID, a.Title, a.AuthorID, a.Status, formatTime(a.SubmittedAt), formatTime(a.PublishedAt))
}

func printReviews(w io.Writer, articleID int64, records []models.ReviewRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "No reviews for article %d.\n", articleID)
		return
	}
	fmt.Fprintf(w, "Reviews of article %d:\n", articleID)
	for _, r := range records {
		fmt.Fprintf(w, "- #%d %s by reviewer %d at %s", r.ID, r.Decision, r.ReviewerID, r.CreatedAt.Format(time.RFC3339))
		if r.Comments != "" {
			fmt.Fprintf(w, ": %s", r.Comments)
		}
		fmt.Fprintln(w)
	}
}

func printStats(w io.Writer, st models.WorkflowStats) {
	fmt.Fprintf(w, "draft:          %d\n", st.Draft)
	fmt.Fprintf(w, "pending_review: %d\n", st.PendingReview)
	fmt.Fprintf(w, "approved:       %d\n", st.Approved)
	fmt.Fprintf(w, "needs_changes:  %d\n", st.NeedsChanges)
	fmt.Fprintf(w, "rejected:       %d\n", st.Rejected)
	fmt.Fprintf(w, "published:      %d\n", st.Published)
	fmt.Fprintf(w, "total:          %d\n", st.Total)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
