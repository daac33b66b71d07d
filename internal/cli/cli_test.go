package cli_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/capekei/safra-sub003/internal/cli"
	"github.com/capekei/safra-sub003/pkg/models"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestCLI_EditorialFlow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "newsdesk.db")

	run := func(t *testing.T, args ...string) (string, error) {
		root := &cobra.Command{Use: "newsdesk", SilenceUsage: true, SilenceErrors: true}
		cli.SetupCLI(root)
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(append([]string{"--driver", "sqlite", "--db", dbPath}, args...))
		err := root.Execute()
		return out.String(), err
	}

	out, err := run(t, "create", "--title", "Museum reopens", "--author", "7")
	assert.NoError(t, err)
	assert.Equal(t, "Created draft article 'Museum reopens' with ID 1\n", out)

	out, err = run(t, "pending")
	assert.NoError(t, err)
	assert.Equal(t, "No articles pending review.\n", out)

	_, err = run(t, "submit", "--article", "1", "--author", "8")
	assert.ErrorContains(t, err, "unauthorized")

	out, err = run(t, "submit", "--article", "1", "--author", "7")
	assert.NoError(t, err)
	assert.Equal(t, "Submitted article 1 for review (status: pending_review)\n", out)

	out, err = run(t, "pending", "--output", "json")
	assert.NoError(t, err)
	var pending []models.Article
	assert.NoError(t, json.Unmarshal([]byte(out), &pending))
	if assert.Len(t, pending, 1) {
		assert.Equal(t, "Museum reopens", pending[0].Title)
		assert.NotNil(t, pending[0].SubmittedAt)
	}

	out, err = run(t, "review", "--article", "1", "--reviewer", "2", "--decision", "approve", "--comments", "ship it")
	assert.NoError(t, err)
	assert.Equal(t, "Recorded review 1 on article 1: approve\n", out)

	out, err = run(t, "publish", "--article", "1", "--publisher", "3")
	assert.NoError(t, err)
	assert.Contains(t, out, "Published article 1 at ")

	_, err = run(t, "publish", "--article", "1", "--publisher", "3")
	assert.ErrorContains(t, err, "invalid transition")

	out, err = run(t, "history", "--article", "1", "-o", "yaml")
	assert.NoError(t, err)
	var history []models.ReviewRecord
	assert.NoError(t, yaml.Unmarshal([]byte(out), &history))
	if assert.Len(t, history, 1) {
		assert.Equal(t, models.ApproveReviewDecision, history[0].Decision)
		assert.Equal(t, "ship it", history[0].Comments)
		assert.Equal(t, int64(2), history[0].ReviewerID)
	}

	out, err = run(t, "show", "--article", "1")
	assert.NoError(t, err)
	assert.Contains(t, out, "Status: published\n")

	out, err = run(t, "stats")
	assert.NoError(t, err)
	assert.Contains(t, out, "published:      1\n")
	assert.Contains(t, out, "total:          1\n")

	out, err = run(t, "stats", "--output", "json")
	assert.NoError(t, err)
	assert.JSONEq(t, `{"draft":0,"pending_review":0,"approved":0,"needs_changes":0,"rejected":0,"published":1,"total":1}`, out)
}

func TestCLI_Errors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "newsdesk.db")
	run := func(args ...string) error {
		root := &cobra.Command{Use: "newsdesk", SilenceUsage: true, SilenceErrors: true}
		cli.SetupCLI(root)
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append([]string{"--driver", "sqlite", "--db", dbPath}, args...))
		return root.Execute()
	}

	assert.ErrorContains(t, run("create", "--author", "7"), "title")
	assert.ErrorContains(t, run("show", "--article", "5"), "not found")
	assert.ErrorContains(t, run("stats", "--output", "xml"), "unsupported output format")
	assert.ErrorContains(t, run("review", "--article", "1", "--reviewer", "2", "--decision", "maybe"), "unknown review decision")
	assert.ErrorContains(t, run("pending", "--limit", "0"), "limit must be positive")
	assert.Error(t, run("--driver", "mysql", "stats"))
}
