package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagewatch/shrike/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "shrike-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New(domain.RepositoryConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestPosts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	post := &domain.Post{
		ID:          "post-1",
		Type:        "status",
		Message:     "hello world",
		CreatedTime: time.Now().UTC().Truncate(time.Second),
		Permalink:   "https://fb.test/post-1",
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := repo.SavePost(ctx, "page-001", post); err != nil {
			t.Fatalf("SavePost failed: %v", err)
		}

		got, err := repo.GetPost(ctx, "page-001", "post-1")
		if err != nil {
			t.Fatalf("GetPost failed: %v", err)
		}
		if got.Message != "hello world" || got.PageID != "page-001" || got.Permalink != post.Permalink {
			t.Errorf("unexpected post %+v", got)
		}
	})

	t.Run("UpsertOverwrites", func(t *testing.T) {
		updated := *post
		updated.Message = "edited text"
		if err := repo.SavePost(ctx, "page-001", &updated); err != nil {
			t.Fatalf("SavePost upsert failed: %v", err)
		}

		got, err := repo.GetPost(ctx, "page-001", "post-1")
		if err != nil {
			t.Fatalf("GetPost failed: %v", err)
		}
		if got.Message != "edited text" {
			t.Errorf("expected upsert to replace message, got %q", got.Message)
		}
	})

	t.Run("PageIsolation", func(t *testing.T) {
		if _, err := repo.GetPost(ctx, "page-002", "post-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound across pages, got %v", err)
		}
	})

	t.Run("RequiresPageID", func(t *testing.T) {
		if err := repo.SavePost(ctx, "", post); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.GetPost(ctx, "", "post-1"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetPost(ctx, "page-001", "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestChecks(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	rec := &domain.CheckRecord{
		ID:        "check-1",
		PostID:    "post-1",
		Text:      "obvious scam",
		Score:     5,
		Category:  "fraud",
		Label:     domain.RiskHigh,
		Matches:   []domain.Match{{RuleID: "r1", Keyword: "scam", Category: "fraud", RiskScore: 5}},
		Alerted:   true,
		Reason:    "Risk Score: 5/5 (Category: fraud) - Keywords: scam",
		CheckedAt: now,
		Metadata: domain.CheckMetadata{
			RulesEvaluated: 2,
			EngineVersion:  "shrike-1.0",
		},
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := repo.SaveCheck(ctx, "page-001", rec); err != nil {
			t.Fatalf("SaveCheck failed: %v", err)
		}

		got, err := repo.GetCheck(ctx, "page-001", "check-1")
		if err != nil {
			t.Fatalf("GetCheck failed: %v", err)
		}
		if got.Score != 5 || !got.Alerted || got.Label != domain.RiskHigh {
			t.Errorf("unexpected record %+v", got)
		}
		if len(got.Matches) != 1 || got.Matches[0].RuleID != "r1" {
			t.Errorf("expected matches round-tripped through JSON, got %v", got.Matches)
		}
		if got.Metadata.RulesEvaluated != 2 || got.Metadata.EngineVersion != "shrike-1.0" {
			t.Errorf("expected metadata round-tripped, got %+v", got.Metadata)
		}
	})

	t.Run("PageIsolation", func(t *testing.T) {
		if _, err := repo.GetCheck(ctx, "page-002", "check-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound across pages, got %v", err)
		}
	})

	t.Run("ListSinceFilter", func(t *testing.T) {
		old := *rec
		old.ID = "check-old"
		old.CheckedAt = now.Add(-48 * time.Hour)
		if err := repo.SaveCheck(ctx, "page-001", &old); err != nil {
			t.Fatalf("SaveCheck failed: %v", err)
		}

		records, err := repo.ListChecks(ctx, "page-001", now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("ListChecks failed: %v", err)
		}
		if len(records) != 1 || records[0].ID != "check-1" {
			t.Errorf("expected only the recent check, got %v", records)
		}

		records, err = repo.ListChecks(ctx, "page-001", now.Add(-72*time.Hour))
		if err != nil {
			t.Fatalf("ListChecks failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected both checks, got %d", len(records))
		}
		// Newest first
		if records[0].ID != "check-1" || records[1].ID != "check-old" {
			t.Errorf("expected newest-first ordering, got %s then %s", records[0].ID, records[1].ID)
		}
	})
}

func TestRules(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	t.Run("InsertionOrderPreserved", func(t *testing.T) {
		ids := []string{"r-c", "r-a", "r-b"}
		for _, id := range ids {
			rule := &domain.Rule{ID: id, Keyword: "kw-" + id, Category: "c", RiskScore: 3, Enabled: true}
			if err := repo.SaveRule(ctx, rule); err != nil {
				t.Fatalf("SaveRule(%s) failed: %v", id, err)
			}
		}

		rules, err := repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(rules) != 3 {
			t.Fatalf("expected 3 rules, got %d", len(rules))
		}
		for i, id := range ids {
			if rules[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, rules[i].ID)
			}
		}
	})

	t.Run("UpsertKeepsPosition", func(t *testing.T) {
		updated := &domain.Rule{ID: "r-c", Keyword: "changed", Category: "fraud", RiskScore: 5, Enabled: false}
		if err := repo.SaveRule(ctx, updated); err != nil {
			t.Fatalf("SaveRule upsert failed: %v", err)
		}

		rules, err := repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if rules[0].ID != "r-c" {
			t.Errorf("expected updated rule to keep first position, got %s", rules[0].ID)
		}
		if rules[0].Keyword != "changed" || rules[0].RiskScore != 5 || rules[0].Enabled {
			t.Errorf("expected fields updated, got %+v", rules[0])
		}
	})

	t.Run("DisabledRulesListed", func(t *testing.T) {
		rules, err := repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		var disabled int
		for _, r := range rules {
			if !r.Enabled {
				disabled++
			}
		}
		if disabled != 1 {
			t.Errorf("expected the disabled rule to be listed, found %d disabled", disabled)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.DeleteRule(ctx, "r-a"); err != nil {
			t.Fatalf("DeleteRule failed: %v", err)
		}
		rules, err := repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(rules) != 2 {
			t.Errorf("expected 2 rules after delete, got %d", len(rules))
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		if err := repo.DeleteRule(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RequiresRuleID", func(t *testing.T) {
		if err := repo.SaveRule(ctx, &domain.Rule{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := repo.DeleteRule(ctx, ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: "postgres"}
	got := pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	lite := &SQLRepository{driver: "sqlite"}
	q := "SELECT * FROM t WHERE a = ?"
	if got := lite.rebind(q); got != q {
		t.Errorf("expected sqlite query unchanged, got %q", got)
	}
}

func TestPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
