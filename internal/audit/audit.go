// Package audit provides the append-only audit log sinks.
package audit

import (
	"context"
	"log/slog"

	"github.com/pagewatch/shrike/internal/domain"
)

// RepoLog appends check records to the repository. This is the durable
// audit trail: one row per checked post regardless of risk.
type RepoLog struct {
	repo domain.Repository
}

// NewRepoLog creates a repository-backed audit log.
func NewRepoLog(repo domain.Repository) *RepoLog {
	return &RepoLog{repo: repo}
}

// Log appends one check record.
func (l *RepoLog) Log(ctx context.Context, rec *domain.CheckRecord) error {
	return l.repo.SaveCheck(ctx, rec.PageID, rec)
}

// SlogLog writes check records to the structured logger only. Used when
// running without a repository.
type SlogLog struct{}

// NewSlogLog creates a logger-only audit log.
func NewSlogLog() *SlogLog {
	return &SlogLog{}
}

// Log emits one structured log entry for the check.
func (l *SlogLog) Log(ctx context.Context, rec *domain.CheckRecord) error {
	slog.Info("post checked",
		"check_id", rec.ID,
		"page_id", rec.PageID,
		"post_id", rec.PostID,
		"score", rec.Score,
		"label", rec.Label,
		"category", rec.Category,
		"alerted", rec.Alerted,
	)
	return nil
}
