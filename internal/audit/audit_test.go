package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pagewatch/shrike/internal/domain"
)

// checkSink records SaveCheck calls; every other repository method is
// unused by the audit log.
type checkSink struct {
	domain.Repository

	pageID string
	rec    *domain.CheckRecord
	err    error
}

func (s *checkSink) SaveCheck(ctx context.Context, pageID string, rec *domain.CheckRecord) error {
	if s.err != nil {
		return s.err
	}
	s.pageID = pageID
	s.rec = rec
	return nil
}

func TestRepoLog(t *testing.T) {
	ctx := context.Background()

	t.Run("AppendsToRepository", func(t *testing.T) {
		sink := &checkSink{}
		l := NewRepoLog(sink)

		rec := &domain.CheckRecord{
			ID:        "check-1",
			PageID:    "page-001",
			Score:     3,
			CheckedAt: time.Now().UTC(),
		}
		if err := l.Log(ctx, rec); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
		if sink.pageID != "page-001" {
			t.Errorf("expected record page id used for scoping, got %s", sink.pageID)
		}
		if sink.rec != rec {
			t.Error("expected the record passed through unmodified")
		}
	})

	t.Run("PropagatesError", func(t *testing.T) {
		wantErr := errors.New("disk full")
		l := NewRepoLog(&checkSink{err: wantErr})

		if err := l.Log(ctx, &domain.CheckRecord{ID: "c"}); !errors.Is(err, wantErr) {
			t.Errorf("expected repository error, got %v", err)
		}
	})
}

func TestSlogLog(t *testing.T) {
	l := NewSlogLog()
	if err := l.Log(context.Background(), &domain.CheckRecord{ID: "c", PageID: "page-001"}); err != nil {
		t.Errorf("expected logger sink never to fail, got %v", err)
	}
}
