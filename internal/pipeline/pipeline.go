// Package pipeline orchestrates one batch run of the content check:
// fetch posts, extract text, detect, aggregate, decide, dispatch.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagewatch/shrike/internal/domain"
	"github.com/pagewatch/shrike/internal/risk"
	"github.com/pagewatch/shrike/internal/rules"
)

var tracer = otel.Tracer("shrike-pipeline")

// EngineVersion is stamped into every check record.
const EngineVersion = "shrike-1.0"

// Checker runs posts through the detection pipeline and dispatches the
// outcome to the notifier and the audit log. The only shared state
// within a run is the read-only rule set, so posts are processed with a
// bounded worker pool and no locking around detection.
type Checker struct {
	source   domain.ContentSource
	store    *rules.Store
	matcher  *rules.Matcher
	agg      *risk.Aggregator
	policy   *risk.Policy
	notifier domain.Notifier
	audit    domain.AuditLog

	// Optional collaborators.
	repo  domain.Repository
	cache domain.Cache
	bus   domain.EventBus

	pageID string
	cfg    domain.DetectionConfig
}

// Options carries the optional collaborators of a Checker.
type Options struct {
	Repository domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
}

// New creates a checker for one page.
func New(
	source domain.ContentSource,
	store *rules.Store,
	agg *risk.Aggregator,
	policy *risk.Policy,
	notifier domain.Notifier,
	audit domain.AuditLog,
	pageID string,
	cfg domain.DetectionConfig,
	opts Options,
) *Checker {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 10
	}
	return &Checker{
		source:   source,
		store:    store,
		matcher:  rules.NewMatcher(),
		agg:      agg,
		policy:   policy,
		notifier: notifier,
		audit:    audit,
		repo:     opts.Repository,
		cache:    opts.Cache,
		bus:      opts.Bus,
		pageID:   pageID,
		cfg:      cfg,
	}
}

// Report summarizes one batch run.
type Report struct {
	Fetched    int `json:"fetched"`
	Checked    int `json:"checked"`
	Skipped    int `json:"skipped"`
	Alerts     int `json:"alerts"`
	Suppressed int `json:"suppressed"`
	Failures   int `json:"failures"`
}

// Run fetches up to limit recent posts and checks each one. A fetch
// failure aborts the run; any per-post failure is recorded and the run
// continues. Cancellation stops before the next post is dispatched,
// leaving already-dispatched side effects intact.
func (c *Checker) Run(ctx context.Context, limit int) (*Report, error) {
	if limit <= 0 {
		limit = c.cfg.BatchLimit
	}

	ctx, span := tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.String("page.id", c.pageID),
			attribute.Int("batch.limit", limit),
		),
	)
	defer span.End()

	start := time.Now()

	posts, err := c.source.FetchRecent(ctx, c.pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for page %s: %w", c.pageID, err)
	}

	report := &Report{Fetched: len(posts)}
	var checked, skipped, alerts, suppressed, failures int64

	sem := make(chan struct{}, c.cfg.MaxWorkers)
	var wg sync.WaitGroup

	for _, post := range posts {
		select {
		case <-ctx.Done():
			wg.Wait()
			report.Checked = int(checked)
			report.Skipped = int(skipped)
			report.Alerts = int(alerts)
			report.Suppressed = int(suppressed)
			report.Failures = int(failures)
			return report, ctx.Err()
		default:
		}

		wg.Add(1)
		go func(p *domain.Post) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			outcome, err := c.CheckPost(ctx, p)
			if err != nil {
				atomic.AddInt64(&failures, 1)
				slog.Error("post check failed",
					"page_id", c.pageID,
					"post_id", p.ID,
					"error", err,
				)
				return
			}
			switch outcome {
			case OutcomeSkipped:
				atomic.AddInt64(&skipped, 1)
			case OutcomeAlerted:
				atomic.AddInt64(&checked, 1)
				atomic.AddInt64(&alerts, 1)
			case OutcomeSuppressed:
				atomic.AddInt64(&checked, 1)
				atomic.AddInt64(&suppressed, 1)
			default:
				atomic.AddInt64(&checked, 1)
			}
		}(post)
	}

	wg.Wait()

	report.Checked = int(checked)
	report.Skipped = int(skipped)
	report.Alerts = int(alerts)
	report.Suppressed = int(suppressed)
	report.Failures = int(failures)

	slog.Info("batch run complete",
		"page_id", c.pageID,
		"fetched", report.Fetched,
		"checked", report.Checked,
		"skipped", report.Skipped,
		"alerts", report.Alerts,
		"failures", report.Failures,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}

// Outcome classifies the result of checking one post.
type Outcome int

const (
	OutcomeChecked Outcome = iota
	OutcomeSkipped
	OutcomeAlerted
	OutcomeSuppressed
)

// CheckPost runs a single post through extract, detect, aggregate,
// decide, and dispatch. Content-less posts are a deliberate no-op:
// no detection, no audit entry, no alert.
func (c *Checker) CheckPost(ctx context.Context, post *domain.Post) (Outcome, error) {
	if post == nil || post.ID == "" {
		return OutcomeSkipped, fmt.Errorf("malformed post record")
	}

	ctx, span := tracer.Start(ctx, "pipeline.CheckPost",
		trace.WithAttributes(attribute.String("post.id", post.ID)),
	)
	defer span.End()

	if seen, err := c.alreadySeen(ctx, post.ID); err == nil && seen {
		return OutcomeSkipped, nil
	}

	if !post.HasText() {
		return OutcomeSkipped, nil
	}

	start := time.Now()
	text := post.Text()

	rec := c.Evaluate(rules.Input{
		Text:     text,
		PostType: post.Type,
		PageID:   c.pageID,
	})
	rec.PostID = post.ID
	rec.Metadata.TraceID = span.SpanContext().TraceID().String()
	rec.Metadata.TotalMs = time.Since(start).Milliseconds()

	if c.repo != nil {
		if err := c.repo.SavePost(ctx, c.pageID, post); err != nil {
			slog.Error("failed to save post", "post_id", post.ID, "error", err)
		}
	}

	return c.dispatch(ctx, post.ID, rec)
}

// Evaluate runs detection and aggregation over one input and builds the
// check record, without dispatching side effects. Used by CheckPost,
// the async worker, and the ad-hoc check endpoint.
func (c *Checker) Evaluate(in rules.Input) *domain.CheckRecord {
	start := time.Now()

	rs := c.store.Active()
	matches := c.matcher.MatchAll(rs, in)
	verdict := c.agg.Aggregate(matches)

	pageID := in.PageID
	if pageID == "" {
		pageID = c.pageID
	}

	rec := &domain.CheckRecord{
		ID:        uuid.New().String(),
		PageID:    pageID,
		Text:      in.Text,
		Score:     verdict.Score,
		Category:  verdict.Category,
		Label:     verdict.Label,
		Matches:   verdict.Matches,
		Alerted:   c.policy.ShouldAlert(verdict),
		Reason:    c.policy.Explain(verdict),
		CheckedAt: time.Now().UTC(),
		Metadata: domain.CheckMetadata{
			RulesEvaluated: rs.Len(),
			DetectMs:       time.Since(start).Milliseconds(),
			EngineVersion:  EngineVersion,
		},
	}
	return rec
}

// dispatch writes the audit entry, sends the alert when warranted, and
// publishes bus events. Sink failures are logged and surfaced in the
// outcome, never propagated as a batch failure.
func (c *Checker) dispatch(ctx context.Context, postID string, rec *domain.CheckRecord) (Outcome, error) {
	// Audit every non-skipped post regardless of risk.
	if err := c.audit.Log(ctx, rec); err != nil {
		slog.Error("audit log failed",
			"post_id", postID,
			"check_id", rec.ID,
			"error", err,
		)
	}

	c.publish(ctx, domain.TopicPostChecked, rec)
	c.markSeen(ctx, postID)

	if !rec.Alerted {
		return OutcomeChecked, nil
	}

	if c.burstExceeded(ctx) {
		slog.Warn("alert suppressed by burst limit",
			"page_id", c.pageID,
			"post_id", postID,
		)
		return OutcomeSuppressed, nil
	}

	note := fmt.Sprintf("Post %s flagged: %s", postID, rec.Reason)
	if err := c.notifier.Send(ctx, note); err != nil {
		slog.Error("notifier send failed",
			"post_id", postID,
			"error", err,
		)
		return OutcomeChecked, nil
	}

	c.publish(ctx, domain.TopicAlert, rec)
	return OutcomeAlerted, nil
}

func (c *Checker) alreadySeen(ctx context.Context, postID string) (bool, error) {
	if c.cache == nil || c.cfg.SeenTTL <= 0 {
		return false, nil
	}
	return c.cache.Seen(ctx, c.pageID, postID)
}

func (c *Checker) markSeen(ctx context.Context, postID string) {
	if c.cache == nil || c.cfg.SeenTTL <= 0 {
		return
	}
	if err := c.cache.MarkSeen(ctx, c.pageID, postID, c.cfg.SeenTTL); err != nil {
		slog.Debug("failed to mark post seen", "post_id", postID, "error", err)
	}
}

func (c *Checker) burstExceeded(ctx context.Context) bool {
	if c.cache == nil || c.cfg.AlertBurstLimit <= 0 {
		return false
	}
	n, err := c.cache.IncrementCounter(ctx, c.pageID, "alerts", c.cfg.AlertBurstWindow)
	if err != nil {
		return false
	}
	return n > int64(c.cfg.AlertBurstLimit)
}

func (c *Checker) publish(ctx context.Context, topic string, rec *domain.CheckRecord) {
	if c.bus == nil {
		return
	}
	payload, _ := json.Marshal(rec)
	if err := c.bus.Publish(ctx, c.pageID, topic, payload); err != nil {
		slog.Error("failed to publish event",
			"topic", topic,
			"check_id", rec.ID,
			"error", err,
		)
	}
}
