// Package worker provides async post processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pagewatch/shrike/internal/domain"
	"github.com/pagewatch/shrike/internal/pipeline"
)

// Worker checks posts submitted over the EventBus asynchronously.
// Each submitted post runs through the same check path as the batch
// pipeline, so seen markers, audit entries, and alerts behave
// identically regardless of how a post arrived.
type Worker struct {
	bus     domain.EventBus
	checker *pipeline.Checker

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// PageIDs is the list of pages to process (empty = global subscription)
	PageIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, checker *pipeline.Checker) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		checker: checker,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing submitted posts for the given pages.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.PageIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, pageID := range cfg.PageIDs {
		if err := w.startPageWorker(pageID); err != nil {
			slog.Error("failed to start worker for page",
				"page_id", pageID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"page_count", len(cfg.PageIDs),
	)

	return nil
}

// startGlobalWorker subscribes under the global page ID (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.GlobalPageID, domain.TopicPostSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startPageWorker subscribes to the submitted-post topic for one page.
func (w *Worker) startPageWorker(pageID string) error {
	sub, err := w.bus.Subscribe(w.ctx, pageID, domain.TopicPostSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processPost(ctx, pageID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("page worker started",
		"page_id", pageID,
		"topic", domain.TopicPostSubmitted,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processPost(ctx, msg.PageID, msg)
}

// PostMessage is the message payload for async post submission.
type PostMessage struct {
	PostID      string `json:"postId"`
	PageID      string `json:"pageId"`
	Type        string `json:"type,omitempty"`
	Message     string `json:"message,omitempty"`
	Story       string `json:"story,omitempty"`
	Description string `json:"description,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Name        string `json:"name,omitempty"`
	Permalink   string `json:"permalink,omitempty"`
}

// processPost runs a submitted post through the check pipeline.
// Tracked on the wait group so Stop blocks until in-flight posts finish.
func (w *Worker) processPost(ctx context.Context, pageID string, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	start := time.Now()

	var pm PostMessage
	if err := json.Unmarshal(msg.Payload, &pm); err != nil {
		slog.Error("failed to parse post message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message page if provided
	if pm.PageID != "" {
		pageID = pm.PageID
	}

	post := &domain.Post{
		ID:          pm.PostID,
		PageID:      pageID,
		Type:        pm.Type,
		Message:     pm.Message,
		Story:       pm.Story,
		Description: pm.Description,
		Caption:     pm.Caption,
		Name:        pm.Name,
		Permalink:   pm.Permalink,
	}

	slog.Debug("processing submitted post",
		"post_id", post.ID,
		"page_id", pageID,
	)

	outcome, err := w.checker.CheckPost(ctx, post)
	if err != nil {
		slog.Error("post check failed",
			"post_id", post.ID,
			"page_id", pageID,
			"error", err,
		)
		return err
	}

	slog.Info("post processed",
		"post_id", post.ID,
		"page_id", pageID,
		"outcome", outcomeName(outcome),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func outcomeName(o pipeline.Outcome) string {
	switch o {
	case pipeline.OutcomeSkipped:
		return "skipped"
	case pipeline.OutcomeAlerted:
		return "alerted"
	case pipeline.OutcomeSuppressed:
		return "suppressed"
	default:
		return "checked"
	}
}

// Stop unsubscribes all workers and waits for in-flight posts.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
