// Package domain defines the core interfaces and types for Shrike.
package domain

import (
	"context"
)

// ContentSource fetches recent posts from an external page feed.
// Ordering (newest first) is owned by the source, not by the pipeline.
type ContentSource interface {
	FetchRecent(ctx context.Context, pageID string, limit int) ([]*Post, error)
}

// Notifier pushes an alert message to an external channel.
// Errors are the caller's to log; the pipeline treats sends as
// fire-and-forget and never fails a batch on a notifier error.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// AuditLog is the append-only sink receiving one entry per checked post.
type AuditLog interface {
	Log(ctx context.Context, rec *CheckRecord) error
}
