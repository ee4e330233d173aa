package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const lineNotifyURL = "https://notify-api.line.me/api/notify"

// LineNotifier sends push notifications through the LINE Notify API.
type LineNotifier struct {
	token    string
	endpoint string
	client   *http.Client
}

// NewLineNotifier creates a LINE Notify client.
func NewLineNotifier(token string) *LineNotifier {
	return &LineNotifier{
		token:    token,
		endpoint: lineNotifyURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send pushes one message.
func (n *LineNotifier) Send(ctx context.Context, message string) error {
	form := url.Values{}
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("line notify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("line notify returned status %d", resp.StatusCode)
	}
	return nil
}
