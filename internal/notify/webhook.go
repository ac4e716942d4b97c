package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/GlebRadaev/tutorpay/internal/domain"
)

type Poster interface {
	Post(ctx context.Context, url string, headers http.Header, body []byte) (statusCode int, respBody []byte, err error)
}

// WebhookNotifier POSTs each event as JSON. Server errors and transport failures are retried
// with exponential backoff; client errors are not.
type WebhookNotifier struct {
	client  Poster
	url     string
	backoff func() retry.Backoff
}

func NewWebhookNotifier(client Poster, url string) *WebhookNotifier {
	return &WebhookNotifier{
		client: client,
		url:    url,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
		},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("X-Event-Type", string(e.Type))

	return retry.Do(ctx, n.backoff(), func(ctx context.Context) error {
		status, _, err := n.client.Post(ctx, n.url, headers, body)
		switch {
		case err != nil:
			return retry.RetryableError(err)
		case status >= http.StatusInternalServerError:
			return retry.RetryableError(fmt.Errorf("webhook responded %d", status))
		case status >= http.StatusBadRequest:
			return fmt.Errorf("webhook rejected event: %d", status)
		}
		return nil
	})
}
