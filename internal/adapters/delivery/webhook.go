package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/okian/airrisk/internal/domain/model"
)

// DefaultWebhookTimeout bounds one webhook POST.
const DefaultWebhookTimeout = 5 * time.Second

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithWebhookTimeout overrides the request timeout.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) {
		if d > 0 {
			w.client.SetTimeout(d)
		}
	}
}

// WithWebhookRetries retries transport errors, 429 and 5xx answers n times.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) {
		if n > 0 {
			w.client.SetRetryCount(n).
				SetRetryWaitTime(retryWait).
				SetRetryMaxWaitTime(retryMaxWait).
				AddRetryCondition(retryable)
		}
	}
}

// Retry backoff bounds.
const (
	retryWait    = 200 * time.Millisecond
	retryMaxWait = 2 * time.Second
)

func retryable(resp *resty.Response, err error) bool {
	if err != nil || resp == nil {
		return true
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// WithWebhookHeader adds a header to every request.
func WithWebhookHeader(key, value string) WebhookOption {
	return func(w *Webhook) {
		w.client.SetHeader(key, value)
	}
}

// Webhook POSTs the alert payload as JSON. Any 2xx response counts as
// delivered; the receiving service answers 201 Created.
type Webhook struct {
	url    string
	client *resty.Client
}

// NewWebhook creates a webhook notifier for url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url: url,
		client: resty.New().
			SetTimeout(DefaultWebhookTimeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements Notifier.
func (w *Webhook) Name() string { return ChannelWebhook }

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, a model.AlertEvent) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(a.Payload()).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("%w: post %s: %w", ErrNotDelivered, a.ID, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %s: status %d", ErrNotDelivered, a.ID, resp.StatusCode())
	}
	return nil
}
