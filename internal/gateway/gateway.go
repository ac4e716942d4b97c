// Package gateway talks to the external payout gateway.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
)

const (
	maxRetries    = 3
	retryInterval = time.Second * 1
	callTimeout   = time.Second * 30
)

var ErrUnavailable = errors.New("payout gateway unavailable")

type Poster interface {
	Post(ctx context.Context, url string, headers http.Header, body []byte) (statusCode int, respBody []byte, err error)
}

type Response struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

type Client struct {
	url           string
	client        Poster
	retryInterval time.Duration
}

func New(address string, client Poster) *Client {
	return &Client{
		url:           address + "/api/payouts",
		client:        client,
		retryInterval: retryInterval,
	}
}

// Send asks the gateway to execute the payout. A gateway decision, success or refusal, comes
// back as a receipt; an error means the outcome is unknown. The payout id is sent as the
// idempotency key so retried calls cannot pay twice.
func (c *Client) Send(ctx context.Context, in domain.PayoutInstruction) (*domain.GatewayReceipt, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal payout instruction: %w", err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Idempotency-Key", in.PayoutID.String())

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var (
		receipt *domain.GatewayReceipt
		attempt int
	)
	backoff := retry.WithMaxRetries(maxRetries, retry.NewLinear(c.retryInterval))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		statusCode, respBody, err := c.client.Post(ctx, c.url, headers, body)
		if err != nil {
			zap.L().Warn("payout gateway call failed", zap.String("payout_id", in.PayoutID.String()), zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}

		switch {
		case statusCode == http.StatusOK || statusCode == http.StatusCreated:
			receipt, err = parse(respBody)
			return err
		case statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError:
			zap.L().Warn("payout gateway not ready, retrying", zap.String("payout_id", in.PayoutID.String()), zap.Int("status", statusCode), zap.Int("attempt", attempt))
			return retry.RetryableError(fmt.Errorf("%w: status %d", ErrUnavailable, statusCode))
		case statusCode >= http.StatusBadRequest:
			var r Response
			_ = json.Unmarshal(respBody, &r)
			reason := r.Reason
			if reason == "" {
				reason = "gateway refused payout: " + strconv.Itoa(statusCode)
			}
			receipt = &domain.GatewayReceipt{Succeeded: false, Reference: r.Reference, Reason: reason}
			return nil
		default:
			zap.L().Error("unexpected gateway status", zap.Int("status", statusCode))
			return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, statusCode)
		}
	})
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return receipt, nil
}

func parse(body []byte) (*domain.GatewayReceipt, error) {
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}
	switch r.Status {
	case "succeeded":
		return &domain.GatewayReceipt{Succeeded: true, Reference: r.Reference}, nil
	case "failed":
		return &domain.GatewayReceipt{Succeeded: false, Reference: r.Reference, Reason: r.Reason}, nil
	}
	return nil, fmt.Errorf("%w: unrecognized status %q", ErrUnavailable, r.Status)
}
