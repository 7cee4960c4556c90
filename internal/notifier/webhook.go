package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/types"
)

// webhookNotifier POSTs a JSON body describing the join to a configured
// URL, retrying with a fixed delay, grounded on the teacher's
// events/broadcaster.go sendEventWithRetry shape but carrying a plain
// JSON payload instead of a protobuf-generated event type.
type webhookNotifier struct {
	url        string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewWebhookNotifier builds a webhook-backed Notifier.
func NewWebhookNotifier(url string, timeout time.Duration, maxRetries int, retryDelay time.Duration, logger *zap.Logger) Notifier {
	return &webhookNotifier{
		url:        url,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.Named("webhook-notifier"),
	}
}

type joinPayload struct {
	ClusterID string `json:"clusterId"`
	Username  string `json:"username"`
	Port      int    `json:"port"`
	Timestamp int64  `json:"timestamp"`
}

func (n *webhookNotifier) NotifyJoined(ctx context.Context, clusterID types.ClusterID, user types.User) {
	payload := joinPayload{
		ClusterID: clusterID.String(),
		Username:  user.Name.String(),
		Port:      user.Port,
		Timestamp: time.Now().Unix(),
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(n.retryDelay):
			}
			n.logger.Info("retrying webhook notification",
				clusterID.ZapField(), zap.Int("attempt", attempt+1))
		}

		if err := n.send(ctx, payload); err != nil {
			lastErr = err
			n.logger.Warn("webhook notification failed",
				clusterID.ZapField(), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		return
	}

	n.logger.Error("webhook notification failed after retries",
		clusterID.ZapField(), zap.Int("attempts", n.maxRetries+1), zap.Error(lastErr))
}

func (n *webhookNotifier) send(ctx context.Context, payload joinPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal join payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
