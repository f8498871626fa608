package statusd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/store"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

// NotificationPayload is the JSON body posted to the callback URL
type NotificationPayload struct {
	Run       store.RunSnapshot  `json:"run"`
	Front     []store.FrontEntry `json:"front"`
	Timestamp int64              `json:"timestamp"`
}

// Notifier posts a summary to a callback URL when the run ends
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
	clock      utils.Clock
	url        string
	secret     string
	// watchTimeout bounds the whole delivery started by Watch, retries included
	watchTimeout time.Duration
}

// NewNotifier creates a notifier for callbackURL. An empty URL makes every
// notification a no-op.
func NewNotifier(callbackURL, secret string) *Notifier {
	return &Notifier{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    utils.NewExponentialBackoff(time.Second, 8*time.Second, 2, false),
		clock:      utils.RealClock{},
		url:        callbackURL,
		secret:     secret,

		watchTimeout: 30 * time.Second,
	}
}

// Watch sends a notification once status reaches a terminal state. Delivery
// runs inside the status transition, so the run does not return until the
// callback succeeds or watchTimeout expires.
func (n *Notifier) Watch(status *store.LiveStatus) {
	if n.url == "" {
		return
	}
	status.OnStatusChange(func(s store.RunStatus) {
		if !s.Terminal() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), n.watchTimeout)
		defer cancel()
		_ = n.Notify(ctx, status.Snapshot())
	})
}

// Notify posts snap, retrying with backoff on transport errors and non-2xx responses
func (n *Notifier) Notify(ctx context.Context, snap store.RunSnapshot) error {
	if n.url == "" {
		return nil
	}
	finalURL := strings.ReplaceAll(n.url, "{run_id}", snap.RunID)
	body, err := json.Marshal(NotificationPayload{
		Run:       snap,
		Front:     snap.Front,
		Timestamp: time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			if err := n.clock.Sleep(ctx, n.backoff.NextDelay(attempt-1)); err != nil {
				return err
			}
		}
		if lastErr = n.send(ctx, finalURL, body); lastErr == nil {
			logger.Info("notification sent", "run_id", snap.RunID, "status", snap.Status)
			return nil
		}
		logger.Warn("notification attempt failed",
			"callback_url", finalURL,
			"run_id", snap.RunID,
			"attempt", attempt+1,
			"error", lastErr)
	}

	logger.Error("failed to send notification after retries",
		"callback_url", finalURL,
		"run_id", snap.RunID,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
	return lastErr
}

func (n *Notifier) send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "thptune/1.0")
	if n.secret != "" {
		req.Header.Set("X-Thptune-Callback-Secret", n.secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, snippet)
}
