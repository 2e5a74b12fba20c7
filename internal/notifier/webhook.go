package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// DefaultWebhookPath is the n8n trigger path appended after /webhook/1/.
const DefaultWebhookPath = "erxes trigger/webhook"

// Breaker gates calls to a flaky integration.
type Breaker interface {
	AllowRequest(ctx context.Context, key string) (string, bool)
	RecordSuccess(ctx context.Context, key string)
	RecordFailure(ctx context.Context, key string)
}

type WebhookOptions struct {
	BaseURL string // e.g. http://localhost:5678
	Path    string // unescaped path segments, e.g. "erxes trigger/webhook"
	Timeout time.Duration
	Breaker Breaker // optional
}

// WebhookNotifier posts automation payloads to an n8n-style webhook.
// Failures are logged and never returned.
type WebhookNotifier struct {
	httpClient *http.Client
	endpoint   string
	breaker    Breaker
	logger     *slog.Logger
}

func NewWebhookNotifier(opts WebhookOptions, logger *slog.Logger) *WebhookNotifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	path := opts.Path
	if path == "" {
		path = DefaultWebhookPath
	}

	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   WebhookURL(opts.BaseURL, path),
		breaker:    opts.Breaker,
		logger:     logger,
	}
}

// WebhookURL builds <base>/webhook/1/<path> with every path segment escaped.
func WebhookURL(baseURL, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(baseURL, "/") + "/webhook/1/" + strings.Join(segments, "/")
}

// Endpoint returns the resolved webhook URL.
func (n *WebhookNotifier) Endpoint() string {
	return n.endpoint
}

func (n *WebhookNotifier) Notify(ctx context.Context, payload domain.NotificationPayload, user *domain.User) error {
	if n.breaker != nil {
		if state, ok := n.breaker.AllowRequest(ctx, domain.IntegrationN8N); !ok {
			n.logger.Warn("webhook skipped, circuit open",
				"endpoint", n.endpoint,
				"circuit_state", state,
			)
			return nil
		}
	}

	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["user"] = user

	data, err := json.Marshal(body)
	if err != nil {
		n.logger.Error("failed to marshal webhook body", "error", err)
		return nil
	}

	start := time.Now()
	statusCode, respBody, err := n.post(ctx, data, payload)
	elapsed := time.Since(start).Milliseconds()

	if err != nil || statusCode >= 400 {
		n.recordFailure(ctx)
		n.logger.Warn("webhook delivery failed",
			"endpoint", n.endpoint,
			"kind", payload["kind"],
			"status_code", statusCode,
			"error", err,
			"response_time_ms", elapsed,
		)
		return nil
	}

	n.recordSuccess(ctx)
	n.logger.Info("webhook delivered",
		"endpoint", n.endpoint,
		"kind", payload["kind"],
		"status_code", statusCode,
		"response", respBody,
		"response_time_ms", elapsed,
	)
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, data []byte, payload domain.NotificationPayload) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Automation-Kind", fmt.Sprint(payload["kind"]))
	if token, _ := payload["apiToken"].(string); token != "" {
		req.Header.Set("X-Webhook-Signature", computeHMAC(data, token))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Only the first 1KB is kept for the log line
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return resp.StatusCode, string(body), nil
}

func (n *WebhookNotifier) recordSuccess(ctx context.Context) {
	if n.breaker != nil {
		n.breaker.RecordSuccess(ctx, domain.IntegrationN8N)
	}
}

func (n *WebhookNotifier) recordFailure(ctx context.Context) {
	if n.breaker != nil {
		n.breaker.RecordFailure(ctx, domain.IntegrationN8N)
	}
}

// computeHMAC generates an HMAC-SHA256 signature for the payload.
func computeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
