package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"subgraphMonitor/internal/model"
)

// Webhook posts failing verdicts to each job's notification target.
type Webhook struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

func NewWebhook(timeout time.Duration, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}
}

// Notify delivers every verdict that is not OK. Delivery failures are logged
// per verdict and counted; they never stop delivery of the others.
func (w *Webhook) Notify(ctx context.Context, jobs []model.Job, verdicts []model.Verdict) int {
	targets := make(map[string]string, len(jobs))
	for _, job := range jobs {
		targets[job.Name] = job.Target
	}

	failed := 0
	for _, v := range verdicts {
		if v.OK {
			continue
		}
		target := targets[v.Job]
		if target == "" {
			w.logger.Warn("no notification target for failing subgraph",
				zap.String("job", v.Job),
				zap.String("version", string(v.Version)),
			)
			continue
		}
		if err := w.post(ctx, target, v); err != nil {
			failed++
			w.logger.Error("notification delivery failed",
				zap.String("job", v.Job),
				zap.String("version", string(v.Version)),
				zap.Error(err),
			)
			continue
		}
		w.logger.Info("notification sent",
			zap.String("job", v.Job),
			zap.String("version", string(v.Version)),
		)
	}
	return failed
}

func (w *Webhook) post(ctx context.Context, target string, v model.Verdict) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook http %d", resp.StatusCode)
	}
	return nil
}
