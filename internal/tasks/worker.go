// internal/tasks/worker.go
package tasks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HeaderTaskID names the task on every callback; it matches the token subject.
const HeaderTaskID = "X-Task-ID"

// TokenIssuer signs the bearer token attached to each callback.
type TokenIssuer interface {
	CreateJWT(subject string) (string, error)
}

// Worker polls a RedisQueue and delivers due tasks. Delivery is single-shot:
// a failed callback is logged and dropped, since every callback re-checks
// state on arrival.
type Worker struct {
	queue    *RedisQueue
	issuer   TokenIssuer
	http     *http.Client
	logger   *logrus.Logger
	interval time.Duration
	batch    int
}

// NewWorker builds a worker polling every interval, claiming at most batch tasks per tick.
func NewWorker(queue *RedisQueue, issuer TokenIssuer, logger *logrus.Logger, interval time.Duration, batch int) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &Worker{
		queue:    queue,
		issuer:   issuer,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
		interval: interval,
		batch:    batch,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.WithField("interval", w.interval).Info("task worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("task worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.WithError(err).Error("task poll failed")
			}
		}
	}
}

// RunOnce claims and delivers every task due now. It returns how many
// deliveries succeeded.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	due, err := w.queue.Claim(ctx, time.Now(), w.batch)
	if err != nil && len(due) == 0 {
		return 0, err
	}

	delivered := 0
	for _, t := range due {
		log := w.logger.WithFields(logrus.Fields{"task_id": t.ID, "url": t.URL})
		if derr := w.deliver(ctx, t); derr != nil {
			log.WithError(derr).Warn("task delivery failed")
			continue
		}
		delivered++
		log.Debug("task delivered")
	}
	return delivered, err
}

func (w *Worker) deliver(ctx context.Context, t Task) error {
	token, err := w.issuer.CreateJWT(t.ID)
	if err != nil {
		return fmt.Errorf("sign task token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(t.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(HeaderTaskID, t.ID)

	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
