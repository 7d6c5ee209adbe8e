package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/mailer"
	"github.com/hearthside/mailroom/internal/pkg/distlock"
	"github.com/hearthside/mailroom/internal/pkg/logger"
)

const (
	defaultBatchSize = 500
	// defaultStaleClaim is how long an item may sit in processing before
	// another run assumes its worker died and releases it.
	defaultStaleClaim = 5 * time.Minute
	// defaultRetryBase seeds the exponential backoff between attempts.
	defaultRetryBase = 15 * time.Minute
	maxBackoff       = 24 * time.Hour
)

// Result aggregates one processor run. Retried counts attempts that failed
// but were rescheduled rather than finalized.
type Result struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
}

// Processor drains due queue items. It is invoked synchronously by an
// external caller (operator action or cron); it never schedules itself.
type Processor struct {
	repo       Repository
	sender     mailer.Sender
	render     *Personalizer
	lock       distlock.Lock
	batchSize  int
	staleClaim time.Duration
	retryBase  time.Duration
}

// NewProcessor creates a queue processor. lock may be nil; overlapping runs
// are then serialized only by the per-item claim, which is still correct but
// wastes selection work.
func NewProcessor(repo Repository, sender mailer.Sender, lock distlock.Lock) *Processor {
	return &Processor{
		repo:       repo,
		sender:     sender,
		render:     NewPersonalizer(),
		lock:       lock,
		batchSize:  defaultBatchSize,
		staleClaim: defaultStaleClaim,
		retryBase:  defaultRetryBase,
	}
}

// SetBatchSize overrides the per-run selection limit.
func (p *Processor) SetBatchSize(n int) {
	if n > 0 {
		p.batchSize = n
	}
}

// SetRetryBase overrides the backoff seed between retry attempts.
func (p *Processor) SetRetryBase(d time.Duration) {
	if d > 0 {
		p.retryBase = d
	}
}

// SetStaleClaim overrides how long an item may sit in processing before a
// later run reclaims it.
func (p *Processor) SetStaleClaim(d time.Duration) {
	if d > 0 {
		p.staleClaim = d
	}
}

// ProcessDue sends every item due at now and returns aggregate counts. One
// item's failure never aborts the batch: send errors are recorded on the
// item and processing continues.
func (p *Processor) ProcessDue(ctx context.Context, now time.Time) (Result, error) {
	var res Result

	if p.lock != nil {
		acquired, err := p.lock.Acquire(ctx)
		if err != nil {
			return res, fmt.Errorf("acquire processor lock: %w", err)
		}
		if !acquired {
			logger.Info("queue processor already running, skipping pass")
			return res, nil
		}
		defer p.lock.Release(ctx)
	}

	if released, err := p.repo.ReleaseStale(ctx, now.Add(-p.staleClaim)); err != nil {
		logger.Warn("release stale claims", "error", err)
	} else if released > 0 {
		logger.Warn("released stale queue claims", "count", released)
	}

	items, err := p.repo.DueItems(ctx, now, p.batchSize)
	if err != nil {
		return res, fmt.Errorf("select due items: %w", err)
	}

	for _, item := range items {
		claimed, err := p.repo.Claim(ctx, item.ID, now)
		if err != nil {
			logger.Error("claim queue item", "id", item.ID, "error", err)
			continue
		}
		if !claimed {
			// Lost the CAS to a concurrent run, or the item was cancelled
			// between selection and claim.
			continue
		}

		res.Processed++
		switch p.processItem(ctx, item, now) {
		case outcomeSent:
			res.Sent++
		case outcomeFailed:
			res.Failed++
		case outcomeRetried:
			res.Retried++
		}
	}

	if res.Processed > 0 {
		logger.Info("queue pass complete",
			"processed", res.Processed, "sent", res.Sent,
			"failed", res.Failed, "retried", res.Retried)
	}
	return res, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeRetried
)

func (p *Processor) processItem(ctx context.Context, item domain.AutomationQueueItem, now time.Time) outcome {
	msg := mailer.Message{
		To:      item.RecipientEmail,
		ToName:  item.RecipientName,
		Subject: p.render.Render(item.Subject, item.RecipientName, item.RecipientEmail),
		HTML:    p.render.Render(item.Body, item.RecipientName, item.RecipientEmail),
	}

	ok, sendErr := p.sendSafely(ctx, msg)
	if ok && sendErr == nil {
		if err := p.repo.MarkSent(ctx, item.ID, now); err != nil {
			logger.Error("mark sent", "id", item.ID, "error", err)
		}
		return outcomeSent
	}

	reason := "send capability rejected the message"
	if sendErr != nil {
		reason = sendErr.Error()
	}

	if item.RetryCount < item.MaxRetries {
		next := now.Add(p.backoff(item.RetryCount))
		if err := p.repo.Reschedule(ctx, item.ID, next, reason, item.RetryCount+1); err != nil {
			logger.Error("reschedule for retry", "id", item.ID, "error", err)
			return outcomeFailed
		}
		logger.Warn("send failed, retry scheduled",
			"id", item.ID, "attempt", item.RetryCount+1,
			"max_retries", item.MaxRetries, "next_attempt", next.Format(time.RFC3339),
			"reason", reason)
		return outcomeRetried
	}

	if err := p.repo.MarkFailed(ctx, item.ID, now, reason); err != nil {
		logger.Error("mark failed", "id", item.ID, "error", err)
	}
	logger.Warn("send failed permanently", "id", item.ID, "reason", reason)
	return outcomeFailed
}

// sendSafely converts a panicking sender into an ordinary failed attempt so
// one bad item cannot take down the batch.
func (p *Processor) sendSafely(ctx context.Context, msg mailer.Message) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()
	return p.sender.Send(ctx, msg)
}

// backoff doubles per attempt from the configured base, capped at a day.
func (p *Processor) backoff(retryCount int) time.Duration {
	d := p.retryBase << uint(retryCount)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

// Stats reports queue aggregates for the stats endpoint.
func (p *Processor) Stats(ctx context.Context, now time.Time) (*domain.QueueStats, error) {
	return p.repo.Stats(ctx, now)
}

// List pages through queue items for the admin queue view.
func (p *Processor) List(ctx context.Context, f ListFilter) ([]domain.AutomationQueueItem, int, error) {
	return p.repo.List(ctx, f)
}
