package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/logging"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

type AsyncConfig struct {
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

// AsyncNotifier queues events and delivers them through next on a background
// goroutine, so a slow mail server never holds up an import worker.
type AsyncNotifier struct {
	next  domain.Notifier
	cfg   AsyncConfig
	queue chan domain.ImportFinished

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsyncNotifier(next domain.Notifier, cfg AsyncConfig) *AsyncNotifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &AsyncNotifier{
		next:  next,
		cfg:   cfg,
		queue: make(chan domain.ImportFinished, cfg.QueueSize),
		done:  make(chan struct{}),
	}
}

// NotifyImportFinished enqueues event without blocking.
func (n *AsyncNotifier) NotifyImportFinished(ctx context.Context, event domain.ImportFinished) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return ErrQueueClosed
	}
	select {
	case n.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done, then flushes what is left
// and returns.
func (n *AsyncNotifier) Run(ctx context.Context) error {
	defer close(n.done)

	for {
		select {
		case event := <-n.queue:
			n.deliver(ctx, event)
		case <-ctx.Done():
			n.mu.Lock()
			n.closed = true
			n.mu.Unlock()

			flushCtx := context.WithoutCancel(ctx)
			for {
				select {
				case event := <-n.queue:
					n.deliver(flushCtx, event)
				default:
					return nil
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (n *AsyncNotifier) Done() <-chan struct{} {
	return n.done
}

func (n *AsyncNotifier) deliver(ctx context.Context, event domain.ImportFinished) {
	logger := logging.WithFields(ctx, "import_id", event.Session.ID, "user_id", event.Owner.ID)

	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		err := n.next.NotifyImportFinished(ctx, event)
		if err == nil {
			logger.Info("import notification sent", "status", event.Session.Status)
			return
		}
		if errors.Is(err, ErrNoRecipient) || attempt == n.cfg.MaxAttempts {
			logger.Error("import notification dropped", "attempt", attempt, "error", err)
			return
		}
		logger.Warn("import notification failed, retrying", "attempt", attempt, "error", err)

		timer := time.NewTimer(n.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			ctx = context.WithoutCancel(ctx)
		case <-timer.C:
		}
	}
}

// LogNotifier records finished imports in the log. It stands in for email
// when no SMTP host is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyImportFinished(ctx context.Context, event domain.ImportFinished) error {
	logging.WithFields(ctx, "import_id", event.Session.ID, "user_id", event.Owner.ID).Info("import finished",
		"status", event.Session.Status,
		"total_rows", event.Session.TotalRows,
		"successful_rows", event.Session.SuccessfulRows,
		"failed_rows", event.Session.FailedRows,
	)
	return nil
}
