package mail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

type recordingNotifier struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	events   []domain.ImportFinished
}

func (r *recordingNotifier) NotifyImportFinished(ctx context.Context, event domain.ImportFinished) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.err != nil {
		return r.err
	}
	if r.failures > 0 {
		r.failures--
		return errors.New("temporary smtp failure")
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) snapshot() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, len(r.events)
}

func TestAsyncNotifierDeliversWithRetry(t *testing.T) {
	t.Parallel()

	next := &recordingNotifier{failures: 1}
	notifier := NewAsyncNotifier(next, AsyncConfig{RetryDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go notifier.Run(ctx)

	if err := notifier.NotifyImportFinished(context.Background(), finishedEvent(domain.StatusCompleted)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	deadline := time.After(time.Second)
	for {
		calls, delivered := next.snapshot()
		if delivered == 1 {
			if calls != 2 {
				t.Fatalf("expected 2 attempts, got %d", calls)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for delivery")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-notifier.Done()

	if err := notifier.NotifyImportFinished(context.Background(), finishedEvent(domain.StatusCompleted)); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestAsyncNotifierFlushesOnShutdown(t *testing.T) {
	t.Parallel()

	next := &recordingNotifier{}
	notifier := NewAsyncNotifier(next, AsyncConfig{QueueSize: 2})

	for i := 0; i < 2; i++ {
		if err := notifier.NotifyImportFinished(context.Background(), finishedEvent(domain.StatusFailed)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if err := notifier.NotifyImportFinished(context.Background(), finishedEvent(domain.StatusFailed)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := notifier.Run(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, delivered := next.snapshot(); delivered != 2 {
		t.Fatalf("expected 2 flushed notifications, got %d", delivered)
	}
}

func TestAsyncNotifierDropsEventsWithoutRecipient(t *testing.T) {
	t.Parallel()

	next := &recordingNotifier{err: ErrNoRecipient}
	notifier := NewAsyncNotifier(next, AsyncConfig{RetryDelay: time.Millisecond})

	if err := notifier.NotifyImportFinished(context.Background(), finishedEvent(domain.StatusFailed)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = notifier.Run(ctx)

	if calls, _ := next.snapshot(); calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
