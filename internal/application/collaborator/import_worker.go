package collaborator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/logging"
)

type ImportSource interface {
	Open(ctx context.Context, filename string) (io.ReadCloser, error)
}

type importSessionStore interface {
	rowSessionRecorder
	GetByID(ctx context.Context, id string) (domain.ImportSession, error)
	ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.ImportSession, error)
	Heartbeat(ctx context.Context, lease domain.Lease, leaseDuration time.Duration) error
	Start(ctx context.Context, lease domain.Lease, totalRows int64) error
	Complete(ctx context.Context, lease domain.Lease) error
	Fail(ctx context.Context, lease domain.Lease, failure domain.RowErrors) error
	// ReleaseExpired unclaims expired leases that never started and fails the
	// rest with failure. It returns the ids of the sessions it failed.
	ReleaseExpired(ctx context.Context, maxAttempts int, failure domain.RowErrors) ([]string, error)
}

type ImportWorkerConfig struct {
	Workers           int
	PollInterval      time.Duration
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration
	ReapInterval      time.Duration
	MaxAttempts       int
	// CountMismatchedRows records rows with the wrong column count as failed
	// rows instead of dropping them.
	CountMismatchedRows bool
}

// ImportWorker claims queued import sessions and runs them one row at a time.
type ImportWorker struct {
	sessions  importSessionStore
	source    ImportSource
	users     domain.UserRepository
	notifier  domain.Notifier
	processor *RowProcessor
	cfg       ImportWorkerConfig

	once sync.Once
	wg   sync.WaitGroup
}

func NewImportWorker(
	sessions importSessionStore,
	source ImportSource,
	collaborators domain.CollaboratorStore,
	users domain.UserRepository,
	notifier domain.Notifier,
	cfg ImportWorkerConfig,
) *ImportWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 60 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.LeaseDuration / 2
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = cfg.LeaseDuration / 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return &ImportWorker{
		sessions:  sessions,
		source:    source,
		users:     users,
		notifier:  notifier,
		processor: NewRowProcessor(collaborators, sessions),
		cfg:       cfg,
	}
}

// Start launches the workers and the lease reaper. They stop when ctx is done.
func (w *ImportWorker) Start(ctx context.Context) {
	w.once.Do(func() {
		for i := 0; i < w.cfg.Workers; i++ {
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.workerLoop(ctx)
			}()
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.reaperLoop(ctx)
		}()
	})
}

// Wait blocks until every goroutine started by Start has returned.
func (w *ImportWorker) Wait() {
	w.wg.Wait()
}

func (w *ImportWorker) workerLoop(ctx context.Context) {
	logger := logging.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		session, err := w.sessions.ClaimNext(ctx, w.cfg.LeaseDuration)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("claim next import session failed", "error", err)
			}
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if session == nil {
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if err := w.ProcessSession(ctx, *session); err != nil {
			logger.Warn("import session failed", "import_id", session.ID, "error", err)
		}
	}
}

func (w *ImportWorker) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reapExpired(ctx)
		}
	}
}

func (w *ImportWorker) reapExpired(ctx context.Context) {
	failed, err := w.sessions.ReleaseExpired(ctx, w.cfg.MaxAttempts, domain.GeneralError(ErrWorkerStopped.Error()))
	if err != nil {
		if ctx.Err() == nil {
			logging.FromContext(ctx).Error("release expired import leases failed", "error", err)
		}
		return
	}

	for _, id := range failed {
		logging.FromContext(ctx).Warn("import session lease expired", "import_id", id)
		w.notify(ctx, id)
	}
}

// ProcessSession runs one claimed import to a terminal state and notifies the
// owner once. Sessions already in a terminal state are refused. A run whose
// claim was released by the reaper stops without notifying, since the session
// is no longer its to finish.
func (w *ImportWorker) ProcessSession(ctx context.Context, session domain.ImportSession) (err error) {
	if session.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", domain.ErrImportSessionFinished, session.ID)
	}

	lease := session.Lease()
	logger := logging.WithFields(ctx, "import_id", session.ID, "user_id", session.UserID)

	defer func() {
		if errors.Is(err, domain.ErrLeaseLost) {
			logger.Warn("import lease lost, abandoning run", "attempt", lease.Attempt)
			err = nil
			return
		}
		w.notify(ctx, session.ID)
	}()
	defer func() {
		if r := recover(); r != nil {
			err = w.fail(ctx, lease, fmt.Errorf("unexpected error: %v", r))
		}
	}()

	return w.run(ctx, logger, lease, session)
}

func (w *ImportWorker) run(ctx context.Context, logger *slog.Logger, lease domain.Lease, session domain.ImportSession) error {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	total, err := w.countRows(ctx, logger, lease, session, ticker)
	if err != nil {
		return w.stop(ctx, logger, lease, err)
	}
	if total == 0 {
		return w.fail(ctx, lease, ErrEmptyImportFile)
	}

	if err := w.sessions.Start(ctx, lease, total); err != nil {
		return w.stop(ctx, logger, lease, fmt.Errorf("start import session: %w", err))
	}
	logger.Info("import started", "total_rows", total)

	reader, file, err := w.openReader(ctx, session)
	if err != nil {
		return w.fail(ctx, lease, err)
	}
	defer file.Close()

	mapper := NewFieldMapper(reader.Headers(), !session.Options.HasHeader)

	var seen int64
	for row, readErr := range reader.Rows(ctx) {
		if ctx.Err() != nil {
			return w.fail(ctx, lease, ErrWorkerStopped)
		}
		if readErr != nil {
			return w.fail(ctx, lease, readErr)
		}
		if err := w.heartbeat(ctx, logger, lease, ticker); err != nil {
			return w.stop(ctx, logger, lease, err)
		}

		seen++
		if seen > total {
			return w.fail(ctx, lease, ErrSourceChanged)
		}

		if row.Err != nil {
			err = w.processor.Reject(ctx, lease, row.Line, domain.GeneralError(row.Err.Error()))
		} else {
			err = w.processor.Process(ctx, mapper.Map(row.Values, session.UserID), row.Line, lease)
		}
		if err != nil {
			return w.stop(ctx, logger, lease, fmt.Errorf("record row %d: %w", row.Line, err))
		}
	}

	if ctx.Err() != nil {
		return w.fail(ctx, lease, ErrWorkerStopped)
	}
	if seen != total {
		return w.fail(ctx, lease, ErrSourceChanged)
	}

	if err := w.sessions.Complete(context.WithoutCancel(ctx), lease); err != nil {
		return w.stop(ctx, logger, lease, fmt.Errorf("complete import session: %w", err))
	}

	logger.Info("import completed", "processed_rows", seen)
	return nil
}

// countRows reads the whole file once so total_rows is fixed before any row
// is processed. The lease is kept alive while it reads.
func (w *ImportWorker) countRows(ctx context.Context, logger *slog.Logger, lease domain.Lease, session domain.ImportSession, ticker *time.Ticker) (int64, error) {
	reader, file, err := w.openReader(ctx, session)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var total int64
	for _, err := range reader.Rows(ctx) {
		if err != nil {
			return 0, err
		}
		if err := w.heartbeat(ctx, logger, lease, ticker); err != nil {
			return 0, err
		}
		total++
	}
	return total, nil
}

// heartbeat extends the lease once ticker has fired. It returns only errors
// that end the run; other failures are logged and retried on the next tick.
func (w *ImportWorker) heartbeat(ctx context.Context, logger *slog.Logger, lease domain.Lease, ticker *time.Ticker) error {
	select {
	case <-ticker.C:
	default:
		return nil
	}

	err := w.sessions.Heartbeat(ctx, lease, w.cfg.LeaseDuration)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrImportSessionFinished), errors.Is(err, domain.ErrLeaseLost):
		return fmt.Errorf("heartbeat: %w", err)
	}
	logger.Warn("import heartbeat failed", "error", err)
	return nil
}

func (w *ImportWorker) openReader(ctx context.Context, session domain.ImportSession) (*CSVReader, io.Closer, error) {
	file, err := w.source.Open(ctx, session.Filename)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	reader, err := NewCSVReader(ctx, file, readerOptionsFor(session.Options, w.cfg.CountMismatchedRows))
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return reader, file, nil
}

// stop ends the run after a failed session write. A session that went
// terminal elsewhere (cancelled) keeps its status, and a lost lease is passed
// up untouched.
func (w *ImportWorker) stop(ctx context.Context, logger *slog.Logger, lease domain.Lease, err error) error {
	switch {
	case errors.Is(err, domain.ErrLeaseLost):
		return err
	case errors.Is(err, domain.ErrImportSessionFinished):
		logger.Info("import session finished elsewhere, stopping run")
		return nil
	}
	return w.fail(ctx, lease, err)
}

func (w *ImportWorker) fail(ctx context.Context, lease domain.Lease, cause error) error {
	if ctx.Err() != nil && !errors.Is(cause, ErrWorkerStopped) {
		cause = fmt.Errorf("%w: %v", ErrWorkerStopped, cause)
	}
	failure := domain.GeneralError(truncateReason(cause.Error()))
	if err := w.sessions.Fail(context.WithoutCancel(ctx), lease, failure); err != nil {
		switch {
		case errors.Is(err, domain.ErrLeaseLost):
			return err
		case errors.Is(err, domain.ErrImportSessionFinished):
			return cause
		}
		return fmt.Errorf("%v; fail update failed: %w", cause, err)
	}
	return cause
}

func (w *ImportWorker) notify(ctx context.Context, sessionID string) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithFields(ctx, "import_id", sessionID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("import notifier panicked", "panic", r)
		}
	}()

	session, err := w.sessions.GetByID(ctx, sessionID)
	if err != nil {
		logger.Error("load import session for notification failed", "error", err)
		return
	}

	owner, err := w.users.GetByID(ctx, session.UserID)
	if err != nil {
		logger.Warn("load import owner failed", "user_id", session.UserID, "error", err)
		owner = domain.User{ID: session.UserID}
	}

	if err := w.notifier.NotifyImportFinished(ctx, domain.ImportFinished{Session: session, Owner: owner}); err != nil {
		logger.Error("import notification failed", "error", err)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	return reason[:maxLen]
}
