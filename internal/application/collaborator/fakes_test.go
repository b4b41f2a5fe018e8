package collaborator_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

// fakeSessionStore mirrors the repository's guarded updates: a write under a
// released or superseded claim fails with ErrLeaseLost, and every write fails
// with ErrImportSessionFinished once the session is terminal.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.ImportSession
	claimed  map[string]bool

	createErr   error
	getErr      error
	listErr     error
	failErr     error
	addErrorErr error
	expired     []string
	depth       domain.QueueDepth

	onIncrement func(processed int64)
	heartbeats  int

	gotLimit, gotOffset int
	gotCutoff           time.Time
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: map[string]*domain.ImportSession{},
		claimed:  map[string]bool{},
	}
}

func (f *fakeSessionStore) Create(ctx context.Context, session domain.ImportSession) (domain.ImportSession, error) {
	if f.createErr != nil {
		return domain.ImportSession{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	session.ID = uuid.NewString()
	session.CreatedAt = time.Now().UTC()
	session.UpdatedAt = session.CreatedAt
	stored := session
	f.sessions[session.ID] = &stored
	return copySession(stored), nil
}

func (f *fakeSessionStore) put(session domain.ImportSession) domain.ImportSession {
	f.mu.Lock()
	defer f.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Errors == nil {
		session.Errors = map[int]domain.RowErrors{}
	}
	stored := session
	f.sessions[session.ID] = &stored
	return copySession(stored)
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id string) (domain.ImportSession, error) {
	if f.getErr != nil {
		return domain.ImportSession{}, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[id]
	if !ok {
		return domain.ImportSession{}, domain.ErrImportSessionNotFound
	}
	return copySession(*session), nil
}

func (f *fakeSessionStore) get(id string) domain.ImportSession {
	session, err := f.GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return session
}

func (f *fakeSessionStore) ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.ImportSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.sessions))
	for id := range f.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		session := f.sessions[id]
		if session.Status == domain.StatusProcessing && !f.claimed[id] {
			f.claimed[id] = true
			session.Attempts++
			claimed := copySession(*session)
			return &claimed, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) guarded(lease domain.Lease, update func(session *domain.ImportSession)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[lease.SessionID]
	if !ok {
		return domain.ErrImportSessionNotFound
	}
	if lease.Attempt > 0 && (!f.claimed[lease.SessionID] || session.Attempts != lease.Attempt) {
		return domain.ErrLeaseLost
	}
	if session.Status.IsTerminal() {
		return domain.ErrImportSessionFinished
	}
	update(session)
	return nil
}

// expire marks a claimed session's lease as lapsed so the next
// ReleaseExpired picks it up.
func (f *fakeSessionStore) expire(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, id)
}

func (f *fakeSessionStore) Heartbeat(ctx context.Context, lease domain.Lease, leaseDuration time.Duration) error {
	return f.guarded(lease, func(session *domain.ImportSession) {
		if session.StartedAt == nil {
			f.heartbeats++
		}
	})
}

// unstartedHeartbeats counts heartbeats received before the session started.
func (f *fakeSessionStore) unstartedHeartbeats() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

func (f *fakeSessionStore) Start(ctx context.Context, lease domain.Lease, totalRows int64) error {
	return f.guarded(lease, func(session *domain.ImportSession) {
		now := time.Now().UTC()
		session.TotalRows = &totalRows
		session.StartedAt = &now
	})
}

func (f *fakeSessionStore) Complete(ctx context.Context, lease domain.Lease) error {
	return f.guarded(lease, func(session *domain.ImportSession) {
		now := time.Now().UTC()
		session.Status = domain.StatusCompleted
		session.CompletedAt = &now
	})
}

func (f *fakeSessionStore) Fail(ctx context.Context, lease domain.Lease, failure domain.RowErrors) error {
	if f.failErr != nil {
		return f.failErr
	}
	return f.guarded(lease, func(session *domain.ImportSession) {
		now := time.Now().UTC()
		session.Status = domain.StatusFailed
		session.Failure = failure
		session.CompletedAt = &now
	})
}

// ReleaseExpired follows the repository: an expired session that never
// started goes back to the queue while it has attempts left, any other is
// failed. Both lose their claim.
func (f *fakeSessionStore) ReleaseExpired(ctx context.Context, maxAttempts int, failure domain.RowErrors) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	expired := f.expired
	f.expired = nil

	var failed []string
	for _, id := range expired {
		session, ok := f.sessions[id]
		if !ok || session.Status.IsTerminal() {
			continue
		}
		f.claimed[id] = false
		if session.StartedAt == nil && session.Attempts < maxAttempts {
			continue
		}
		now := time.Now().UTC()
		session.Status = domain.StatusFailed
		session.Failure = failure
		session.CompletedAt = &now
		failed = append(failed, id)
	}
	return failed, nil
}

func (f *fakeSessionStore) AddRowError(ctx context.Context, lease domain.Lease, line int, rowErrors domain.RowErrors) error {
	if f.addErrorErr != nil {
		return f.addErrorErr
	}
	return f.guarded(lease, func(session *domain.ImportSession) {
		if session.Errors == nil {
			session.Errors = map[int]domain.RowErrors{}
		}
		session.Errors[line] = rowErrors
	})
}

func (f *fakeSessionStore) IncrementCounters(ctx context.Context, lease domain.Lease, success bool) error {
	var processed int64
	err := f.guarded(lease, func(session *domain.ImportSession) {
		session.ProcessedRows++
		if success {
			session.SuccessfulRows++
		} else {
			session.FailedRows++
		}
		processed = session.ProcessedRows
	})
	if err == nil && f.onIncrement != nil {
		f.onIncrement(processed)
	}
	return err
}

func (f *fakeSessionStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.ImportSession, int64, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gotLimit, f.gotOffset = limit, offset
	var owned []domain.ImportSession
	for _, session := range f.sessions {
		if session.UserID == userID {
			owned = append(owned, copySession(*session))
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })

	total := int64(len(owned))
	if offset >= len(owned) {
		return []domain.ImportSession{}, total, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], total, nil
}

func (f *fakeSessionStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]domain.ImportSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gotCutoff = cutoff
	var deleted []domain.ImportSession
	for id, session := range f.sessions {
		if session.Status.IsTerminal() && session.CreatedAt.Before(cutoff) {
			deleted = append(deleted, copySession(*session))
			delete(f.sessions, id)
		}
	}
	return deleted, nil
}

func (f *fakeSessionStore) QueueDepth(ctx context.Context) (domain.QueueDepth, error) {
	return f.depth, nil
}

func copySession(session domain.ImportSession) domain.ImportSession {
	errs := make(map[int]domain.RowErrors, len(session.Errors))
	for line, rowErrors := range session.Errors {
		errs[line] = rowErrors
	}
	session.Errors = errs
	return session
}

type fakeCollaboratorStore struct {
	mu        sync.Mutex
	created   []domain.Collaborator
	existsErr error
	createErr error
	panicOn   string
}

func (f *fakeCollaboratorStore) Exists(ctx context.Context, field domain.Field, value string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.created {
		switch {
		case field == domain.FieldEmail && c.Email == value:
			return true, nil
		case field == domain.FieldCPF && c.CPF == value:
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCollaboratorStore) Create(ctx context.Context, c domain.Collaborator) (domain.Collaborator, error) {
	if f.panicOn != "" && c.Email == f.panicOn {
		panic("store exploded")
	}
	if f.createErr != nil {
		return domain.Collaborator{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	c.ID = int64(len(f.created) + 1)
	f.created = append(f.created, c)
	return c, nil
}

func (f *fakeCollaboratorStore) all() []domain.Collaborator {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Collaborator(nil), f.created...)
}

type fakeUsers struct {
	err error
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (domain.User, error) {
	if f.err != nil {
		return domain.User{}, f.err
	}
	return domain.User{ID: id, Name: "Manager", Email: "manager@example.com"}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.ImportFinished
	err    error
	panics bool
	sent   chan domain.ImportFinished
}

func (f *fakeNotifier) NotifyImportFinished(ctx context.Context, event domain.ImportFinished) error {
	if f.panics {
		panic("notifier exploded")
	}
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	if f.sent != nil {
		f.sent <- event
	}
	return f.err
}

func (f *fakeNotifier) calls() []domain.ImportFinished {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ImportFinished(nil), f.events...)
}

type fakeSource struct {
	files map[string]string
	open  func() (io.ReadCloser, error)
}

func (f *fakeSource) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	if f.open != nil {
		return f.open()
	}
	data, ok := f.files[filename]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", filename, os.ErrNotExist)
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

type fakeUploads struct {
	saved     map[string]string
	removed   []string
	saveErr   error
	removeErr error
}

func (f *fakeUploads) Save(ctx context.Context, originalFilename string, content io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	if f.saved == nil {
		f.saved = map[string]string{}
	}
	name := "stored_" + originalFilename
	f.saved[name] = string(data)
	return name, nil
}

func (f *fakeUploads) Remove(ctx context.Context, filename string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, filename)
	return nil
}

var errDatabaseDown = errors.New("db down")
