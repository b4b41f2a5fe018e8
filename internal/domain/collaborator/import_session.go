package collaborator

import (
	"fmt"
	"math"
	"time"
)

type ImportStatus string

const (
	StatusProcessing ImportStatus = "processing"
	StatusCompleted  ImportStatus = "completed"
	StatusFailed     ImportStatus = "failed"
)

// GeneralErrorKey holds errors that do not belong to a single field.
const GeneralErrorKey = "general"

func (s ImportStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s ImportStatus) Valid() bool {
	return s == StatusProcessing || s == StatusCompleted || s == StatusFailed
}

// Transition validates a status change. Row updates are processing -> processing;
// the only other legal moves are processing -> completed and processing -> failed.
func Transition(from, to ImportStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %q -> %q", ErrIllegalTransition, from, to)
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: session is %s", ErrImportSessionFinished, from)
	}
	return nil
}

// TransitionSources lists the statuses a session may be in before moving to to.
// Repositories use it as the guard of every conditional update.
func TransitionSources(to ImportStatus) []ImportStatus {
	var sources []ImportStatus
	for _, from := range []ImportStatus{StatusProcessing, StatusCompleted, StatusFailed} {
		if Transition(from, to) == nil {
			sources = append(sources, from)
		}
	}
	return sources
}

// RowErrors maps a field name (or GeneralErrorKey) to its messages.
type RowErrors map[string][]string

func (e RowErrors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func GeneralError(message string) RowErrors {
	return RowErrors{GeneralErrorKey: {message}}
}

type ImportSession struct {
	ID               string
	UserID           string
	Filename         string
	OriginalFilename string
	Status           ImportStatus
	Options          ImportOptions
	TotalRows        *int64
	ProcessedRows    int64
	SuccessfulRows   int64
	FailedRows       int64
	// Errors is keyed by physical line number; line 1 is the header when present.
	Errors      map[int]RowErrors
	Failure     RowErrors
	Attempts    int
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewImportSession returns a session in its initial state.
func NewImportSession(userID, filename, originalFilename string, opts ImportOptions) ImportSession {
	return ImportSession{
		UserID:           userID,
		Filename:         filename,
		OriginalFilename: originalFilename,
		Status:           StatusProcessing,
		Options:          opts,
		Errors:           map[int]RowErrors{},
	}
}

// Cancel validates that the session can still be cancelled.
func (s ImportSession) Cancel() error {
	if s.Status != StatusProcessing {
		return ErrNotCancellable
	}
	return Transition(s.Status, StatusFailed)
}

func (s ImportSession) ProgressPercentage() float64 {
	if s.TotalRows == nil || *s.TotalRows == 0 {
		return 0
	}
	pct := float64(s.ProcessedRows) / float64(*s.TotalRows) * 100
	return math.Round(pct*100) / 100
}

func (s ImportSession) IsSuccessful() bool {
	return s.Status == StatusCompleted && s.FailedRows == 0
}

// Duration is nil until the run has both started and finished.
func (s ImportSession) Duration() *time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return nil
	}
	d := s.CompletedAt.Sub(*s.StartedAt)
	return &d
}

// Lease identifies one worker's claim on a session. Attempt is the session's
// attempts counter when it was claimed; writes made under a lease fail with
// ErrLeaseLost once the claim has been released or taken over. A zero Attempt
// writes without checking the claim.
type Lease struct {
	SessionID string
	Attempt   int
}

// Lease returns the claim held by whoever claimed s.
func (s ImportSession) Lease() Lease {
	return Lease{SessionID: s.ID, Attempt: s.Attempts}
}

// ImportFinished is emitted once per run when the session reaches a terminal state.
type ImportFinished struct {
	Session ImportSession
	Owner   User
}

// QueueDepth summarises the import backlog.
type QueueDepth struct {
	Queued  int64 `json:"queued"`
	Running int64 `json:"running"`
	Stale   int64 `json:"stale"`
}
