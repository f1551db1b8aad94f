package attendance

import (
	"context"
	"errors"
	"sync"
)

var (
	// errors resolved locally, without a network call
	ErrMissingTarget    = errors.New("no club or date selected")
	ErrAlreadyFinalized = errors.New("attendance for this date is already recorded and locked")
	ErrStaleDraft       = errors.New("draft superseded before submission completed")

	// errors surfaced by the backend; never retried automatically
	ErrConflict = errors.New("attendance for this date already exists")
)

// Submitter issues the single create request of a submission.
// Implementations report ErrConflict when a record for the (club, date)
// already exists server-side; the backend is the source of truth for
// at-most-one-record-per-(club,date).
type Submitter interface {
	CreateRecord(ctx context.Context, nr NewRecord) (Record, error)
}

// Coordinator turns a draft into exactly one durable record per (club, date).
// At most one draft is active per coordinator; a submission attempt is bound
// to the draft it was given, and a result arriving after that draft has been
// superseded or discarded is thrown away rather than applied.
type Coordinator struct {
	sub Submitter

	mu      sync.Mutex
	current *Draft
}

func NewCoordinator(sub Submitter) *Coordinator {
	return &Coordinator{sub: sub}
}

// Begin registers a draft as the active editing session, superseding any
// previous one.
func (c *Coordinator) Begin(d *Draft) {
	c.mu.Lock()
	c.current = d
	c.mu.Unlock()
}

// Discard abandons a draft; an in-flight submission for it will report
// ErrStaleDraft on arrival. Discarding a draft that is no longer current is
// a no-op.
func (c *Coordinator) Discard(d *Draft) {
	c.mu.Lock()
	if c.current == d {
		c.current = nil
	}
	c.mu.Unlock()
}

// Submit validates local preconditions, then issues one atomic create with
// the draft's state at the moment of the call. There is no per-student
// incremental save path. Conflict and validation failures propagate to the
// caller, who must re-fetch and re-reconcile; nothing is retried here.
func (c *Coordinator) Submit(ctx context.Context, d *Draft) (Record, error) {
	if d.ClubID == "" || !d.Date.Valid() {
		return Record{}, ErrMissingTarget
	}
	if d.finalized {
		return Record{}, ErrAlreadyFinalized
	}

	payload := d.Payload()
	rec, err := c.sub.CreateRecord(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != d {
		// late arrival for a superseded draft; drop the result
		return Record{}, ErrStaleDraft
	}
	if err != nil {
		// SUBMIT_FAILED: the draft stays editable for retry or cancel
		return Record{}, err
	}

	// SUBMITTED_LOCKED: terminal for this session; only an out-of-band
	// backend action reopens editability
	d.finalized = true
	c.current = nil
	return rec, nil
}
