// Package batch issues the cancellation tokens shared by the jobs of one
// submitted batch.
//
// Every token carries an epoch from a monotonically increasing counter. When a
// new batch is submitted the previous token is cancelled with ErrSuperseded and
// runners that captured the older epoch treat the newer epoch as an implicit
// cancellation. Tokens are never disposed while runners still hold them, so
// there is no use-after-dispose window.
package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	// ErrCancelled is the cause recorded when a caller requests cancellation.
	ErrCancelled = errors.New("batch cancelled")
	// ErrSuperseded is the cause recorded when a newer batch replaced this one.
	ErrSuperseded = errors.New("batch superseded")
	// ErrClosed is returned by Sequencer.Next after Close.
	ErrClosed = errors.New("batch sequencer closed")
)

// Token is the cancellation signal shared by all jobs of one batch.
type Token struct {
	id    string
	epoch uint64
	seq   *Sequencer

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu        sync.RWMutex
	cancelled bool
}

// ID returns the batch identifier.
func (t *Token) ID() string { return t.id }

// Epoch returns the batch epoch.
func (t *Token) Epoch() uint64 { return t.epoch }

// Context returns a context that is done once the token is cancelled.
func (t *Token) Context() context.Context { return t.ctx }

// RequestCancel cancels the token. It is idempotent and safe after the batch
// has settled.
func (t *Token) RequestCancel() {
	t.cancelWithCause(ErrCancelled)
}

func (t *Token) cancelWithCause(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	t.cancel(cause)
}

// Cancelled reports whether the token was cancelled or superseded.
func (t *Token) Cancelled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cancelled || t.Stale()
}

// Stale reports whether a newer epoch has been issued.
func (t *Token) Stale() bool {
	return t.seq != nil && t.seq.current.Load() > t.epoch
}

// Cause returns ErrCancelled or ErrSuperseded once the token is done, nil
// before.
func (t *Token) Cause() error {
	if t.Stale() {
		if cause := context.Cause(t.ctx); cause != nil {
			return cause
		}
		return ErrSuperseded
	}
	return context.Cause(t.ctx)
}

// Admit runs fn only while the token is live, holding the token's lock so a
// concurrent RequestCancel either happens before (fn does not run) or after
// fn returns. It reports whether fn ran.
func (t *Token) Admit(fn func()) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.cancelled || t.Stale() {
		return false
	}
	fn()
	return true
}

// Sequencer issues tokens with increasing epochs. At most one token is live.
type Sequencer struct {
	root    context.Context
	current atomic.Uint64

	mu     sync.Mutex
	live   *Token
	closed bool
}

// NewSequencer returns a sequencer whose tokens derive from root.
func NewSequencer(root context.Context) *Sequencer {
	if root == nil {
		root = context.Background()
	}
	return &Sequencer{root: root}
}

// Next supersedes the live token, if any, and returns a new one.
func (s *Sequencer) Next() (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	previous := s.live
	ctx, cancel := context.WithCancelCause(s.root)
	token := &Token{
		id:     uuid.NewString(),
		epoch:  s.current.Load() + 1,
		seq:    s,
		ctx:    ctx,
		cancel: cancel,
	}
	if previous != nil {
		previous.cancelWithCause(ErrSuperseded)
	}
	s.current.Store(token.epoch)
	s.live = token
	return token, nil
}

// Current returns the live token, or nil when none was issued yet.
func (s *Sequencer) Current() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Epoch returns the newest epoch issued.
func (s *Sequencer) Epoch() uint64 {
	return s.current.Load()
}

// Close cancels the live token and refuses further tokens. Close is
// idempotent.
func (s *Sequencer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.live != nil {
		s.live.RequestCancel()
	}
}
