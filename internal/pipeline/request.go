package pipeline

import (
	"context"
	"errors"
	"sync"

	"modelsync/internal/setup"
	"modelsync/internal/variant"
	"modelsync/internal/workspace"
)

var (
	// ErrSyncInProgress is returned when a background request finds another
	// request already queued.
	ErrSyncInProgress = errors.New("a sync is already queued")

	errRejected = errors.New("rejected")
)

// Mode selects whether Sync blocks until the pass ends.
type Mode int

const (
	ModeModal Mode = iota
	ModeBackground
)

func (m Mode) String() string {
	if m == ModeBackground {
		return "background"
	}
	return "modal"
}

// Request describes one sync.
type Request struct {
	UseCachedModels        bool
	VariantOnly            *variant.SyncOptions
	SkipPluginUpgradeCheck bool
	Mode                   Mode
}

// Outcome is the terminal state of a pass.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Pass is one sync pass.
type Pass struct {
	ID      string
	Request Request

	mu      sync.Mutex
	done    chan struct{}
	outcome Outcome
	err     error
	result  *setup.Result
	stats   workspace.ApplyStats
}

func newPass(id string, req Request) *Pass {
	return &Pass{ID: id, Request: req, done: make(chan struct{}), outcome: OutcomePending}
}

func (p *Pass) finish(outcome Outcome, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outcome != OutcomePending {
		return
	}
	p.outcome = outcome
	p.err = err
	close(p.done)
}

// Done is closed when the pass ends.
func (p *Pass) Done() <-chan struct{} { return p.done }

// Wait blocks until the pass ends and returns its failure, if any.
func (p *Pass) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pass) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

func (p *Pass) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Result is the committed graph; nil unless the pass succeeded or skipped.
func (p *Pass) Result() *setup.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Stats reports how the workspace changed.
func (p *Pass) Stats() workspace.ApplyStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
