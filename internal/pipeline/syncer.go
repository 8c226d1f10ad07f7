// Package pipeline drives sync passes: it decides between restoring the
// project from the model cache and a full resync, fetches models from the
// provider asynchronously, commits the classified graph and reports the
// outcome to a listener.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelsync/internal/analysis"
	"modelsync/internal/cache"
	"modelsync/internal/ctxlog"
	"modelsync/internal/model"
	"modelsync/internal/provider"
	"modelsync/internal/setup"
	"modelsync/internal/variant"
	"modelsync/internal/workspace"
)

// FreshnessChecker tells whether cached models still match the build files.
type FreshnessChecker interface {
	CanUseCachedData(ctx context.Context) (bool, error)
	Update(ctx context.Context) error
}

// Options wires a Syncer to its collaborators.
type Options struct {
	ProjectRoot   string
	SingleVariant bool

	Provider   provider.Provider
	Checksums  FreshnessChecker
	Caches     *cache.Factory
	Setup      *setup.Setup
	Workspace  *workspace.Workspace
	Registry   *variant.Registry
	Processors []analysis.Processor

	// OnCommitted runs after a pass has committed, before the listener is
	// told about the outcome. A failure fails the pass.
	OnCommitted func(ctx context.Context, p *Pass) error
}

// Syncer runs at most one pass at a time. Further requests wait for the
// active pass; at most one background request may be waiting.
type Syncer struct {
	opts Options
	slot chan struct{}

	mu               sync.Mutex
	queuedBackground bool
}

func NewSyncer(opts Options) *Syncer {
	if opts.Registry == nil {
		opts.Registry = variant.NewRegistry()
	}
	if opts.Workspace == nil {
		opts.Workspace = &workspace.Workspace{}
	}
	return &Syncer{opts: opts, slot: make(chan struct{}, 1)}
}

// Sync starts a pass. In modal mode it returns once the pass has ended; in
// background mode it returns immediately and the caller may Wait on the pass.
func (s *Syncer) Sync(ctx context.Context, req Request, l Listener) (*Pass, error) {
	if l == nil {
		l = NopListener{}
	}
	if req.Mode == ModeBackground {
		s.mu.Lock()
		if s.queuedBackground {
			s.mu.Unlock()
			return nil, ErrSyncInProgress
		}
		s.queuedBackground = true
		s.mu.Unlock()
	}

	p := newPass(uuid.NewString(), req)
	go s.run(ctx, p, l)

	if req.Mode == ModeModal {
		<-p.done
	}
	return p, nil
}

func (s *Syncer) run(ctx context.Context, p *Pass, l Listener) {
	logger := ctxlog.FromContext(ctx).With("pass", p.ID)
	ctx = ctxlog.WithLogger(ctx, logger)

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		s.dequeue(p)
		s.fail(ctx, p, l, fmt.Errorf("%w: %v", provider.ErrCancelled, ctx.Err()))
		return
	}
	s.dequeue(p)
	defer func() { <-s.slot }()

	start := time.Now()
	logger.Info("sync started",
		"mode", p.Request.Mode.String(),
		"cached", p.Request.UseCachedModels,
		"variant_only", p.Request.VariantOnly != nil)

	switch {
	case p.Request.VariantOnly != nil:
		s.variantOnly(ctx, p, l)
	case p.Request.UseCachedModels && s.trySkip(ctx, p, l):
	default:
		s.full(ctx, p, l)
	}

	<-p.done
	logger.Info("sync finished", "outcome", string(p.Outcome()), "elapsed", time.Since(start).String())
}

func (s *Syncer) dequeue(p *Pass) {
	if p.Request.Mode != ModeBackground {
		return
	}
	s.mu.Lock()
	s.queuedBackground = false
	s.mu.Unlock()
}

// trySkip restores the project from the model cache. It reports false when
// the caller should run a full sync instead.
func (s *Syncer) trySkip(ctx context.Context, p *Pass, l Listener) bool {
	logger := ctxlog.FromContext(ctx)

	if s.opts.Checksums != nil {
		fresh, err := s.opts.Checksums.CanUseCachedData(ctx)
		if err != nil {
			logger.Warn("cannot verify build file checksums", "error", err)
			return false
		}
		if !fresh {
			logger.Info("build files changed, running full sync")
			return false
		}
	}

	liveKeys := s.opts.Workspace.Keys()
	if len(liveKeys) == 0 {
		logger.Info("no modules in workspace, running full sync")
		return false
	}

	pc := s.opts.Caches.LoadFromDisk(ctx)
	if pc == nil {
		logger.Warn("no usable model cache, running full sync")
		return false
	}

	result, err := s.opts.Setup.SetUpFromCache(ctx, liveKeys, pc)
	if err != nil {
		if errors.Is(err, cache.ErrModelNotFound) {
			logger.Warn("cached models incomplete, running full sync", "error", err)
		} else {
			logger.Warn("restoring from cache failed, running full sync", "error", err)
		}
		return false
	}

	l.SetupStarted()
	commitCtx := context.WithoutCancel(ctx)
	if err := s.commit(commitCtx, p, result, false); err != nil {
		s.fail(commitCtx, p, l, err)
		return true
	}
	l.SyncSkipped()
	p.finish(OutcomeSkipped, nil)
	return true
}

func (s *Syncer) fetchRequest() provider.Request {
	req := provider.Request{
		ProjectRoot:   s.opts.ProjectRoot,
		SingleVariant: s.opts.SingleVariant,
	}
	if s.opts.SingleVariant {
		req.SelectedVariants = s.opts.Registry.Snapshot()
	}
	return req
}

func (s *Syncer) full(ctx context.Context, p *Pass, l Listener) {
	req := s.fetchRequest()
	req.SkipPluginUpgradeCheck = p.Request.SkipPluginUpgradeCheck

	callback := NewCallback[*model.ProjectModels]()
	callback.
		DoWhenDone(func(models *model.ProjectModels) {
			s.commitFull(context.WithoutCancel(ctx), p, l, models)
		}).
		DoWhenRejected(func(err error) {
			s.fail(ctx, p, l, err)
		})

	go func() {
		models, err := s.opts.Provider.Fetch(ctx, req)
		if err != nil {
			callback.SetRejected(err)
			return
		}
		callback.SetDone(models)
	}()
}

func (s *Syncer) commitFull(ctx context.Context, p *Pass, l Listener, models *model.ProjectModels) {
	logger := ctxlog.FromContext(ctx)

	l.SetupStarted()
	pc := s.opts.Caches.CreateNew()
	result, err := s.opts.Setup.SetUpModules(ctx, models, pc)
	if err != nil {
		s.fail(ctx, p, l, err)
		return
	}

	if err := pc.SaveToDisk(ctx); err != nil {
		s.fail(ctx, p, l, err)
		return
	}
	if err := s.commit(ctx, p, result, true); err != nil {
		s.fail(ctx, p, l, err)
		return
	}
	if s.opts.Checksums != nil {
		if err := s.opts.Checksums.Update(ctx); err != nil {
			logger.Warn("could not store build file checksums", "error", err)
		}
	}

	l.SyncSucceeded()
	p.finish(OutcomeSucceeded, nil)
}

func (s *Syncer) variantOnly(ctx context.Context, p *Pass, l Listener) {
	opts := *p.Request.VariantOnly

	pc := s.opts.Caches.LoadFromDisk(ctx)
	if pc == nil {
		s.fail(ctx, p, l, errors.New("variant-only sync needs cached project models, run a full sync first"))
		return
	}

	req := s.fetchRequest()
	req.SkipPluginUpgradeCheck = p.Request.SkipPluginUpgradeCheck

	callback := NewCallback[*model.VariantOnlyProjectModels]()
	callback.
		DoWhenDone(func(vo *model.VariantOnlyProjectModels) {
			s.commitVariantOnly(context.WithoutCancel(ctx), p, l, pc, opts, vo)
		}).
		DoWhenRejected(func(err error) {
			s.fail(ctx, p, l, err)
		})

	go func() {
		vo, err := s.opts.Provider.FetchVariantOnly(ctx, req, opts)
		if err != nil {
			callback.SetRejected(err)
			return
		}
		callback.SetDone(vo)
	}()
}

func (s *Syncer) commitVariantOnly(ctx context.Context, p *Pass, l Listener, pc *cache.ProjectCache, opts variant.SyncOptions, vo *model.VariantOnlyProjectModels) {
	logger := ctxlog.FromContext(ctx)

	l.SetupStarted()
	if err := s.opts.Setup.ApplyVariantOnly(ctx, pc, vo); err != nil {
		s.fail(ctx, p, l, err)
		return
	}
	result, err := s.opts.Setup.SetUpFromCache(ctx, pc.Keys(), pc)
	if err != nil {
		s.fail(ctx, p, l, err)
		return
	}

	opts.Apply(s.opts.Registry)
	if err := pc.SaveToDisk(ctx); err != nil {
		s.fail(ctx, p, l, err)
		return
	}
	if err := s.commit(ctx, p, result, false); err != nil {
		s.fail(ctx, p, l, err)
		return
	}

	impact := analysis.NewAnalyzer(result.Graph).AnalyzeImpact([]model.ModuleKey{opts.Module})
	logger.Info("variant changed",
		"module", opts.Module.String(),
		"variant", opts.Variant,
		"affected_modules", len(impact.DirectlyAffected)+len(impact.IndirectlyAffected))

	l.SyncSucceeded()
	p.finish(OutcomeSucceeded, nil)
}

// commit applies result to the workspace and runs post-processing. There is
// no rollback: a failure here leaves what was already applied.
func (s *Syncer) commit(ctx context.Context, p *Pass, result *setup.Result, disposeObsolete bool) error {
	logger := ctxlog.FromContext(ctx)

	ws := s.opts.Workspace
	stats := ws.Apply(result.Graph, disposeObsolete)
	ws.LastPassID = p.ID
	ws.SyncedAt = time.Now().UTC()

	p.mu.Lock()
	p.result = result
	p.stats = stats
	p.mu.Unlock()

	logger.Info("modules committed",
		"modules", len(result.Graph.Modules),
		"added", stats.Added,
		"updated", stats.Updated,
		"disposed", stats.Disposed,
		"unresolved_edges", len(result.Graph.Unresolved))
	for _, key := range result.Degraded {
		logger.Info("module degraded to plain code", "module", key.String())
	}

	for _, proc := range s.opts.Processors {
		if err := proc.Process(ctx, result); err != nil {
			return fmt.Errorf("%s: %w", proc.Name(), err)
		}
	}
	if s.opts.OnCommitted != nil {
		if err := s.opts.OnCommitted(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) fail(ctx context.Context, p *Pass, l Listener, err error) {
	msg := failureMessage(err)
	ctxlog.FromContext(ctx).Error("sync failed", "error", err.Error(), "cause", msg)
	l.SyncFailed(msg)
	p.finish(OutcomeFailed, err)
}

// failureMessage is the root cause's message, or its type when the message
// is blank. Joined errors stop the unwrapping and count as the root.
func failureMessage(err error) string {
	root := err
	for next := errors.Unwrap(root); next != nil; next = errors.Unwrap(root) {
		root = next
	}
	if msg := strings.TrimSpace(root.Error()); msg != "" {
		return msg
	}
	return fmt.Sprintf("%T", root)
}
