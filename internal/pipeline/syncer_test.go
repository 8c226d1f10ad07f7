package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelsync/internal/analysis"
	"modelsync/internal/cache"
	"modelsync/internal/graph"
	"modelsync/internal/model"
	"modelsync/internal/provider"
	"modelsync/internal/setup"
	"modelsync/internal/storage"
	"modelsync/internal/variant"
	"modelsync/internal/workspace"
)

var (
	appKey = model.ModuleKey{Path: ":app"}
	libKey = model.ModuleKey{Path: ":lib"}
)

func gradle(path, dir string) model.GradleProject {
	return model.GradleProject{Path: path, Name: path[1:], ProjectDir: dir, BuildDir: dir + "/build"}
}

func flatVariant(name string) model.Variant {
	return model.Variant{Name: name, MainArtifact: model.Artifact{
		Dependencies: []model.FlatDependency{{ProjectPath: ":lib", Variant: name}},
	}}
}

// newModels returns a fresh aggregate; setup mutates the containers it gets.
func newModels() *model.ProjectModels {
	p := model.NewProjectModels()
	_ = p.AddModule(appKey, model.NewContainer(
		gradle(":app", "/p/app"),
		model.ApplicationProject{Variants: []model.Variant{flatVariant("debug"), flatVariant("release")}},
	))
	_ = p.AddModule(libKey, model.NewContainer(gradle(":lib", "/p/lib"), model.JavaProject{}))
	return p
}

type fakeProvider struct {
	mu           sync.Mutex
	fetches      int
	variantCalls int
	fetch        func(ctx context.Context, req provider.Request) (*model.ProjectModels, error)
	variantOnly  func(ctx context.Context, opts variant.SyncOptions) (*model.VariantOnlyProjectModels, error)
}

func (f *fakeProvider) Fetch(ctx context.Context, req provider.Request) (*model.ProjectModels, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if f.fetch != nil {
		return f.fetch(ctx, req)
	}
	return newModels(), nil
}

func (f *fakeProvider) FetchVariantOnly(ctx context.Context, _ provider.Request, opts variant.SyncOptions) (*model.VariantOnlyProjectModels, error) {
	f.mu.Lock()
	f.variantCalls++
	f.mu.Unlock()
	return f.variantOnly(ctx, opts)
}

func (f *fakeProvider) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeChecksums struct {
	fresh   bool
	err     error
	updates int
}

func (c *fakeChecksums) CanUseCachedData(context.Context) (bool, error) { return c.fresh, c.err }
func (c *fakeChecksums) Update(context.Context) error {
	c.updates++
	return nil
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingListener) SetupStarted()         { l.add("setup_started") }
func (l *recordingListener) SyncSucceeded()        { l.add("succeeded") }
func (l *recordingListener) SyncSkipped()          { l.add("skipped") }
func (l *recordingListener) SyncFailed(msg string) { l.add("failed: " + msg) }

func (l *recordingListener) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fixture struct {
	syncer    *Syncer
	provider  *fakeProvider
	checksums *fakeChecksums
	caches    *cache.Factory
	workspace *workspace.Workspace
	registry  *variant.Registry
	committed []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		provider:  &fakeProvider{},
		checksums: &fakeChecksums{fresh: true},
		caches:    cache.NewFactory(store),
		workspace: &workspace.Workspace{Project: "demo"},
		registry:  variant.NewRegistry(),
	}
	f.syncer = NewSyncer(Options{
		ProjectRoot: "/p",
		Provider:    f.provider,
		Checksums:   f.checksums,
		Caches:      f.caches,
		Setup:       setup.New(variant.DefaultPolicy{Registry: f.registry}),
		Workspace:   f.workspace,
		Registry:    f.registry,
		Processors: []analysis.Processor{
			&analysis.ApplicationModuleProcessor{Registry: f.registry},
			analysis.CycleReporter{},
		},
		OnCommitted: func(_ context.Context, p *Pass) error {
			f.committed = append(f.committed, p.ID)
			return nil
		},
	})
	return f
}

func (f *fixture) sync(t *testing.T, req Request) (*Pass, *recordingListener) {
	t.Helper()
	l := &recordingListener{}
	p, err := f.syncer.Sync(context.Background(), req, l)
	require.NoError(t, err)
	return p, l
}

func TestSyncer_FullSync(t *testing.T) {
	f := newFixture(t)
	p, l := f.sync(t, Request{})

	require.NoError(t, p.Err())
	assert.Equal(t, OutcomeSucceeded, p.Outcome())
	assert.Equal(t, []string{"setup_started", "succeeded"}, l.Events())
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []string{p.ID}, f.committed)

	assert.Equal(t, []model.ModuleKey{appKey, libKey}, f.workspace.Keys())
	app, _ := f.workspace.Lookup(appKey)
	assert.Equal(t, graph.FlavorApplication, app.Flavor)
	assert.Equal(t, []workspace.Dependency{{Target: libKey, Variant: "debug"}}, app.Dependencies)
	assert.Equal(t, p.ID, f.workspace.LastPassID)

	name, ok := f.registry.LookupSelection(appKey)
	require.True(t, ok)
	assert.Equal(t, "debug", name)

	assert.Equal(t, 1, f.checksums.updates)
	pc := f.caches.LoadFromDisk(context.Background())
	require.NotNil(t, pc)
	assert.Equal(t, []model.ModuleKey{appKey, libKey}, pc.Keys())
}

func TestSyncer_SkipsWithFreshCache(t *testing.T) {
	f := newFixture(t)
	f.sync(t, Request{})
	require.Equal(t, 1, f.provider.fetchCount())

	p, l := f.sync(t, Request{UseCachedModels: true})
	require.NoError(t, p.Err())
	assert.Equal(t, OutcomeSkipped, p.Outcome())
	assert.Equal(t, []string{"setup_started", "skipped"}, l.Events())
	assert.Equal(t, 1, f.provider.fetchCount(), "provider not called")
	assert.Equal(t, graph.Application{Variant: "debug"}, p.Result().Graph.Modules[0].Flavor)
}

func TestSyncer_StaleChecksumsRunFullSync(t *testing.T) {
	f := newFixture(t)
	f.sync(t, Request{})
	f.checksums.fresh = false

	p, l := f.sync(t, Request{UseCachedModels: true})
	assert.Equal(t, OutcomeSucceeded, p.Outcome())
	assert.Equal(t, []string{"setup_started", "succeeded"}, l.Events())
	assert.Equal(t, 2, f.provider.fetchCount())
}

func TestSyncer_CacheMissFallsBackToFullSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Cache holds :app without its identity fact.
	pc := f.caches.CreateNew()
	pc.AddModule(appKey).AddModel(model.PlainModule{Origin: model.OriginJava})
	pc.AddModule(libKey).AddModel(model.ModuleIdentity{Path: ":lib", Name: "lib"})
	require.NoError(t, pc.SaveToDisk(ctx))
	f.workspace.Modules = []workspace.Module{{Key: appKey}, {Key: libKey}}

	loaded := f.caches.LoadFromDisk(ctx)
	require.NotNil(t, loaded)
	_, err := f.syncer.opts.Setup.SetUpFromCache(ctx, f.workspace.Keys(), loaded)
	require.ErrorIs(t, err, cache.ErrModelNotFound)

	p, l := f.sync(t, Request{UseCachedModels: true})
	require.NoError(t, p.Err())
	assert.Equal(t, OutcomeSucceeded, p.Outcome())
	assert.Equal(t, []string{"setup_started", "succeeded"}, l.Events(), "fallback is not reported as a failure")
	assert.Equal(t, 1, f.provider.fetchCount())
}

func TestSyncer_ProviderRejection(t *testing.T) {
	f := newFixture(t)
	f.workspace.Modules = []workspace.Module{{Key: appKey, Flavor: graph.FlavorPlainCode}}
	f.provider.fetch = func(context.Context, provider.Request) (*model.ProjectModels, error) {
		return nil, errors.New("connection refused")
	}

	p, l := f.sync(t, Request{})
	assert.Equal(t, OutcomeFailed, p.Outcome())
	assert.EqualError(t, p.Err(), "connection refused")
	assert.Equal(t, []string{"failed: connection refused"}, l.Events())
	assert.Equal(t, []workspace.Module{{Key: appKey, Flavor: graph.FlavorPlainCode}}, f.workspace.Modules, "nothing committed")
	assert.Empty(t, f.committed)
}

type blankError struct{}

func (blankError) Error() string { return "" }

func TestSyncer_RejectionReportsRootCause(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "wrapped cause", err: fmt.Errorf("model provider failed: %w", errors.New("connection refused")), want: "connection refused"},
		{name: "blank cause", err: blankError{}, want: "pipeline.blankError"},
		{name: "wrapped blank cause", err: fmt.Errorf("fetch: %w", blankError{}), want: "pipeline.blankError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.fetch = func(context.Context, provider.Request) (*model.ProjectModels, error) {
				return nil, tt.err
			}
			p, l := f.sync(t, Request{})
			assert.Equal(t, []string{"failed: " + tt.want}, l.Events())
			assert.ErrorIs(t, p.Err(), tt.err)
		})
	}
}

func TestSyncer_FatalSetupError(t *testing.T) {
	f := newFixture(t)
	f.provider.fetch = func(context.Context, provider.Request) (*model.ProjectModels, error) {
		p := model.NewProjectModels()
		_ = p.AddModule(appKey, model.NewContainer(model.JavaProject{}))
		return p, nil
	}

	p, l := f.sync(t, Request{})
	assert.Equal(t, OutcomeFailed, p.Outcome())
	assert.ErrorIs(t, p.Err(), setup.ErrMissingIdentity)
	assert.Equal(t, []string{"setup_started", "failed: " + setup.ErrMissingIdentity.Error()}, l.Events())
	assert.Empty(t, f.workspace.Modules)
}

func TestSyncer_Cancellation(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	f.provider.fetch = func(ctx context.Context, _ provider.Request) (*model.ProjectModels, error) {
		close(started)
		<-ctx.Done()
		return nil, provider.ErrCancelled
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &recordingListener{}
	p, err := f.syncer.Sync(ctx, Request{Mode: ModeBackground}, l)
	require.NoError(t, err)

	<-started
	cancel()
	waitCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	err = p.Wait(waitCtx)
	assert.ErrorIs(t, err, provider.ErrCancelled)
	assert.Equal(t, OutcomeFailed, p.Outcome())
	assert.Len(t, l.Events(), 1)
}

func TestSyncer_VariantOnly(t *testing.T) {
	f := newFixture(t)
	f.sync(t, Request{})

	f.provider.variantOnly = func(_ context.Context, opts variant.SyncOptions) (*model.VariantOnlyProjectModels, error) {
		v := flatVariant(opts.Variant)
		return &model.VariantOnlyProjectModels{Modules: []model.VariantOnlyModule{{Key: opts.Module, Variant: &v}}}, nil
	}

	opts := variant.SyncOptions{Module: appKey, Variant: "release"}
	p, l := f.sync(t, Request{VariantOnly: &opts})
	require.NoError(t, p.Err())
	assert.Equal(t, []string{"setup_started", "succeeded"}, l.Events())
	assert.Equal(t, 1, f.provider.fetchCount(), "no full fetch")

	app, _ := f.workspace.Lookup(appKey)
	assert.Equal(t, "release", app.Variant)
	assert.Equal(t, []workspace.Dependency{{Target: libKey, Variant: "release"}}, app.Dependencies)
	name, _ := f.registry.LookupSelection(appKey)
	assert.Equal(t, "release", name)

	// The cache now restores the new variant.
	restored, _ := f.sync(t, Request{UseCachedModels: true})
	assert.Equal(t, OutcomeSkipped, restored.Outcome())
	assert.Equal(t, graph.Application{Variant: "release"}, restored.Result().Graph.Modules[0].Flavor)
}

func TestSyncer_VariantOnlyWithoutCache(t *testing.T) {
	f := newFixture(t)
	opts := variant.SyncOptions{Module: appKey, Variant: "release"}
	p, l := f.sync(t, Request{VariantOnly: &opts})
	assert.Equal(t, OutcomeFailed, p.Outcome())
	require.Len(t, l.Events(), 1)
	assert.Contains(t, l.Events()[0], "run a full sync first")
	assert.Zero(t, f.provider.variantCalls)
}

func TestSyncer_OnePassAtATime(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	f.provider.fetch = func(context.Context, provider.Request) (*model.ProjectModels, error) {
		started <- struct{}{}
		<-release
		return newModels(), nil
	}
	ctx := context.Background()

	first, err := f.syncer.Sync(ctx, Request{Mode: ModeBackground}, nil)
	require.NoError(t, err)
	<-started

	second, err := f.syncer.Sync(ctx, Request{Mode: ModeBackground}, nil)
	require.NoError(t, err, "one background request may wait")

	_, err = f.syncer.Sync(ctx, Request{Mode: ModeBackground}, nil)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	select {
	case <-started:
		t.Fatal("second pass started while the first was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, first.Wait(ctx))
	require.NoError(t, second.Wait(ctx))
	assert.Equal(t, 2, f.provider.fetchCount())
}
