package setup

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelsync/internal/cache"
	"modelsync/internal/graph"
	"modelsync/internal/model"
	"modelsync/internal/storage"
	"modelsync/internal/variant"
)

func key(path string) model.ModuleKey { return model.ModuleKey{Path: path} }

func gradle(path string) model.GradleProject {
	name := strings.TrimPrefix(path, ":")
	return model.GradleProject{
		Path:       path,
		Name:       name,
		ProjectDir: "/p/" + name,
		BuildDir:   "/p/" + name + "/build",
	}
}

func variantWith(name string, deps ...model.FlatDependency) model.Variant {
	return model.Variant{Name: name, MainArtifact: model.Artifact{Name: "main", Dependencies: deps}}
}

func newFactory(t *testing.T) *cache.Factory {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return cache.NewFactory(store)
}

func aggregate(t *testing.T, modules map[string]*model.Container, order ...string) *model.ProjectModels {
	t.Helper()
	p := model.NewProjectModels()
	for _, path := range order {
		require.NoError(t, p.AddModule(key(path), modules[path]))
	}
	return p
}

func newSetup() *Setup {
	return New(variant.DefaultPolicy{Registry: variant.NewRegistry()})
}

func flavorOf(t *testing.T, r *Result, path string) graph.Flavor {
	t.Helper()
	m, ok := r.Graph.Lookup(key(path))
	require.True(t, ok, "module %s not in graph", path)
	return m.Flavor
}

func TestSetUpModules_FlavorPriority(t *testing.T) {
	ctx := context.Background()
	native := model.NativeProject{Name: "jni", Abis: []string{"x86", "arm64-v8a"}, VariantNames: []string{"debug", "release"}}

	modules := map[string]*model.Container{
		":both": model.NewContainer(
			gradle(":both"),
			model.ApplicationProject{Variants: []model.Variant{variantWith("debug"), variantWith("release")}},
			native,
			model.NativeVariantAbi{Variant: "debug", Abi: "x86"},
			model.NativeVariantAbi{Variant: "release", Abi: "x86"},
		),
		":novariant": model.NewContainer(
			gradle(":novariant"),
			model.ApplicationProject{},
			native,
		),
		":native":   model.NewContainer(gradle(":native"), native),
		":java":     model.NewContainer(gradle(":java"), model.JavaProject{Name: "java"}),
		":prebuilt": model.NewContainer(gradle(":prebuilt"), model.ArtifactModel{Name: "aar", Artifacts: []string{"/libs/x.aar"}}),
		":":         model.NewContainer(gradle(":"), model.ArtifactModel{}),
		":bare":     model.NewContainer(gradle(":bare")),
	}
	models := aggregate(t, modules, ":both", ":novariant", ":native", ":java", ":prebuilt", ":", ":bare")

	r, err := newSetup().SetUpModules(ctx, models, newFactory(t).CreateNew())
	require.NoError(t, err)

	t.Run("application with native", func(t *testing.T) {
		assert.Equal(t, graph.Application{Variant: "debug", Native: &graph.Native{Variant: "debug", Abi: "arm64-v8a"}}, flavorOf(t, r, ":both"))
		facts, _ := models.Module(key(":both"))
		nm, ok := model.Find[model.NativeModule](facts)
		require.True(t, ok)
		assert.Equal(t, []model.NativeVariantAbi{{Variant: "debug", Abi: "x86"}}, nm.VariantAbis)
		require.Len(t, r.Applications, 1)
		assert.Equal(t, key(":both"), r.Applications[0].Key)
	})

	t.Run("application without variant degrades", func(t *testing.T) {
		assert.Equal(t, graph.PlainCode{Origin: model.OriginApplicationWithoutVariant}, flavorOf(t, r, ":novariant"))
		assert.Equal(t, []model.ModuleKey{key(":novariant")}, r.Degraded)
		facts, _ := models.Module(key(":novariant"))
		assert.False(t, facts.Has(model.KindNativeModule), "later states are skipped")
		assert.False(t, facts.Has(model.KindApplicationModule))
	})

	t.Run("remaining flavors", func(t *testing.T) {
		assert.Equal(t, graph.Native{Variant: "debug", Abi: "arm64-v8a"}, flavorOf(t, r, ":native"))
		assert.Equal(t, graph.PlainCode{Origin: model.OriginJava}, flavorOf(t, r, ":java"))
		assert.Equal(t, graph.Prebuilt{Artifacts: []string{"/libs/x.aar"}}, flavorOf(t, r, ":prebuilt"))
		assert.Equal(t, graph.Umbrella{}, flavorOf(t, r, ":"))
		assert.Nil(t, flavorOf(t, r, ":bare"))
	})
}

func TestSetUpModules_TwoPhaseWiring(t *testing.T) {
	ctx := context.Background()
	// :x is processed before :y but depends on it.
	modules := map[string]*model.Container{
		":x": model.NewContainer(gradle(":x"), model.JavaProject{
			Dependencies: []model.FlatDependency{{ProjectPath: ":y"}, {ProjectPath: ":missing"}},
		}),
		":y": model.NewContainer(gradle(":y"), model.JavaProject{}),
	}
	r, err := newSetup().SetUpModules(ctx, aggregate(t, modules, ":x", ":y"), newFactory(t).CreateNew())
	require.NoError(t, err)

	deps := r.Graph.GetDependencies(key(":x"))
	require.Len(t, deps, 1)
	assert.Equal(t, key(":y"), deps[0].Key)
	assert.Equal(t, map[graph.UnresolvedReason]int{graph.ReasonNoModule: 1}, r.Graph.UnresolvedReasonCounts())
}

func TestSetUpModules_DependencyForms(t *testing.T) {
	ctx := context.Background()

	withGraph := model.Variant{
		Name: "debug",
		MainArtifact: model.Artifact{
			// The flat list is ignored when the graph form is present.
			Dependencies:    []model.FlatDependency{{ProjectPath: ":flat"}},
			DependencyGraph: &model.DependencyGraph{Compile: []string{"@@:lib::debug", "com.example:util:1.0"}},
			Libraries:       []string{"local-aar"},
		},
	}
	modules := map[string]*model.Container{
		":app":     model.NewContainer(gradle(":app"), model.ApplicationProject{Variants: []model.Variant{withGraph}}),
		":lib":     model.NewContainer(gradle(":lib"), model.JavaProject{}),
		":flat":    model.NewContainer(gradle(":flat"), model.JavaProject{}),
		":wrapped": model.NewContainer(gradle(":wrapped"), model.ArtifactModel{Artifacts: []string{"wrapped.aar"}}),
	}
	models := aggregate(t, modules, ":app", ":lib", ":flat", ":wrapped")
	models.SetProject(model.NewContainer(model.GlobalLibraryMap{Libraries: map[string]model.Library{
		"local-aar": {Address: "local-aar", Artifact: "/p/wrapped/build/outputs/wrapped.aar"},
	}}))

	r, err := newSetup().SetUpModules(ctx, models, newFactory(t).CreateNew())
	require.NoError(t, err)

	app, _ := r.Graph.Lookup(key(":app"))
	lib, _ := r.Graph.Lookup(key(":lib"))
	wrapped, _ := r.Graph.Lookup(key(":wrapped"))
	assert.Equal(t, []graph.Edge{
		{From: app.Index, To: lib.Index, Variant: "debug"},
		{From: app.Index, To: wrapped.Index},
	}, r.Graph.EdgesFrom(app.Index))
}

func TestSetUpModules_Idempotent(t *testing.T) {
	ctx := context.Background()
	modules := map[string]*model.Container{
		":app": model.NewContainer(gradle(":app"), model.ApplicationProject{Variants: []model.Variant{
			variantWith("debug", model.FlatDependency{ProjectPath: ":lib", Variant: "debug"}),
		}}),
		":lib": model.NewContainer(gradle(":lib"), model.ApplicationProject{Variants: []model.Variant{variantWith("debug")}}),
		":jvm": model.NewContainer(gradle(":jvm"), model.JavaProject{Dependencies: []model.FlatDependency{{ProjectPath: ":lib"}}}),
	}
	models := aggregate(t, modules, ":app", ":lib", ":jvm")
	s := newSetup()

	first, err := s.SetUpModules(ctx, models, newFactory(t).CreateNew())
	require.NoError(t, err)
	second, err := s.SetUpModules(ctx, models, newFactory(t).CreateNew())
	require.NoError(t, err)

	if diff := cmp.Diff(first.Graph.Modules, second.Graph.Modules); diff != "" {
		t.Errorf("modules differ between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Graph.Edges, second.Graph.Edges); diff != "" {
		t.Errorf("edges differ between runs (-first +second):\n%s", diff)
	}
}

func TestSetUpModules_FlavorChangeClearsStaleFacts(t *testing.T) {
	ctx := context.Background()
	facts := model.NewContainer(
		gradle(":app"),
		model.ApplicationProject{Variants: []model.Variant{variantWith("debug")}},
		model.NativeProject{Abis: []string{"x86_64"}, VariantNames: []string{"debug"}},
		model.NativeVariantAbi{Variant: "debug", Abi: "x86_64"},
	)
	models := aggregate(t, map[string]*model.Container{":app": facts}, ":app")
	s := newSetup()
	pc := newFactory(t).CreateNew()

	r, err := s.SetUpModules(ctx, models, pc)
	require.NoError(t, err)
	require.IsType(t, graph.Application{}, flavorOf(t, r, ":app"))
	require.True(t, facts.Has(model.KindApplicationModule))
	require.True(t, facts.Has(model.KindNativeModule))

	// The next pass only reports a plain Java project for the same module.
	facts.Remove(model.KindApplicationProject)
	facts.Remove(model.KindNativeProject)
	facts.Remove(model.KindNativeVariantAbi)
	facts.Add(model.JavaProject{Name: "app"})

	r, err = s.SetUpModules(ctx, models, pc)
	require.NoError(t, err)
	assert.Equal(t, graph.PlainCode{Origin: model.OriginJava}, flavorOf(t, r, ":app"))
	assert.Empty(t, r.Applications)

	mc, ok := pc.FindCacheForModule(key(":app"))
	require.True(t, ok)
	for name, c := range map[string]*model.Container{"live": facts, "cache": mc.Facts()} {
		assert.False(t, c.Has(model.KindApplicationModule), "%s container keeps application module", name)
		assert.False(t, c.Has(model.KindNativeModule), "%s container keeps native module", name)
		assert.True(t, c.Has(model.KindPlainModule), "%s container lacks plain module", name)
	}
}

func TestSetUpModules_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	modules := map[string]*model.Container{
		":app": model.NewContainer(gradle(":app"), model.ApplicationProject{Variants: []model.Variant{
			variantWith("debug", model.FlatDependency{ProjectPath: ":lib", Variant: "debug"}),
			variantWith("release", model.FlatDependency{ProjectPath: ":lib", Variant: "release"}),
		}}),
		":lib": model.NewContainer(gradle(":lib"), model.ApplicationProject{Variants: []model.Variant{
			variantWith("debug"), variantWith("release"),
		}}),
	}
	pc := f.CreateNew()
	r, err := newSetup().SetUpModules(ctx, aggregate(t, modules, ":app", ":lib"), pc)
	require.NoError(t, err)

	assert.Equal(t, graph.Application{Variant: "debug"}, flavorOf(t, r, ":app"))
	assert.Equal(t, graph.Application{Variant: "debug"}, flavorOf(t, r, ":lib"))
	require.Len(t, r.Graph.Edges, 1)
	e := r.Graph.Edges[0]
	assert.Equal(t, key(":app"), r.Graph.Modules[e.From].Key)
	assert.Equal(t, key(":lib"), r.Graph.Modules[e.To].Key)
	assert.Equal(t, "debug", e.Variant)

	require.NoError(t, pc.SaveToDisk(ctx))
	loaded := f.LoadFromDisk(ctx)
	require.NotNil(t, loaded)
	assert.Equal(t, []model.ModuleKey{key(":app"), key(":lib")}, loaded.Keys())
	for _, k := range loaded.Keys() {
		mc, _ := loaded.FindCacheForModule(k)
		_, err := cache.RequireModel[model.ModuleIdentity](mc)
		assert.NoError(t, err)
		app, err := cache.RequireModel[model.ApplicationModule](mc)
		require.NoError(t, err)
		assert.Equal(t, "debug", app.SelectedVariant)
	}
}

func TestSetUpModules_FatalConditions(t *testing.T) {
	ctx := context.Background()

	t.Run("missing identity", func(t *testing.T) {
		modules := map[string]*model.Container{
			":ok":     model.NewContainer(gradle(":ok")),
			":broken": model.NewContainer(model.JavaProject{}),
		}
		_, err := newSetup().SetUpModules(ctx, aggregate(t, modules, ":ok", ":broken"), newFactory(t).CreateNew())
		var setupErr *Error
		require.ErrorAs(t, err, &setupErr)
		assert.Equal(t, key(":broken"), setupErr.Module)
		assert.ErrorIs(t, err, ErrMissingIdentity)
	})

	t.Run("unresolvable root", func(t *testing.T) {
		gp := gradle(":rel")
		gp.BuildID = "inc"
		gp.ProjectDir = "rel"
		models := model.NewProjectModels()
		require.NoError(t, models.AddModule(gp.Key(), model.NewContainer(gp)))
		_, err := newSetup().SetUpModules(ctx, models, newFactory(t).CreateNew())
		assert.ErrorIs(t, err, ErrNoRootFolder)
	})
}

func TestProjectRootResolver(t *testing.T) {
	r := ProjectRootResolver{Roots: model.BuildRoots{
		RootBuildID: "main",
		Builds:      map[string]string{"main": "/work/main", "inc": "/work/inc"},
	}}

	dir, err := r.RootFolderOf(model.GradleProject{ProjectDir: "/abs/app/"})
	require.NoError(t, err)
	assert.Equal(t, "/abs/app", dir)

	dir, err = r.RootFolderOf(model.GradleProject{ProjectDir: "app"})
	require.NoError(t, err)
	assert.Equal(t, "/work/main/app", dir)

	dir, err = r.RootFolderOf(model.GradleProject{BuildID: "inc", ProjectDir: "lib"})
	require.NoError(t, err)
	assert.Equal(t, "/work/inc/lib", dir)

	_, err = r.RootFolderOf(model.GradleProject{})
	assert.ErrorIs(t, err, ErrNoRootFolder)
}
