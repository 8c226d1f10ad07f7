// Package setup classifies modules and wires their dependency edges.
//
// Setup always runs in two passes over the aggregate. The first pass creates
// every module in the graph and registers it by key; the second pass picks
// each module's flavor from the facts it carries and wires its edges by key
// lookup. Fatal conditions are detected in the first pass, so a failing pass
// never leaves half-configured modules behind.
package setup

import (
	"context"
	"fmt"
	"log/slog"

	"modelsync/internal/cache"
	"modelsync/internal/ctxlog"
	"modelsync/internal/graph"
	"modelsync/internal/model"
	"modelsync/internal/resolver"
	"modelsync/internal/variant"
)

// Result is the classified project graph of one pass.
type Result struct {
	Graph *graph.Graph

	// Applications lists modules configured with the application flavor, for
	// post-processing once the pass commits.
	Applications []*graph.Module

	// Degraded lists modules whose application facts could not be used.
	Degraded []model.ModuleKey
}

// Setup holds the collaborators used to classify modules.
type Setup struct {
	Resolver *resolver.Resolver
	Policy   variant.Policy

	// Roots places modules on disk. When nil, a ProjectRootResolver over the
	// aggregate's BuildRoots fact is used.
	Roots RootResolver
}

// New returns a Setup with the default resolver.
func New(policy variant.Policy) *Setup {
	return &Setup{Resolver: resolver.NewDefaultResolver(), Policy: policy}
}

// moduleContext binds a module's live fact container to its cache handle so
// that every derived fact is written to both.
type moduleContext struct {
	key    model.ModuleKey
	module *graph.Module
	facts  *model.Container
	cached *cache.ModuleCache
}

func (mc *moduleContext) addModel(f model.Fact) {
	mc.facts.Add(f)
	mc.cached.AddModel(f)
}

var derivedKinds = []model.Kind{
	model.KindApplicationModule,
	model.KindNativeModule,
	model.KindPlainModule,
}

func (mc *moduleContext) resetDerived() {
	for _, k := range derivedKinds {
		mc.facts.Remove(k)
		mc.cached.RemoveModel(k)
	}
}

// SetUpModules classifies every module of models from freshly fetched facts
// and mirrors the derived facts into pc.
func (s *Setup) SetUpModules(ctx context.Context, models *model.ProjectModels, pc *cache.ProjectCache) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	project := models.Project()
	pc.SetProjectModels(project)

	roots := s.Roots
	if roots == nil {
		buildRoots, _ := model.Find[model.BuildRoots](project)
		roots = ProjectRootResolver{Roots: buildRoots}
	}

	g := graph.NewGraph()
	keys := models.Keys()
	contexts := make([]*moduleContext, 0, len(keys))

	// Pass 1: create every module before any edge is resolved.
	for _, key := range keys {
		facts, _ := models.Module(key)
		gp, ok := model.Find[model.GradleProject](facts)
		if !ok {
			return nil, &Error{Module: key, Err: ErrMissingIdentity}
		}
		rootDir, err := roots.RootFolderOf(gp)
		if err != nil {
			return nil, &Error{Module: key, Err: err}
		}
		name := gp.Name
		if name == "" {
			name = key.Path
		}
		m, err := g.CreateModule(key, name, rootDir)
		if err != nil {
			return nil, &Error{Module: key, Err: err}
		}
		m.BuildDir = gp.BuildDir

		mc := &moduleContext{key: key, module: m, facts: facts, cached: pc.AddModule(key)}
		mc.addModel(model.ModuleIdentity{
			BuildID:  key.BuildID,
			Path:     key.Path,
			Name:     name,
			RootDir:  rootDir,
			BuildDir: gp.BuildDir,
		})
		contexts = append(contexts, mc)
	}

	libs, _ := model.Find[model.GlobalLibraryMap](project)
	c := &classifier{
		setup:     s,
		graph:     g,
		libraries: newLibraryIndex(libs, models.BuildFolders()),
		logger:    logger,
		result:    &Result{Graph: g},
	}

	// Pass 2: configure and wire.
	for _, mc := range contexts {
		c.configure(ctx, mc)
	}

	logger.Debug("modules set up",
		"modules", len(g.Modules),
		"edges", len(g.Edges),
		"unresolved", len(g.Unresolved),
		"flavors", fmt.Sprint(g.FlavorCounts()))
	return c.result, nil
}

type classifier struct {
	setup     *Setup
	graph     *graph.Graph
	libraries *libraryIndex
	logger    *slog.Logger
	result    *Result
}

// configure evaluates the flavor states in priority order; the first match
// wins.
func (c *classifier) configure(ctx context.Context, mc *moduleContext) {
	mc.resetDerived()
	m := mc.module
	m.Flavor = nil

	var appFlavor *graph.Application
	var deps []model.ModuleDependency

	if app, ok := model.Find[model.ApplicationProject](mc.facts); ok {
		name, selected := c.setup.Policy.SelectDefault(mc.key, app)
		if !selected {
			c.logger.Info("application module has no selectable variant, configuring as plain code",
				"module", mc.key.String())
			mc.addModel(model.PlainModule{
				Name:    m.Name,
				RootDir: m.RootDir,
				Origin:  model.OriginApplicationWithoutVariant,
			})
			m.Flavor = graph.PlainCode{Origin: model.OriginApplicationWithoutVariant}
			c.graph.Wire(m, nil)
			c.result.Degraded = append(c.result.Degraded, mc.key)
			return
		}

		v, _ := app.FindVariant(name)
		deps = c.variantDependencies(ctx, v)
		mc.addModel(model.ApplicationModule{
			Name:            m.Name,
			RootDir:         m.RootDir,
			SelectedVariant: name,
			Project:         app,
			Dependencies:    deps,
		})
		appFlavor = &graph.Application{Variant: name}
		c.result.Applications = append(c.result.Applications, m)
	}

	if native, ok := model.Find[model.NativeProject](mc.facts); ok {
		appVariant := ""
		if appFlavor != nil {
			appVariant = appFlavor.Variant
		}
		if nf, ok := c.configureNative(mc, native, appVariant); ok {
			if appFlavor != nil {
				appFlavor.Native = &nf
			} else {
				m.Flavor = nf
				c.graph.Wire(m, nil)
				return
			}
		}
	}

	if appFlavor != nil {
		m.Flavor = *appFlavor
		c.graph.Wire(m, deps)
		return
	}

	if java, ok := model.Find[model.JavaProject](mc.facts); ok {
		raw := resolver.RawDependencies{Flat: java.Dependencies, Addresses: java.DependencyAddresses}
		deps, _ := c.setup.Resolver.Resolve(ctx, raw)
		deps = resolver.Dedupe(append(deps, c.libraries.moduleDependencies(java.Libraries)...))
		mc.addModel(model.PlainModule{
			Name:         m.Name,
			RootDir:      m.RootDir,
			Origin:       model.OriginJava,
			Dependencies: deps,
		})
		m.Flavor = graph.PlainCode{Origin: model.OriginJava}
		c.graph.Wire(m, deps)
		return
	}

	if artifacts, ok := model.Find[model.ArtifactModel](mc.facts); ok {
		mc.addModel(model.PlainModule{
			Name:      m.Name,
			RootDir:   m.RootDir,
			Origin:    model.OriginArtifact,
			Artifacts: artifacts.Artifacts,
		})
		m.Flavor = artifactFlavor(artifacts.Artifacts)
		c.graph.Wire(m, nil)
		return
	}

	// No flavor: the module keeps only its identity.
	c.graph.Wire(m, nil)
}

func (c *classifier) configureNative(mc *moduleContext, native model.NativeProject, appVariant string) (graph.Native, bool) {
	policy := c.setup.Policy
	name, ok := policy.SelectNativeVariant(mc.key, native, appVariant)
	if !ok {
		c.logger.Info("native module has no selectable variant", "module", mc.key.String())
		return graph.Native{}, false
	}
	abi, _ := policy.SelectAbi(mc.key, native)

	var variantAbis []model.NativeVariantAbi
	for _, va := range model.FindAll[model.NativeVariantAbi](mc.facts) {
		if va.Variant == name {
			variantAbis = append(variantAbis, va)
		}
	}
	mc.addModel(model.NativeModule{
		Name:            mc.module.Name,
		RootDir:         mc.module.RootDir,
		SelectedVariant: name,
		SelectedAbi:     abi,
		Project:         native,
		VariantAbis:     variantAbis,
	})
	return graph.Native{Variant: name, Abi: abi}, true
}

// variantDependencies resolves the main artifact's dependencies: the level-4
// graph when present, the level-1 list otherwise.
func (c *classifier) variantDependencies(ctx context.Context, v model.Variant) []model.ModuleDependency {
	return resolveVariant(ctx, c.setup.Resolver, c.libraries, v)
}

func resolveVariant(ctx context.Context, r *resolver.Resolver, libs *libraryIndex, v model.Variant) []model.ModuleDependency {
	artifact := v.MainArtifact
	var raw resolver.RawDependencies
	if artifact.DependencyGraph != nil {
		raw.Addresses = artifact.DependencyGraph.Compile
	} else {
		raw.Flat = artifact.Dependencies
		if raw.Flat == nil {
			raw.Flat = []model.FlatDependency{}
		}
	}
	deps, _ := r.Resolve(ctx, raw)
	return resolver.Dedupe(append(deps, libs.moduleDependencies(artifact.Libraries)...))
}

func artifactFlavor(artifacts []string) graph.Flavor {
	if len(artifacts) == 0 {
		return graph.Umbrella{}
	}
	return graph.Prebuilt{Artifacts: artifacts}
}
