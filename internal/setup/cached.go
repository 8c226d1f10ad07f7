package setup

import (
	"context"
	"fmt"

	"modelsync/internal/cache"
	"modelsync/internal/ctxlog"
	"modelsync/internal/graph"
	"modelsync/internal/model"
)

// SetUpFromCache rebuilds the graph of the live modules from cached facts.
// A live module without a cache entry, or without its identity fact, yields
// a cache.ModelNotFoundError.
func (s *Setup) SetUpFromCache(ctx context.Context, liveKeys []model.ModuleKey, pc *cache.ProjectCache) (*Result, error) {
	g := graph.NewGraph()
	handles := make([]*cache.ModuleCache, 0, len(liveKeys))

	for _, key := range liveKeys {
		mc, ok := pc.FindCacheForModule(key)
		if !ok {
			return nil, &cache.ModelNotFoundError{Module: key}
		}
		id, err := cache.RequireModel[model.ModuleIdentity](mc)
		if err != nil {
			return nil, err
		}
		m, err := g.CreateModule(key, id.Name, id.RootDir)
		if err != nil {
			return nil, &Error{Module: key, Err: err}
		}
		m.BuildDir = id.BuildDir
		handles = append(handles, mc)
	}

	result := &Result{Graph: g}
	for i, mc := range handles {
		m := g.Modules[i]
		deps := restoreFlavor(m, mc)
		if _, ok := m.Flavor.(graph.Application); ok {
			result.Applications = append(result.Applications, m)
		}
		g.Wire(m, deps)
	}

	ctxlog.FromContext(ctx).Debug("modules restored from cache",
		"modules", len(g.Modules),
		"edges", len(g.Edges),
		"unresolved", len(g.Unresolved))
	return result, nil
}

func restoreFlavor(m *graph.Module, mc *cache.ModuleCache) []model.ModuleDependency {
	native, hasNative := cache.FindModel[model.NativeModule](mc)
	var nf *graph.Native
	if hasNative {
		nf = &graph.Native{Variant: native.SelectedVariant, Abi: native.SelectedAbi}
	}

	if app, ok := cache.FindModel[model.ApplicationModule](mc); ok {
		m.Flavor = graph.Application{Variant: app.SelectedVariant, Native: nf}
		return app.Dependencies
	}
	if nf != nil {
		m.Flavor = *nf
		return nil
	}
	if plain, ok := cache.FindModel[model.PlainModule](mc); ok {
		if plain.Origin == model.OriginArtifact {
			m.Flavor = artifactFlavor(plain.Artifacts)
		} else {
			m.Flavor = graph.PlainCode{Origin: plain.Origin}
		}
		return plain.Dependencies
	}
	m.Flavor = nil
	return nil
}

// ApplyVariantOnly swaps the variants fetched by a variant-only sync into the
// cached facts of the affected modules.
func (s *Setup) ApplyVariantOnly(ctx context.Context, pc *cache.ProjectCache, vo *model.VariantOnlyProjectModels) error {
	logger := ctxlog.FromContext(ctx)

	libs, _ := model.Find[model.GlobalLibraryMap](pc.ProjectModels())
	folders := make(map[model.ModuleKey]string)
	for _, key := range pc.Keys() {
		mc, _ := pc.FindCacheForModule(key)
		if id, ok := cache.FindModel[model.ModuleIdentity](mc); ok && id.BuildDir != "" {
			folders[key] = id.BuildDir
		}
	}
	index := newLibraryIndex(libs, folders)

	for _, vm := range vo.Modules {
		mc, ok := pc.FindCacheForModule(vm.Key)
		if !ok {
			return &cache.ModelNotFoundError{Module: vm.Key}
		}

		selected := ""
		if vm.Variant != nil {
			app, err := cache.RequireModel[model.ApplicationModule](mc)
			if err != nil {
				return err
			}
			app.Project = app.Project.WithVariant(*vm.Variant)
			app.SelectedVariant = vm.Variant.Name
			app.Dependencies = resolveVariant(ctx, s.Resolver, index, *vm.Variant)
			mc.AddModel(app)
			selected = vm.Variant.Name
		}

		if selected == "" {
			selected = vm.NativeVariant
		}
		if len(vm.NativeAbis) > 0 || vm.SelectedAbi != "" || vm.NativeVariant != "" {
			native, err := cache.RequireModel[model.NativeModule](mc)
			if err != nil {
				return err
			}
			applyNative(&native, vm, selected)
			mc.AddModel(native)
		}
		logger.Debug("variant applied", "module", vm.Key.String(), "variant", selected, "abi", vm.SelectedAbi)
	}
	return nil
}

func applyNative(native *model.NativeModule, vm model.VariantOnlyModule, selected string) {
	if selected != "" && native.Project.HasVariant(selected) {
		native.SelectedVariant = selected
	}
	if len(vm.NativeAbis) > 0 {
		kept := make([]model.NativeVariantAbi, 0, len(vm.NativeAbis))
		for _, va := range vm.NativeAbis {
			if va.Variant == native.SelectedVariant {
				kept = append(kept, va)
			}
		}
		native.VariantAbis = kept
	}
	if vm.SelectedAbi != "" && native.Project.HasAbi(vm.SelectedAbi) {
		native.SelectedAbi = vm.SelectedAbi
	}
}

// String is used in logs and CLI output.
func (r *Result) String() string {
	if r == nil || r.Graph == nil {
		return "no modules"
	}
	return fmt.Sprintf("%d modules, %d edges, %d applications", len(r.Graph.Modules), len(r.Graph.Edges), len(r.Applications))
}
