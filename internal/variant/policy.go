package variant

import (
	"sort"

	"modelsync/internal/model"
)

// DefaultVariantName is preferred when nothing was recorded for a module.
const DefaultVariantName = "debug"

// Policy picks variants and ABIs for modules without an explicit choice.
type Policy interface {
	SelectDefault(key model.ModuleKey, app model.ApplicationProject) (string, bool)
	SelectNativeVariant(key model.ModuleKey, native model.NativeProject, appVariant string) (string, bool)
	SelectAbi(key model.ModuleKey, native model.NativeProject) (string, bool)
}

// DefaultPolicy honours recorded selections first, then "debug", then the
// first variant by name.
type DefaultPolicy struct {
	Registry *Registry
}

func (p DefaultPolicy) SelectDefault(key model.ModuleKey, app model.ApplicationProject) (string, bool) {
	if len(app.Variants) == 0 {
		return "", false
	}
	if name, ok := p.recorded(key); ok {
		if _, found := app.FindVariant(name); found {
			return name, true
		}
	}
	if _, found := app.FindVariant(DefaultVariantName); found {
		return DefaultVariantName, true
	}
	return app.VariantNames()[0], true
}

func (p DefaultPolicy) SelectNativeVariant(key model.ModuleKey, native model.NativeProject, appVariant string) (string, bool) {
	if appVariant != "" && native.HasVariant(appVariant) {
		return appVariant, true
	}
	if name, ok := p.recorded(key); ok && native.HasVariant(name) {
		return name, true
	}
	if native.HasVariant(DefaultVariantName) {
		return DefaultVariantName, true
	}
	return first(native.VariantNames)
}

func (p DefaultPolicy) SelectAbi(key model.ModuleKey, native model.NativeProject) (string, bool) {
	if p.Registry != nil {
		if sel, ok := p.Registry.Lookup(key); ok && sel.Abi != "" && native.HasAbi(sel.Abi) {
			return sel.Abi, true
		}
	}
	return first(native.Abis)
}

func (p DefaultPolicy) recorded(key model.ModuleKey) (string, bool) {
	if p.Registry == nil {
		return "", false
	}
	return p.Registry.LookupSelection(key)
}

func first(names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted[0], true
}
