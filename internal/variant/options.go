package variant

import (
	"fmt"
	"strings"

	"modelsync/internal/model"
)

// SyncOptions narrows a sync to one module's variant change.
type SyncOptions struct {
	Module          model.ModuleKey `json:"module"`
	Variant         string          `json:"variant"`
	Abi             string          `json:"abi,omitempty"`
	GenerateSources bool            `json:"generate_sources,omitempty"`
}

// ParseSyncOption parses "module=variant[:abi]", e.g. ":app=release:x86_64"
// or "inc@@:lib=debug".
func ParseSyncOption(s string) (SyncOptions, error) {
	module, rest, ok := strings.Cut(s, "=")
	if !ok {
		return SyncOptions{}, fmt.Errorf("invalid variant option %q: expected module=variant[:abi]", s)
	}
	key, ok := model.ParseModuleKey(module)
	if !ok {
		return SyncOptions{}, fmt.Errorf("invalid module %q", module)
	}
	name, abi, _ := strings.Cut(strings.TrimSpace(rest), ":")
	if name == "" {
		return SyncOptions{}, fmt.Errorf("invalid variant option %q: missing variant", s)
	}
	return SyncOptions{Module: key, Variant: name, Abi: abi}, nil
}

// Apply records the option in the registry.
func (o SyncOptions) Apply(r *Registry) {
	sel, _ := r.Lookup(o.Module)
	sel.Variant = o.Variant
	if o.Abi != "" {
		sel.Abi = o.Abi
	}
	r.Record(o.Module, sel)
}
