// Package model holds the per-module fact store and the project-wide
// aggregate produced by one synchronization pass.
package model

import "strings"

// AddressSeparator joins a build id and a module path in a module address.
const AddressSeparator = "@@"

// ModuleKey identifies a module across the whole project, including modules
// contributed by nested (composite) builds.
type ModuleKey struct {
	BuildID string `json:"build_id" yaml:"build_id"`
	Path    string `json:"path" yaml:"path"`
}

// String renders the key in address form: "build@@:path", or just ":path"
// for modules of the root build.
func (k ModuleKey) String() string {
	if k.BuildID == "" {
		return k.Path
	}
	return k.BuildID + AddressSeparator + k.Path
}

// Less orders keys by build id, then path.
func (k ModuleKey) Less(o ModuleKey) bool {
	if k.BuildID != o.BuildID {
		return k.BuildID < o.BuildID
	}
	return k.Path < o.Path
}

// ParseModuleKey parses the String form of a key. A value without the
// separator is a path in the root build.
func ParseModuleKey(s string) (ModuleKey, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModuleKey{}, false
	}
	build, path, found := strings.Cut(s, AddressSeparator)
	if !found {
		return ModuleKey{Path: s}, true
	}
	if path == "" {
		return ModuleKey{}, false
	}
	return ModuleKey{BuildID: build, Path: path}, true
}

// ModuleDependency is a resolved edge request: the owning module depends on
// Target, and if Target is variant-aware it should use Variant/Abi unless the
// target overrides them locally.
type ModuleDependency struct {
	Target  ModuleKey `json:"target"`
	Variant string    `json:"variant,omitempty"`
	Abi     string    `json:"abi,omitempty"`
}
