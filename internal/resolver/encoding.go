package resolver

import (
	"context"
	"path"
	"regexp"
	"strings"

	"modelsync/internal/ctxlog"
	"modelsync/internal/model"
)

// addressPattern matches "buildId@@path" with an optional "::variant" suffix.
var addressPattern = regexp.MustCompile(`^([^@]*)@@([^@]+?)(?:::([^@:]+))?$`)

// CreateUniqueModuleID builds the project-wide key of a module. Blank build
// ids collapse to the root build; non-empty ids are kept distinct.
func CreateUniqueModuleID(buildID, modulePath string) model.ModuleKey {
	buildID = strings.TrimSpace(buildID)
	if buildID != "" {
		buildID = path.Clean(filepathToSlash(buildID))
	}
	return model.ModuleKey{BuildID: buildID, Path: strings.TrimSpace(modulePath)}
}

func filepathToSlash(s string) string {
	return strings.ReplaceAll(s, `\`, "/")
}

// ParseAddress parses a single address string. ok is false when s is not a
// module address, e.g. an external library coordinate.
func ParseAddress(s string) (model.ModuleDependency, bool) {
	m := addressPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return model.ModuleDependency{}, false
	}
	return model.ModuleDependency{
		Target:  CreateUniqueModuleID(m[1], m[2]),
		Variant: m[3],
	}, true
}

// FlatListEncoding decodes the level-1 dependency list.
type FlatListEncoding struct{}

func (FlatListEncoding) Name() string { return "flat" }

func (FlatListEncoding) Applies(raw RawDependencies) bool { return raw.Flat != nil }

func (FlatListEncoding) Decode(_ context.Context, raw RawDependencies) ([]model.ModuleDependency, ResolveStats) {
	var stats ResolveStats
	deps := make([]model.ModuleDependency, 0, len(raw.Flat))
	for _, d := range raw.Flat {
		stats.Attempted++
		if strings.TrimSpace(d.ProjectPath) == "" {
			stats.Skipped++
			continue
		}
		deps = append(deps, model.ModuleDependency{
			Target:  CreateUniqueModuleID(d.BuildID, d.ProjectPath),
			Variant: d.Variant,
			Abi:     d.Abi,
		})
		stats.Resolved++
	}
	return deps, stats
}

// AddressEncoding decodes "buildId@@path(::variant)?" strings. Entries that do
// not match are dropped.
type AddressEncoding struct{}

func (AddressEncoding) Name() string { return "address" }

func (AddressEncoding) Applies(RawDependencies) bool { return true }

func (AddressEncoding) Decode(ctx context.Context, raw RawDependencies) ([]model.ModuleDependency, ResolveStats) {
	logger := ctxlog.FromContext(ctx)
	var stats ResolveStats
	deps := make([]model.ModuleDependency, 0, len(raw.Addresses))
	for _, addr := range raw.Addresses {
		stats.Attempted++
		dep, ok := ParseAddress(addr)
		if !ok {
			stats.Skipped++
			logger.Debug("dropping non-module dependency address", "address", addr)
			continue
		}
		deps = append(deps, dep)
		stats.Resolved++
	}
	return deps, stats
}
