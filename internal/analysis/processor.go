package analysis

import (
	"context"

	"modelsync/internal/ctxlog"
	"modelsync/internal/graph"
	"modelsync/internal/settings"
	"modelsync/internal/setup"
	"modelsync/internal/variant"
)

// Processor runs project-wide work after a pass commits.
type Processor interface {
	Name() string
	Process(ctx context.Context, result *setup.Result) error
}

// ApplicationModuleProcessor records the variant of every application module
// so the next pass, and variant-only syncs, start from it.
type ApplicationModuleProcessor struct {
	Registry *variant.Registry
}

func (p *ApplicationModuleProcessor) Name() string { return "application-modules" }

func (p *ApplicationModuleProcessor) Process(_ context.Context, result *setup.Result) error {
	for _, m := range result.Applications {
		app, ok := m.Flavor.(graph.Application)
		if !ok {
			continue
		}
		if app.Native == nil {
			p.Registry.RecordSelection(m.Key, app.Variant)
			continue
		}
		p.Registry.Record(m.Key, variant.Selection{Variant: app.Variant, Abi: app.Native.Abi})
	}
	return nil
}

// CycleReporter logs modules that form cycles through variant-bearing edges.
type CycleReporter struct{}

func (CycleReporter) Name() string { return "variant-cycles" }

func (CycleReporter) Process(ctx context.Context, result *setup.Result) error {
	logger := ctxlog.FromContext(ctx)
	for _, cycle := range VariantCycles(result.Graph) {
		modules := make([]string, 0, len(cycle))
		for _, k := range cycle {
			modules = append(modules, k.String())
		}
		logger.Warn("variant dependency cycle", "modules", modules)
	}
	return nil
}

// DeclaredModulesReporter warns about projects included by the settings
// script under Root that the provider did not report.
type DeclaredModulesReporter struct {
	Root string
}

func (DeclaredModulesReporter) Name() string { return "declared-modules" }

func (p DeclaredModulesReporter) Process(ctx context.Context, result *setup.Result) error {
	logger := ctxlog.FromContext(ctx)
	s, err := settings.Load(ctx, p.Root)
	if err != nil {
		logger.Warn("cannot read settings script", "error", err)
		return nil
	}
	if s == nil {
		return nil
	}
	if missing := MissingDeclared(result.Graph, s.Includes); len(missing) > 0 {
		logger.Warn("declared projects missing from sync", "file", s.File, "projects", missing)
	}
	return nil
}

// MissingDeclared returns the included project paths with no root-build
// module in g.
func MissingDeclared(g *graph.Graph, includes []string) []string {
	present := make(map[string]bool, len(g.Modules))
	for _, m := range g.Modules {
		if m.Key.BuildID == "" {
			present[m.Key.Path] = true
		}
	}
	var missing []string
	for _, inc := range includes {
		if !present[inc] {
			missing = append(missing, inc)
		}
	}
	return missing
}
