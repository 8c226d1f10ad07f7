package provider

import (
	"context"
	"fmt"
	"os"

	"modelsync/internal/model"
	"modelsync/internal/variant"
)

// DumpProvider serves models from a JSON dump previously written by the
// build tool.
type DumpProvider struct {
	Path string
}

func (p *DumpProvider) read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(ctx, err)
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read model dump: %w", err)
	}
	return data, nil
}

func (p *DumpProvider) Fetch(ctx context.Context, req Request) (*model.ProjectModels, error) {
	data, err := p.read(ctx)
	if err != nil {
		return nil, err
	}
	var selected map[model.ModuleKey]variant.Selection
	if req.SingleVariant {
		selected = req.SelectedVariants
	}
	return ParseDump(data, selected)
}

// FetchVariantOnly extracts the requested variant of one module from the
// full dump.
func (p *DumpProvider) FetchVariantOnly(ctx context.Context, _ Request, opts variant.SyncOptions) (*model.VariantOnlyProjectModels, error) {
	data, err := p.read(ctx)
	if err != nil {
		return nil, err
	}
	models, err := ParseDump(data, nil)
	if err != nil {
		return nil, err
	}
	facts, ok := models.Module(opts.Module)
	if !ok {
		return nil, fmt.Errorf("module %s not in model dump", opts.Module)
	}

	vm := model.VariantOnlyModule{Key: opts.Module, SelectedAbi: opts.Abi}
	if app, ok := model.Find[model.ApplicationProject](facts); ok {
		v, found := app.FindVariant(opts.Variant)
		if !found {
			return nil, fmt.Errorf("module %s has no variant %q", opts.Module, opts.Variant)
		}
		vm.Variant = &v
	}
	if native, ok := model.Find[model.NativeProject](facts); ok {
		switch {
		case native.HasVariant(opts.Variant):
			vm.NativeVariant = opts.Variant
		case vm.Variant == nil:
			return nil, fmt.Errorf("native module %s has no variant %q", opts.Module, opts.Variant)
		}
	}
	for _, va := range model.FindAll[model.NativeVariantAbi](facts) {
		if va.Variant == opts.Variant {
			vm.NativeAbis = append(vm.NativeAbis, va)
		}
	}
	return &model.VariantOnlyProjectModels{Modules: []model.VariantOnlyModule{vm}}, nil
}
