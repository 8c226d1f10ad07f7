package model

import "fmt"

// ProjectModels is the aggregate produced by one sync pass: one Container per
// module in insertion order, plus a container of project-wide facts.
type ProjectModels struct {
	keys    []ModuleKey
	modules map[ModuleKey]*Container
	project *Container
}

// NewProjectModels returns an empty aggregate.
func NewProjectModels() *ProjectModels {
	return &ProjectModels{
		modules: make(map[ModuleKey]*Container),
		project: NewContainer(),
	}
}

// AddModule registers the container for key. Keys must be unique.
func (p *ProjectModels) AddModule(key ModuleKey, c *Container) error {
	if _, exists := p.modules[key]; exists {
		return fmt.Errorf("duplicate module key %s", key)
	}
	if c == nil {
		c = NewContainer()
	}
	p.keys = append(p.keys, key)
	p.modules[key] = c
	return nil
}

// Module returns the container registered for key.
func (p *ProjectModels) Module(key ModuleKey) (*Container, bool) {
	c, ok := p.modules[key]
	return c, ok
}

// Keys returns module keys in insertion order.
func (p *ProjectModels) Keys() []ModuleKey {
	out := make([]ModuleKey, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of modules.
func (p *ProjectModels) Len() int { return len(p.keys) }

// Project returns the container of project-wide facts.
func (p *ProjectModels) Project() *Container { return p.project }

// SetProject replaces the project-wide facts.
func (p *ProjectModels) SetProject(c *Container) {
	if c == nil {
		c = NewContainer()
	}
	p.project = c
}

// BuildFolders maps every module that reports a build directory to that
// directory.
func (p *ProjectModels) BuildFolders() map[ModuleKey]string {
	folders := make(map[ModuleKey]string)
	for _, key := range p.keys {
		gp, ok := Find[GradleProject](p.modules[key])
		if !ok || gp.BuildDir == "" {
			continue
		}
		folders[key] = gp.BuildDir
	}
	return folders
}

// VariantOnlyModule carries the replacement variant facts for one module.
type VariantOnlyModule struct {
	Key         ModuleKey          `json:"key"`
	Variant     *Variant           `json:"variant,omitempty"`
	NativeAbis  []NativeVariantAbi `json:"native_abis,omitempty"`
	SelectedAbi string             `json:"selected_abi,omitempty"`

	// NativeVariant is the requested native variant. It applies when the
	// module has no application variant to follow.
	NativeVariant string `json:"native_variant,omitempty"`
}

// VariantOnlyProjectModels is the narrow result of a variant-only fetch.
type VariantOnlyProjectModels struct {
	Modules []VariantOnlyModule `json:"modules"`
}
