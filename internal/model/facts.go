package model

import "sort"

// GradleProject is the basic per-module identity reported by the build tool.
type GradleProject struct {
	BuildID    string `json:"build_id"`
	Path       string `json:"path"`
	Name       string `json:"name"`
	ProjectDir string `json:"project_dir"`
	BuildDir   string `json:"build_dir,omitempty"`
}

func (GradleProject) FactKind() Kind { return KindGradleProject }

// Key returns the module key this project was reported under.
func (p GradleProject) Key() ModuleKey {
	return ModuleKey{BuildID: p.BuildID, Path: p.Path}
}

// FlatDependency is one entry of the level-1 dependency list. An entry with an
// empty ProjectPath is not a module dependency.
type FlatDependency struct {
	BuildID     string `json:"build_id,omitempty"`
	ProjectPath string `json:"project_path,omitempty"`
	Variant     string `json:"variant,omitempty"`
	Abi         string `json:"abi,omitempty"`
}

// DependencyGraph is the level-4 dependency form: every entry is an address
// string, either "build@@:path(::variant)?" for modules or a library
// coordinate.
type DependencyGraph struct {
	Compile []string `json:"compile"`
}

// Artifact is a build output of a variant together with its dependencies.
type Artifact struct {
	Name            string           `json:"name"`
	Dependencies    []FlatDependency `json:"dependencies,omitempty"`
	Libraries       []string         `json:"libraries,omitempty"`
	DependencyGraph *DependencyGraph `json:"dependency_graph,omitempty"`
}

// Variant is one build configuration of an application project.
type Variant struct {
	Name           string     `json:"name"`
	BuildType      string     `json:"build_type,omitempty"`
	ProductFlavors []string   `json:"product_flavors,omitempty"`
	MainArtifact   Artifact   `json:"main_artifact"`
	TestArtifacts  []Artifact `json:"test_artifacts,omitempty"`
}

// ApplicationProject marks a module built by the application plugin.
type ApplicationProject struct {
	Name             string    `json:"name"`
	ProjectType      string    `json:"project_type,omitempty"`
	PluginVersion    string    `json:"plugin_version,omitempty"`
	FlavorDimensions []string  `json:"flavor_dimensions,omitempty"`
	Variants         []Variant `json:"variants"`
}

func (ApplicationProject) FactKind() Kind { return KindApplicationProject }

// FindVariant returns the variant with the given name.
func (p ApplicationProject) FindVariant(name string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// VariantNames returns the variant names in sorted order.
func (p ApplicationProject) VariantNames() []string {
	names := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		names = append(names, v.Name)
	}
	sort.Strings(names)
	return names
}

// WithVariant returns a copy of p where the variant named v.Name is replaced
// by v, or appended if p has no such variant.
func (p ApplicationProject) WithVariant(v Variant) ApplicationProject {
	out := p
	out.Variants = make([]Variant, 0, len(p.Variants)+1)
	replaced := false
	for _, existing := range p.Variants {
		if existing.Name == v.Name {
			out.Variants = append(out.Variants, v)
			replaced = true
			continue
		}
		out.Variants = append(out.Variants, existing)
	}
	if !replaced {
		out.Variants = append(out.Variants, v)
	}
	return out
}

// NativeProject marks a module with native (C/C++) build configuration.
type NativeProject struct {
	Name         string   `json:"name"`
	Abis         []string `json:"abis"`
	VariantNames []string `json:"variant_names"`
}

func (NativeProject) FactKind() Kind { return KindNativeProject }

// HasAbi reports whether abi is one of the project's ABIs.
func (p NativeProject) HasAbi(abi string) bool {
	for _, a := range p.Abis {
		if a == abi {
			return true
		}
	}
	return false
}

// HasVariant reports whether name is one of the project's variants.
func (p NativeProject) HasVariant(name string) bool {
	for _, v := range p.VariantNames {
		if v == name {
			return true
		}
	}
	return false
}

// NativeVariantAbi is the native build information for one variant/ABI pair.
// A container holds one per pair.
type NativeVariantAbi struct {
	Variant    string   `json:"variant"`
	Abi        string   `json:"abi"`
	BuildFiles []string `json:"build_files,omitempty"`
}

func (NativeVariantAbi) FactKind() Kind { return KindNativeVariantAbi }

// JavaProject marks a plain language module.
type JavaProject struct {
	Name                string           `json:"name"`
	SourceSets          []string         `json:"source_sets,omitempty"`
	Dependencies        []FlatDependency `json:"dependencies,omitempty"`
	DependencyAddresses []string         `json:"dependency_addresses,omitempty"`
	Libraries           []string         `json:"libraries,omitempty"`
}

func (JavaProject) FactKind() Kind { return KindJavaProject }

// ArtifactModel lists the packaged artifacts a module wraps. An empty list
// marks the umbrella (root) module.
type ArtifactModel struct {
	Name      string   `json:"name"`
	Artifacts []string `json:"artifacts,omitempty"`
}

func (ArtifactModel) FactKind() Kind { return KindArtifactModel }

// ModuleIdentity is the mandatory cached fact for every module. Restoring a
// module from the cache starts from it.
type ModuleIdentity struct {
	BuildID  string `json:"build_id"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	RootDir  string `json:"root_dir"`
	BuildDir string `json:"build_dir,omitempty"`
}

func (ModuleIdentity) FactKind() Kind { return KindModuleIdentity }

// Key returns the identity's module key.
func (m ModuleIdentity) Key() ModuleKey {
	return ModuleKey{BuildID: m.BuildID, Path: m.Path}
}

// ApplicationModule is the configured application flavor of a module.
type ApplicationModule struct {
	Name            string             `json:"name"`
	RootDir         string             `json:"root_dir"`
	SelectedVariant string             `json:"selected_variant"`
	Project         ApplicationProject `json:"project"`
	Dependencies    []ModuleDependency `json:"dependencies,omitempty"`
}

func (ApplicationModule) FactKind() Kind { return KindApplicationModule }

// NativeModule is the configured native flavor of a module.
type NativeModule struct {
	Name            string             `json:"name"`
	RootDir         string             `json:"root_dir"`
	SelectedVariant string             `json:"selected_variant"`
	SelectedAbi     string             `json:"selected_abi,omitempty"`
	Project         NativeProject      `json:"project"`
	VariantAbis     []NativeVariantAbi `json:"variant_abis,omitempty"`
}

func (NativeModule) FactKind() Kind { return KindNativeModule }

// PlainOrigin records why a module was configured as plain code.
type PlainOrigin string

const (
	OriginJava                      PlainOrigin = "java"
	OriginArtifact                  PlainOrigin = "artifact"
	OriginApplicationWithoutVariant PlainOrigin = "application_without_variant"
)

// PlainModule is the configured plain-code, prebuilt or umbrella flavor.
type PlainModule struct {
	Name         string             `json:"name"`
	RootDir      string             `json:"root_dir"`
	Origin       PlainOrigin        `json:"origin"`
	Artifacts    []string           `json:"artifacts,omitempty"`
	Dependencies []ModuleDependency `json:"dependencies,omitempty"`
}

func (PlainModule) FactKind() Kind { return KindPlainModule }

// Library is an external binary dependency in the global library index.
type Library struct {
	Address  string `json:"address"`
	Artifact string `json:"artifact,omitempty"`
}

// GlobalLibraryMap indexes every external library by address.
type GlobalLibraryMap struct {
	Libraries map[string]Library `json:"libraries"`
}

func (GlobalLibraryMap) FactKind() Kind { return KindGlobalLibraryMap }

// BuildRoots maps build ids to their root directories.
type BuildRoots struct {
	RootBuildID string            `json:"root_build_id"`
	Builds      map[string]string `json:"builds,omitempty"`
}

func (BuildRoots) FactKind() Kind { return KindBuildRoots }

// RootDirOf returns the root directory of the given build; the empty id
// names the root build.
func (b BuildRoots) RootDirOf(buildID string) (string, bool) {
	if buildID == "" {
		buildID = b.RootBuildID
	}
	dir, ok := b.Builds[buildID]
	return dir, ok && dir != ""
}
