package model

// Kind names a fact type. Kinds are persisted in the model cache, so renaming
// one requires bumping FormatVersion.
type Kind string

const (
	// Raw facts supplied by the model provider.
	KindGradleProject      Kind = "gradle_project"
	KindApplicationProject Kind = "application_project"
	KindNativeProject      Kind = "native_project"
	KindNativeVariantAbi   Kind = "native_variant_abi"
	KindJavaProject        Kind = "java_project"
	KindArtifactModel      Kind = "artifact_model"

	// Facts derived during module setup and written to the cache.
	KindModuleIdentity    Kind = "module_identity"
	KindApplicationModule Kind = "application_module"
	KindNativeModule      Kind = "native_module"
	KindPlainModule       Kind = "plain_module"

	// Project-wide facts.
	KindGlobalLibraryMap Kind = "global_library_map"
	KindBuildRoots       Kind = "build_roots"
)

// FormatVersion stamps the serialized cache. Bump it whenever a fact kind is
// added, removed or reshaped; a mismatching cache is discarded.
const FormatVersion = 4

// Fact is one piece of build information about a module. Implementations are
// value types so that the zero value can report its kind.
type Fact interface {
	FactKind() Kind
}

var multiValued = map[Kind]bool{
	KindNativeVariantAbi: true,
}

// IsMultiValued reports whether a container may hold several facts of kind k.
func IsMultiValued(k Kind) bool {
	return multiValued[k]
}
