package graph

import "modelsync/internal/model"

// FlavorKind names the classification of a module.
type FlavorKind string

const (
	FlavorApplication  FlavorKind = "application"
	FlavorNative       FlavorKind = "native"
	FlavorPlainCode    FlavorKind = "plain_code"
	FlavorPrebuilt     FlavorKind = "prebuilt"
	FlavorUmbrella     FlavorKind = "umbrella"
	FlavorUnclassified FlavorKind = "unclassified"
)

// Flavor is the closed set of module classifications. A nil Flavor means the
// module matched none of them.
type Flavor interface {
	Kind() FlavorKind
	isFlavor()
}

// Application is a module built by the application plugin, optionally with
// native configuration for the same module.
type Application struct {
	Variant string  `json:"variant"`
	Native  *Native `json:"native,omitempty"`
}

// Native is a module with native build configuration only.
type Native struct {
	Variant string `json:"variant"`
	Abi     string `json:"abi,omitempty"`
}

// PlainCode is a plain language module, or an application module whose
// variant could not be selected.
type PlainCode struct {
	Origin model.PlainOrigin `json:"origin"`
}

// Prebuilt wraps packaged artifacts.
type Prebuilt struct {
	Artifacts []string `json:"artifacts"`
}

// Umbrella is the multi-module root.
type Umbrella struct{}

func (Application) Kind() FlavorKind { return FlavorApplication }
func (Native) Kind() FlavorKind      { return FlavorNative }
func (PlainCode) Kind() FlavorKind   { return FlavorPlainCode }
func (Prebuilt) Kind() FlavorKind    { return FlavorPrebuilt }
func (Umbrella) Kind() FlavorKind    { return FlavorUmbrella }

func (Application) isFlavor() {}
func (Native) isFlavor()      {}
func (PlainCode) isFlavor()   {}
func (Prebuilt) isFlavor()    {}
func (Umbrella) isFlavor()    {}

// KindOf returns the kind of f, FlavorUnclassified for nil.
func KindOf(f Flavor) FlavorKind {
	if f == nil {
		return FlavorUnclassified
	}
	return f.Kind()
}

// Edge is a wired dependency between two modules, by arena index.
type Edge struct {
	From    int
	To      int
	Variant string
	Abi     string
}

type UnresolvedReason string

const (
	ReasonNoModule UnresolvedReason = "no_module"
	ReasonSelf     UnresolvedReason = "self_reference"
)

// UnresolvedEdge is a dependency whose target is not part of the graph.
type UnresolvedEdge struct {
	From   model.ModuleKey
	Target model.ModuleKey
	Reason UnresolvedReason
}
