package cache

import (
	"errors"
	"fmt"

	"modelsync/internal/model"
)

// ErrModelNotFound matches every ModelNotFoundError through errors.Is.
var ErrModelNotFound = errors.New("model not found in cache")

// ModelNotFoundError reports a mandatory fact missing from a cached module.
// It is the signal to abandon the cached path and run a full sync.
type ModelNotFoundError struct {
	Kind   model.Kind
	Module model.ModuleKey
}

func (e *ModelNotFoundError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("module %s not found in cache", e.Module)
	}
	return fmt.Sprintf("%s not found in cache for module %s", e.Kind, e.Module)
}

func (e *ModelNotFoundError) Is(target error) bool {
	return target == ErrModelNotFound
}
