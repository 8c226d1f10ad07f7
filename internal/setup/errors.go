package setup

import (
	"errors"
	"fmt"

	"modelsync/internal/model"
)

var (
	ErrMissingIdentity = errors.New("module has no gradle project fact")
	ErrNoRootFolder    = errors.New("module root folder cannot be resolved")
)

// Error is a fatal per-module setup failure. It aborts the whole pass before
// any module state is committed.
type Error struct {
	Module model.ModuleKey
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("set up module %s: %v", e.Module, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
