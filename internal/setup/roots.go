package setup

import (
	"fmt"
	"path/filepath"

	"modelsync/internal/model"
)

// RootResolver places a module on the file system.
type RootResolver interface {
	RootFolderOf(gp model.GradleProject) (string, error)
}

// ProjectRootResolver resolves relative project directories against the root
// directory of the build the module belongs to.
type ProjectRootResolver struct {
	Roots model.BuildRoots
}

func (r ProjectRootResolver) RootFolderOf(gp model.GradleProject) (string, error) {
	if gp.ProjectDir == "" {
		return "", fmt.Errorf("%w: empty project dir", ErrNoRootFolder)
	}
	if filepath.IsAbs(gp.ProjectDir) {
		return filepath.Clean(gp.ProjectDir), nil
	}
	base, ok := r.Roots.RootDirOf(gp.BuildID)
	if !ok {
		return "", fmt.Errorf("%w: unknown build %q", ErrNoRootFolder, gp.BuildID)
	}
	return filepath.Join(base, gp.ProjectDir), nil
}
