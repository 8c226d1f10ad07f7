package setup

import (
	"path/filepath"
	"sort"
	"strings"

	"modelsync/internal/model"
)

// libraryIndex maps library addresses to the modules whose build folder
// contains the library artifact. Such libraries are sub-modules wrapping a
// locally built artifact and become module edges.
type libraryIndex struct {
	libraries map[string]model.Library
	folders   []buildFolder
}

type buildFolder struct {
	key model.ModuleKey
	dir string
}

func newLibraryIndex(libs model.GlobalLibraryMap, folders map[model.ModuleKey]string) *libraryIndex {
	idx := &libraryIndex{libraries: libs.Libraries}
	for key, dir := range folders {
		idx.folders = append(idx.folders, buildFolder{key: key, dir: filepath.Clean(dir)})
	}
	// Longest directory first so nested build folders win.
	sort.Slice(idx.folders, func(i, j int) bool {
		if len(idx.folders[i].dir) != len(idx.folders[j].dir) {
			return len(idx.folders[i].dir) > len(idx.folders[j].dir)
		}
		return idx.folders[i].key.Less(idx.folders[j].key)
	})
	return idx
}

func (idx *libraryIndex) moduleDependencies(addresses []string) []model.ModuleDependency {
	var deps []model.ModuleDependency
	for _, addr := range addresses {
		lib, ok := idx.libraries[addr]
		if !ok || lib.Artifact == "" {
			continue
		}
		if key, ok := idx.owner(lib.Artifact); ok {
			deps = append(deps, model.ModuleDependency{Target: key})
		}
	}
	return deps
}

func (idx *libraryIndex) owner(artifact string) (model.ModuleKey, bool) {
	artifact = filepath.Clean(artifact)
	for _, f := range idx.folders {
		if artifact == f.dir || strings.HasPrefix(artifact, f.dir+string(filepath.Separator)) {
			return f.key, true
		}
	}
	return model.ModuleKey{}, false
}
