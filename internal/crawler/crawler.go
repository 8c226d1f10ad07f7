// Package crawler finds the build files whose contents decide whether cached
// project models are still valid.
package crawler

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"modelsync/internal/ctxlog"
	"modelsync/internal/git"
)

var buildFileNames = map[string]struct{}{
	"gradle.properties":         {},
	"local.properties":          {},
	"gradle-wrapper.properties": {},
}

var buildFileSuffixes = []string{".gradle", ".gradle.kts"}

// alwaysInclude files are usually ignored by version control but still
// affect the build.
var alwaysInclude = map[string]struct{}{
	"local.properties": {},
}

// Crawler scans a project for build files.
type Crawler struct {
	ignored map[string]struct{}
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	return &Crawler{
		ignored: map[string]struct{}{
			".git":         {},
			".gradle":      {},
			".idea":        {},
			".modelsync":   {},
			"build":        {},
			"node_modules": {},
		},
	}
}

// IsBuildFile reports whether name is a file the build tool reads.
func IsBuildFile(name string) bool {
	if _, ok := buildFileNames[name]; ok {
		return true
	}
	for _, suffix := range buildFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// FindBuildFiles returns the build files under root, relative to root and
// sorted. Inside a git work tree only files git knows about are returned;
// otherwise .gitignore is honoured when present.
func (c *Crawler) FindBuildFiles(ctx context.Context, root string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	var tracked map[string]struct{}
	if git.IsRepo(root) {
		files, err := git.ListFiles(ctx, root)
		if err != nil {
			logger.Debug("falling back to directory walk", "error", err)
		} else {
			tracked = files
		}
	}
	var gi *ignore.GitIgnore
	if tracked == nil {
		gi = loadGitignore(root)
	}

	var results []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := c.ignored[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 || !IsBuildFile(name) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if _, ok := alwaysInclude[name]; !ok {
			if tracked != nil {
				if _, ok := tracked[rel]; !ok {
					return nil
				}
			} else if gi != nil && gi.MatchesPath(filepath.ToSlash(rel)) {
				return nil
			}
		}

		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
