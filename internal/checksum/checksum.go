// Package checksum records hashes of the project's build files so that a
// sync can tell whether the cached models still describe the build.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"modelsync/internal/crawler"
	"modelsync/internal/ctxlog"
)

const hashWorkers = 8

// Checksums maps build files, relative to the project root, to their sha256.
type Checksums struct {
	ComputedAt time.Time         `yaml:"computed_at"`
	Files      map[string]string `yaml:"files"`
}

// Compute hashes files under root in parallel.
func Compute(ctx context.Context, root string, files []string) (*Checksums, error) {
	sums := &Checksums{ComputedAt: time.Now().UTC(), Files: make(map[string]string, len(files))}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(hashWorkers)
	for _, rel := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := hashFile(filepath.Join(root, rel))
			if err != nil {
				return fmt.Errorf("hash %s: %w", rel, err)
			}
			mu.Lock()
			sums.Files[filepath.ToSlash(rel)] = sum
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sums, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Changed lists files that were added, removed or modified between c and
// other, sorted.
func (c *Checksums) Changed(other *Checksums) []string {
	var changed []string
	for file, sum := range c.Files {
		if other.Files[file] != sum {
			changed = append(changed, file)
		}
	}
	for file := range other.Files {
		if _, ok := c.Files[file]; !ok {
			changed = append(changed, file)
		}
	}
	sort.Strings(changed)
	return changed
}

// Load reads a checksum file. It returns nil without error when the file does
// not exist.
func Load(path string) (*Checksums, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c Checksums
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse checksums %s: %w", path, err)
	}
	if c.Files == nil {
		c.Files = map[string]string{}
	}
	return &c, nil
}

// Save writes c to path, creating parent directories.
func Save(path string, c *Checksums) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Checker compares the stored checksums with the current build files.
type Checker struct {
	Root    string
	File    string
	Crawler *crawler.Crawler
}

func NewChecker(root, file string) *Checker {
	return &Checker{Root: root, File: file, Crawler: crawler.NewCrawler()}
}

func (c *Checker) current(ctx context.Context) (*Checksums, error) {
	files, err := c.Crawler.FindBuildFiles(ctx, c.Root)
	if err != nil {
		return nil, fmt.Errorf("find build files: %w", err)
	}
	return Compute(ctx, c.Root, files)
}

// CanUseCachedData is true only when checksums were stored and every build
// file still matches them.
func (c *Checker) CanUseCachedData(ctx context.Context) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	stored, err := Load(c.File)
	if err != nil {
		return false, err
	}
	if stored == nil {
		logger.Debug("no stored build file checksums")
		return false, nil
	}
	now, err := c.current(ctx)
	if err != nil {
		return false, err
	}
	if changed := stored.Changed(now); len(changed) > 0 {
		logger.Info("build files changed since last sync", "files", changed)
		return false, nil
	}
	return true, nil
}

// Update stores the checksums of the current build files.
func (c *Checker) Update(ctx context.Context) error {
	now, err := c.current(ctx)
	if err != nil {
		return err
	}
	return Save(c.File, now)
}
