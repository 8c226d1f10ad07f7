package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// IsRepo reports whether root is the top of a git work tree.
func IsRepo(root string) bool {
	info, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil && info.IsDir()
}

// ListFiles runs git ls-files and returns tracked and untracked, non-ignored
// files relative to root.
func ListFiles(ctx context.Context, root string) (map[string]struct{}, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files failed: %w", err)
	}

	return parseFileList(output), nil
}

func parseFileList(output []byte) map[string]struct{} {
	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(output), "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files[filepath.FromSlash(line)] = struct{}{}
		}
	}
	return files
}
