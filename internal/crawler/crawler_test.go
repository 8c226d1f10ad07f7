package crawler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCrawler_FindBuildFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "settings.gradle", "include ':app'")
	writeFile(t, root, "build.gradle.kts", "")
	writeFile(t, root, "gradle.properties", "")
	writeFile(t, root, "local.properties", "sdk.dir=/sdk")
	writeFile(t, root, "gradle/wrapper/gradle-wrapper.properties", "")
	writeFile(t, root, "app/build.gradle", "")
	writeFile(t, root, "app/src/Main.java", "")
	writeFile(t, root, "app/build/generated.gradle", "")
	writeFile(t, root, "scratch/build.gradle", "")
	writeFile(t, root, ".gitignore", "scratch/\nlocal.properties\n")

	files, err := NewCrawler().FindBuildFiles(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.FromSlash("app/build.gradle"),
		"build.gradle.kts",
		"gradle.properties",
		filepath.FromSlash("gradle/wrapper/gradle-wrapper.properties"),
		"local.properties",
		"settings.gradle",
	}, files)
}

func TestIsBuildFile(t *testing.T) {
	assert.True(t, IsBuildFile("build.gradle"))
	assert.True(t, IsBuildFile("settings.gradle.kts"))
	assert.True(t, IsBuildFile("gradle.properties"))
	assert.False(t, IsBuildFile("Main.java"))
	assert.False(t, IsBuildFile("gradle"))
}
