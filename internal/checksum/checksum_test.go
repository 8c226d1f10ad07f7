package checksum

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

func TestCompute(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "build.gradle", "")
	writeFile(t, root, "app/build.gradle", "apply plugin: 'app'")

	sums, err := Compute(context.Background(), root, []string{"build.gradle", filepath.FromSlash("app/build.gradle")})
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sums.Files["build.gradle"])
	assert.Len(t, sums.Files, 2)
	assert.Contains(t, sums.Files, "app/build.gradle")

	_, err = Compute(context.Background(), root, []string{"missing.gradle"})
	assert.Error(t, err)
}

func TestChanged(t *testing.T) {
	a := &Checksums{Files: map[string]string{"a": "1", "b": "2", "c": "3"}}
	b := &Checksums{Files: map[string]string{"a": "1", "b": "x", "d": "4"}}
	assert.Equal(t, []string{"b", "c", "d"}, a.Changed(b))
	assert.Empty(t, a.Changed(a))
}

func TestChecker(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "settings.gradle", "include ':app'")
	writeFile(t, root, "app/build.gradle", "")

	c := NewChecker(root, filepath.Join(t.TempDir(), "state", "checksums.yaml"))

	ok, err := c.CanUseCachedData(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "nothing stored yet")

	require.NoError(t, c.Update(ctx))
	ok, err = c.CanUseCachedData(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("modified file", func(t *testing.T) {
		writeFile(t, root, "app/build.gradle", "dependencies {}")
		ok, err := c.CanUseCachedData(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, c.Update(ctx))
	})

	t.Run("new file", func(t *testing.T) {
		writeFile(t, root, "lib/build.gradle.kts", "")
		ok, err := c.CanUseCachedData(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unrelated files are ignored", func(t *testing.T) {
		require.NoError(t, c.Update(ctx))
		writeFile(t, root, "app/src/Main.java", "class Main {}")
		ok, err := c.CanUseCachedData(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
