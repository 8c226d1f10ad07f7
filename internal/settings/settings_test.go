package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Kotlin(t *testing.T) {
	src := []byte(`
rootProject.name = "demo"

// include(":commented")
include(":app")
include(
    ":lib",
    "feature:login",
)
includeBuild("../shared")
`)
	s, err := Parse(context.Background(), src, true)
	require.NoError(t, err)

	assert.Equal(t, "demo", s.RootProjectName)
	assert.Equal(t, []string{":app", ":lib", ":feature:login"}, s.Includes)
}

func TestParse_Groovy(t *testing.T) {
	src := []byte(`
include ':app', ':lib'
include(':wrapped')
rootProject.name = 'demo'
`)
	s, err := Parse(context.Background(), src, false)
	require.NoError(t, err)

	assert.Equal(t, "demo", s.RootProjectName)
	assert.Equal(t, []string{":app", ":lib", ":wrapped"}, s.Includes)
}

func TestLoad(t *testing.T) {
	t.Run("no settings script", func(t *testing.T) {
		s, err := Load(context.Background(), t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("kotlin script wins", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "settings.gradle"), []byte(`include ':old'`), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "settings.gradle.kts"), []byte(`include(":app")`), 0o644))

		s, err := Load(context.Background(), root)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, filepath.Join(root, "settings.gradle.kts"), s.File)
		assert.Equal(t, []string{":app"}, s.Includes)
	})
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, ":app", normalize("app"))
	assert.Equal(t, ":a:b", normalize(" :a:b "))
	assert.Empty(t, normalize("$dynamic"))
	assert.Empty(t, normalize(""))
}
