package variant

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelsync/internal/model"
)

var (
	appKey = model.ModuleKey{Path: ":app"}
	libKey = model.ModuleKey{BuildID: "inc", Path: ":lib"}
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, ok := r.LookupSelection(appKey)
	assert.False(t, ok, "missing entries are tolerated")

	r.Record(appKey, Selection{Variant: "debug", Abi: "x86"})
	r.RecordSelection(appKey, "release")
	sel, ok := r.Lookup(appKey)
	require.True(t, ok)
	assert.Equal(t, Selection{Variant: "release", Abi: "x86"}, sel, "abi survives a variant change")

	r.RecordSelection(libKey, "debug")
	assert.Equal(t, []model.ModuleKey{appKey, libKey}, r.Keys())

	r.RecordSelection(libKey, "")
	_, ok = r.Lookup(libKey)
	assert.False(t, ok)

	r.Remove(appKey)
	assert.Empty(t, r.Snapshot())
}

func TestRegistryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "variants.yaml")

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Keys())

	r := NewRegistry()
	r.Record(appKey, Selection{Variant: "release", Abi: "arm64-v8a"})
	r.RecordSelection(libKey, "debug")
	require.NoError(t, SaveRegistry(path, r))

	loaded, err = LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, r.Snapshot(), loaded.Snapshot())

	t.Run("invalid yaml", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("selections: [unclosed"), 0644))
		_, err := LoadRegistry(bad)
		assert.Error(t, err)
	})
}

func TestDefaultPolicy(t *testing.T) {
	app := model.ApplicationProject{Variants: []model.Variant{{Name: "release"}, {Name: "debug"}, {Name: "beta"}}}

	t.Run("debug preferred", func(t *testing.T) {
		p := DefaultPolicy{Registry: NewRegistry()}
		name, ok := p.SelectDefault(appKey, app)
		require.True(t, ok)
		assert.Equal(t, "debug", name)
	})

	t.Run("recorded selection wins", func(t *testing.T) {
		r := NewRegistry()
		r.RecordSelection(appKey, "release")
		name, ok := DefaultPolicy{Registry: r}.SelectDefault(appKey, app)
		require.True(t, ok)
		assert.Equal(t, "release", name)
	})

	t.Run("stale selection ignored", func(t *testing.T) {
		r := NewRegistry()
		r.RecordSelection(appKey, "gone")
		name, _ := DefaultPolicy{Registry: r}.SelectDefault(appKey, app)
		assert.Equal(t, "debug", name)
	})

	t.Run("first by name", func(t *testing.T) {
		noDebug := model.ApplicationProject{Variants: []model.Variant{{Name: "release"}, {Name: "beta"}}}
		name, ok := DefaultPolicy{}.SelectDefault(appKey, noDebug)
		require.True(t, ok)
		assert.Equal(t, "beta", name)
	})

	t.Run("no variants", func(t *testing.T) {
		_, ok := DefaultPolicy{}.SelectDefault(appKey, model.ApplicationProject{})
		assert.False(t, ok)
	})

	t.Run("native", func(t *testing.T) {
		native := model.NativeProject{Abis: []string{"x86_64", "arm64-v8a"}, VariantNames: []string{"debug", "release"}}
		r := NewRegistry()
		p := DefaultPolicy{Registry: r}

		name, ok := p.SelectNativeVariant(appKey, native, "release")
		require.True(t, ok)
		assert.Equal(t, "release", name, "follows the application variant")

		name, _ = p.SelectNativeVariant(appKey, native, "")
		assert.Equal(t, "debug", name)

		abi, ok := p.SelectAbi(appKey, native)
		require.True(t, ok)
		assert.Equal(t, "arm64-v8a", abi)

		r.Record(appKey, Selection{Variant: "debug", Abi: "x86_64"})
		abi, _ = p.SelectAbi(appKey, native)
		assert.Equal(t, "x86_64", abi)

		_, ok = p.SelectAbi(appKey, model.NativeProject{})
		assert.False(t, ok)
	})
}

func TestParseSyncOption(t *testing.T) {
	opt, err := ParseSyncOption(":app=release:x86_64")
	require.NoError(t, err)
	assert.Equal(t, SyncOptions{Module: appKey, Variant: "release", Abi: "x86_64"}, opt)

	opt, err = ParseSyncOption("inc@@:lib=debug")
	require.NoError(t, err)
	assert.Equal(t, SyncOptions{Module: libKey, Variant: "debug"}, opt)

	for _, bad := range []string{":app", "=debug", ":app="} {
		_, err := ParseSyncOption(bad)
		assert.Error(t, err, bad)
	}

	r := NewRegistry()
	r.Record(appKey, Selection{Variant: "debug", Abi: "x86"})
	SyncOptions{Module: appKey, Variant: "release"}.Apply(r)
	sel, _ := r.Lookup(appKey)
	assert.Equal(t, Selection{Variant: "release", Abi: "x86"}, sel)
}
