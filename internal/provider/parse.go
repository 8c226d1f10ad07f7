package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"modelsync/internal/model"
	"modelsync/internal/resolver"
	"modelsync/internal/variant"
)

var ErrInvalidDump = errors.New("invalid model dump")

// ParseDump converts the build tool's JSON model dump into an aggregate.
// Module keys are normalized with resolver.CreateUniqueModuleID. When
// selected is non-nil, application variants of modules with a selection are
// narrowed to the selected one.
func ParseDump(data []byte, selected map[model.ModuleKey]variant.Selection) (*model.ProjectModels, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidDump
	}
	doc := gjson.ParseBytes(data)

	models := model.NewProjectModels()
	models.SetProject(parseProject(doc))

	var parseErr error
	doc.Get("modules").ForEach(func(_, m gjson.Result) bool {
		key := resolver.CreateUniqueModuleID(m.Get("build_id").String(), m.Get("path").String())
		if key.Path == "" {
			parseErr = fmt.Errorf("%w: module without path", ErrInvalidDump)
			return false
		}
		facts, err := parseModule(key, m)
		if err != nil {
			parseErr = fmt.Errorf("module %s: %w", key, err)
			return false
		}
		if sel, ok := selected[key]; ok {
			narrowVariants(facts, sel.Variant)
		}
		if err := models.AddModule(key, facts); err != nil {
			parseErr = err
			return false
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return models, nil
}

func parseProject(doc gjson.Result) *model.Container {
	project := model.NewContainer()

	roots := model.BuildRoots{
		RootBuildID: doc.Get("root_build_id").String(),
		Builds:      make(map[string]string),
	}
	doc.Get("builds").ForEach(func(id, dir gjson.Result) bool {
		roots.Builds[id.String()] = dir.String()
		return true
	})
	project.Add(roots)

	libs := model.GlobalLibraryMap{Libraries: make(map[string]model.Library)}
	doc.Get("libraries").ForEach(func(_, lib gjson.Result) bool {
		addr := lib.Get("address").String()
		if addr != "" {
			libs.Libraries[addr] = model.Library{Address: addr, Artifact: lib.Get("artifact").String()}
		}
		return true
	})
	project.Add(libs)
	return project
}

func parseModule(key model.ModuleKey, m gjson.Result) (*model.Container, error) {
	facts := model.NewContainer()

	if gp := m.Get("gradle_project"); gp.Exists() {
		var p model.GradleProject
		if err := decode(gp, &p); err != nil {
			return nil, err
		}
		p.BuildID, p.Path = key.BuildID, key.Path
		facts.Add(p)
	}

	sections := []struct {
		path   string
		decode func(gjson.Result) (model.Fact, error)
	}{
		{"application_project", decodeAs[model.ApplicationProject]},
		{"native_project", decodeAs[model.NativeProject]},
		{"java_project", decodeAs[model.JavaProject]},
		{"artifact_model", decodeAs[model.ArtifactModel]},
	}
	for _, s := range sections {
		section := m.Get(s.path)
		if !section.Exists() {
			continue
		}
		f, err := s.decode(section)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}
		facts.Add(f)
	}

	var abiErr error
	m.Get("native_variant_abis").ForEach(func(_, va gjson.Result) bool {
		var v model.NativeVariantAbi
		if err := decode(va, &v); err != nil {
			abiErr = fmt.Errorf("native_variant_abis: %w", err)
			return false
		}
		facts.Add(v)
		return true
	})
	if abiErr != nil {
		return nil, abiErr
	}
	return facts, nil
}

func decodeAs[T model.Fact](r gjson.Result) (model.Fact, error) {
	var v T
	if err := decode(r, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decode(r gjson.Result, v any) error {
	if !r.IsObject() {
		return fmt.Errorf("%w: expected object, got %s", ErrInvalidDump, r.Type)
	}
	return json.Unmarshal([]byte(r.Raw), v)
}

func narrowVariants(facts *model.Container, name string) {
	app, ok := model.Find[model.ApplicationProject](facts)
	if !ok {
		return
	}
	v, ok := app.FindVariant(name)
	if !ok {
		return
	}
	app.Variants = []model.Variant{v}
	facts.Add(app)
}

// ParseVariantOnly parses the response of a variant-only fetch.
func ParseVariantOnly(data []byte) (*model.VariantOnlyProjectModels, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidDump
	}
	out := &model.VariantOnlyProjectModels{}
	var parseErr error
	gjson.GetBytes(data, "modules").ForEach(func(_, m gjson.Result) bool {
		vm := model.VariantOnlyModule{
			Key:           resolver.CreateUniqueModuleID(m.Get("build_id").String(), m.Get("path").String()),
			SelectedAbi:   m.Get("selected_abi").String(),
			NativeVariant: m.Get("native_variant").String(),
		}
		if v := m.Get("variant"); v.Exists() {
			var parsed model.Variant
			if err := decode(v, &parsed); err != nil {
				parseErr = err
				return false
			}
			vm.Variant = &parsed
		}
		m.Get("native_variant_abis").ForEach(func(_, va gjson.Result) bool {
			var v model.NativeVariantAbi
			if err := decode(va, &v); err != nil {
				parseErr = err
				return false
			}
			vm.NativeAbis = append(vm.NativeAbis, v)
			return true
		})
		if parseErr != nil {
			return false
		}
		out.Modules = append(out.Modules, vm)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}
