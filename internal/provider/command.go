package provider

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"modelsync/internal/ctxlog"
	"modelsync/internal/model"
	"modelsync/internal/variant"
)

const (
	modeFull        = "full"
	modeVariantOnly = "variant_only"
)

// CommandProvider runs an external command that reads a JSON request on
// stdin and writes a model dump on stdout.
type CommandProvider struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
}

func (p *CommandProvider) Fetch(ctx context.Context, req Request) (*model.ProjectModels, error) {
	body, err := BuildRequest(modeFull, req, nil)
	if err != nil {
		return nil, err
	}
	out, err := p.run(ctx, body)
	if err != nil {
		return nil, err
	}
	return ParseDump(out, nil)
}

func (p *CommandProvider) FetchVariantOnly(ctx context.Context, req Request, opts variant.SyncOptions) (*model.VariantOnlyProjectModels, error) {
	body, err := BuildRequest(modeVariantOnly, req, &opts)
	if err != nil {
		return nil, err
	}
	out, err := p.run(ctx, body)
	if err != nil {
		return nil, err
	}
	return ParseVariantOnly(out)
}

func (p *CommandProvider) run(ctx context.Context, body []byte) ([]byte, error) {
	if p.Command == "" {
		return nil, fmt.Errorf("no provider command configured")
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Dir = p.Dir
	cmd.Stdin = bytes.NewReader(body)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	ctxlog.FromContext(ctx).Debug("running model provider", "command", p.Command, "args", p.Args)
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, cancelled(ctx, fmt.Errorf("model provider failed: %w", err))
	}
	return out, nil
}

// BuildRequest renders the JSON request sent to the provider command.
func BuildRequest(mode string, req Request, opts *variant.SyncOptions) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, value)
	}

	set("mode", mode)
	set("project_root", req.ProjectRoot)
	set("single_variant", req.SingleVariant)
	set("skip_plugin_upgrade_check", req.SkipPluginUpgradeCheck)
	if req.SingleVariant {
		set("selected_variants", []any{})
		for _, key := range sortedKeys(req.SelectedVariants) {
			sel := req.SelectedVariants[key]
			set("selected_variants.-1", map[string]string{
				"module":  key.String(),
				"variant": sel.Variant,
				"abi":     sel.Abi,
			})
		}
	}
	if opts != nil {
		set("variant_only.module", opts.Module.String())
		set("variant_only.variant", opts.Variant)
		set("variant_only.abi", opts.Abi)
		set("variant_only.generate_sources", opts.GenerateSources)
	}
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	return body, nil
}

func sortedKeys(m map[model.ModuleKey]variant.Selection) []model.ModuleKey {
	keys := make([]model.ModuleKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
