// Package provider fetches raw project models from the external build tool.
package provider

import (
	"context"
	"errors"
	"fmt"

	"modelsync/internal/model"
	"modelsync/internal/variant"
)

// ErrCancelled is returned when a fetch stops because its context ended.
var ErrCancelled = errors.New("model fetch cancelled")

// Request describes a full fetch.
type Request struct {
	ProjectRoot            string
	SingleVariant          bool
	SelectedVariants       map[model.ModuleKey]variant.Selection
	SkipPluginUpgradeCheck bool
}

// Provider supplies raw per-module facts.
type Provider interface {
	Fetch(ctx context.Context, req Request) (*model.ProjectModels, error)
	FetchVariantOnly(ctx context.Context, req Request, opts variant.SyncOptions) (*model.VariantOnlyProjectModels, error)
}

func cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, ctxErr)
	}
	return err
}
