package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"modelsync/internal/analysis"
	"modelsync/internal/cache"
	"modelsync/internal/checksum"
	"modelsync/internal/config"
	"modelsync/internal/ctxlog"
	"modelsync/internal/export"
	"modelsync/internal/model"
	"modelsync/internal/pipeline"
	"modelsync/internal/provider"
	"modelsync/internal/setup"
	"modelsync/internal/storage"
	"modelsync/internal/variant"
	"modelsync/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "modelsync",
		Short: "Sync build-tool project models into a classified module graph",
	}
	configPath string
	dbPath     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the model cache database (overrides sync.cache_db)")

	syncCmd.Flags().Bool("cached", false, "Restore from cached models when build files are unchanged")
	syncCmd.Flags().String("variant", "", "Variant-only sync: module=variant[:abi]")
	syncCmd.Flags().Bool("background", false, "Run as a background request")
	syncCmd.Flags().Bool("skip-plugin-upgrade-check", false, "Ask the provider to skip the plugin upgrade check")
	syncCmd.Flags().String("export", "", "Write the committed workspace as JSON to this path")

	graphCmd.Flags().Bool("json", false, "Print the workspace as JSON")

	variantsCmd.AddCommand(variantsListCmd)
	variantsCmd.AddCommand(variantsSetCmd)
	cacheCmd.AddCommand(cacheShowCmd)

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(variantsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(graphCmd)
}

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadApp() *app {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		cfg.Sync.CacheDB = dbPath
	}
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger}
}

// path resolves p against the project root.
func (a *app) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.cfg.Project.Root, p)
}

func (a *app) context() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	return ctxlog.WithLogger(ctx, a.logger), cancel
}

func (a *app) openStore() *storage.SQLiteStore {
	store, err := storage.NewSQLiteStore(a.path(a.cfg.Sync.CacheDB))
	if err != nil {
		log.Fatalf("Failed to open model cache: %v", err)
	}
	return store
}

func (a *app) loadWorkspace() *workspace.Workspace {
	ws, err := workspace.Load(a.path(a.cfg.Workspace.File))
	if err != nil {
		log.Fatalf("Failed to load workspace: %v", err)
	}
	if ws.Project == "" {
		ws.Project = a.cfg.Project.Name
	}
	return ws
}

func (a *app) loadRegistry() *variant.Registry {
	reg, err := variant.LoadRegistry(a.path(a.cfg.Variants.File))
	if err != nil {
		log.Fatalf("Failed to load variant selections: %v", err)
	}
	return reg
}

func (a *app) provider() provider.Provider {
	if a.cfg.Provider.Command != "" {
		return &provider.CommandProvider{
			Command: a.cfg.Provider.Command,
			Args:    a.cfg.Provider.Args,
			Dir:     a.cfg.Project.Root,
			Timeout: a.cfg.Provider.Timeout,
		}
	}
	dump := a.cfg.Provider.DumpFile
	if dump == "" {
		log.Fatalf("No provider configured: set provider.command or provider.dump_file")
	}
	return &provider.DumpProvider{Path: a.path(dump)}
}

// consoleListener prints pass progress.
type consoleListener struct{}

func (consoleListener) SetupStarted()  { fmt.Println("🧩 Setting up modules...") }
func (consoleListener) SyncSucceeded() { fmt.Println("✅ Sync succeeded.") }
func (consoleListener) SyncSkipped()   { fmt.Println("⏭️  Build files unchanged, restored from cache.") }
func (consoleListener) SyncFailed(msg string) {
	fmt.Printf("❌ Sync failed: %s\n", msg)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch project models and commit the module graph",
	Run: func(cmd *cobra.Command, args []string) {
		a := loadApp()
		ctx, cancel := a.context()
		defer cancel()

		cached, _ := cmd.Flags().GetBool("cached")
		variantFlag, _ := cmd.Flags().GetString("variant")
		background, _ := cmd.Flags().GetBool("background")
		skipUpgrade, _ := cmd.Flags().GetBool("skip-plugin-upgrade-check")
		exportPath, _ := cmd.Flags().GetString("export")

		req := pipeline.Request{
			UseCachedModels:        cached || a.cfg.Sync.UseCachedModels,
			SkipPluginUpgradeCheck: skipUpgrade,
		}
		if background || a.cfg.Sync.Background {
			req.Mode = pipeline.ModeBackground
		}
		if variantFlag != "" {
			opts, err := variant.ParseSyncOption(variantFlag)
			if err != nil {
				log.Fatalf("Invalid --variant: %v", err)
			}
			req.VariantOnly = &opts
		}

		store := a.openStore()
		defer store.Close()

		ws := a.loadWorkspace()
		registry := a.loadRegistry()

		syncer := pipeline.NewSyncer(pipeline.Options{
			ProjectRoot:   a.cfg.Project.Root,
			SingleVariant: a.cfg.Sync.SingleVariant,
			Provider:      a.provider(),
			Checksums:     checksum.NewChecker(a.cfg.Project.Root, a.path(a.cfg.Checksums.File)),
			Caches:        cache.NewFactory(store),
			Setup:         setup.New(variant.DefaultPolicy{Registry: registry}),
			Workspace:     ws,
			Registry:      registry,
			Processors: []analysis.Processor{
				&analysis.ApplicationModuleProcessor{Registry: registry},
				analysis.CycleReporter{},
				analysis.DeclaredModulesReporter{Root: a.cfg.Project.Root},
			},
			OnCommitted: func(ctx context.Context, p *pipeline.Pass) error {
				fmt.Println("💾 Saving workspace and variant selections...")
				if err := workspace.Save(a.path(a.cfg.Workspace.File), ws); err != nil {
					return err
				}
				if err := variant.SaveRegistry(a.path(a.cfg.Variants.File), registry); err != nil {
					return err
				}
				if exportPath != "" {
					return export.SaveJSON(exportPath, ws)
				}
				return nil
			},
		})

		fmt.Printf("🚀 Syncing %s (%s)\n", a.cfg.Project.Name, a.cfg.Project.Root)
		start := time.Now()
		pass, err := syncer.Sync(ctx, req, consoleListener{})
		if err != nil {
			log.Fatalf("Sync rejected: %v", err)
		}
		if req.Mode == pipeline.ModeBackground {
			fmt.Printf("⏳ Pass %s running in background...\n", pass.ID)
		}
		if err := pass.Wait(context.Background()); err != nil {
			os.Exit(1)
		}

		stats := pass.Stats()
		fmt.Printf("📊 %d added, %d updated, %d disposed, %d kept in %v.\n",
			stats.Added, stats.Updated, stats.Disposed, stats.Kept, time.Since(start).Round(time.Millisecond))
		if result := pass.Result(); result != nil && len(result.Graph.Unresolved) > 0 {
			fmt.Printf("⚠️  %d dependencies could not be resolved.\n", len(result.Graph.Unresolved))
			for reason, n := range result.Graph.UnresolvedReasonCounts() {
				fmt.Printf("  -> %s: %d\n", reason, n)
			}
		}
	},
}

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "Inspect or change the selected variants",
}

var variantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the recorded variant selections",
	Run: func(cmd *cobra.Command, args []string) {
		a := loadApp()
		registry := a.loadRegistry()
		keys := registry.Keys()
		if len(keys) == 0 {
			fmt.Println("No variants recorded yet. Run 'modelsync sync' first.")
			return
		}
		snapshot := registry.Snapshot()
		for _, key := range keys {
			sel := snapshot[key]
			if sel.Abi != "" {
				fmt.Printf("  %s  %s  (%s)\n", key, sel.Variant, sel.Abi)
			} else {
				fmt.Printf("  %s  %s\n", key, sel.Variant)
			}
		}
	},
}

var variantsSetCmd = &cobra.Command{
	Use:   "set module=variant[:abi]",
	Short: "Record a variant selection used by the next full sync",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := loadApp()
		opts, err := variant.ParseSyncOption(args[0])
		if err != nil {
			log.Fatalf("Invalid selection: %v", err)
		}
		registry := a.loadRegistry()
		opts.Apply(registry)
		if err := variant.SaveRegistry(a.path(a.cfg.Variants.File), registry); err != nil {
			log.Fatalf("Failed to save variant selections: %v", err)
		}
		fmt.Printf("📝 %s will use %s. Run 'modelsync sync --variant %s' to apply it now.\n", opts.Module, opts.Variant, args[0])
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the model cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cached modules",
	Run: func(cmd *cobra.Command, args []string) {
		a := loadApp()
		ctx, cancel := a.context()
		defer cancel()

		store := a.openStore()
		defer store.Close()

		pc := cache.NewFactory(store).LoadFromDisk(ctx)
		if pc == nil {
			fmt.Println("No usable model cache.")
			return
		}
		fmt.Printf("📦 Cache format v%d, saved %s\n", model.FormatVersion, pc.SavedAt().Local().Format(time.RFC3339))
		for _, key := range pc.Keys() {
			mc, _ := pc.FindCacheForModule(key)
			fmt.Printf("  %s  %v\n", key, mc.Facts().Kinds())
		}
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the committed module graph",
	Run: func(cmd *cobra.Command, args []string) {
		a := loadApp()
		ws := a.loadWorkspace()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if err := export.WriteJSON(os.Stdout, ws); err != nil {
				log.Fatalf("Failed to write JSON: %v", err)
			}
			return
		}
		if len(ws.Modules) == 0 {
			fmt.Println("Workspace is empty. Run 'modelsync sync' first.")
			return
		}
		for _, m := range ws.Modules {
			label := string(m.Flavor)
			if m.Variant != "" {
				label += " " + m.Variant
			}
			if m.Abi != "" {
				label += "/" + m.Abi
			}
			fmt.Printf("%s [%s]\n", m.Key, label)
			for _, d := range m.Dependencies {
				if d.Variant != "" {
					fmt.Printf("  -> %s (%s)\n", d.Target, d.Variant)
				} else {
					fmt.Printf("  -> %s\n", d.Target)
				}
			}
		}
	},
}
