// Package main is the autocat CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/autocat/internal/cli"
	"github.com/hyperjump/autocat/internal/config"
	"github.com/hyperjump/autocat/internal/embedding"
	"github.com/hyperjump/autocat/internal/engine"
	"github.com/hyperjump/autocat/internal/hints"
	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/prototype"
	"github.com/hyperjump/autocat/internal/server"
	"github.com/hyperjump/autocat/internal/storage"
	"github.com/hyperjump/autocat/internal/watcher"
	"github.com/hyperjump/autocat/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/autocat/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence if it exists, so running from a project dir uses that project's
// config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "classify":
		runClassify()
	case "reclassify":
		runReclassify()
	case "prototypes":
		runPrototypes()
	case "embed":
		runEmbed()
	case "seed":
		runSeed()
	case "lock":
		runLock()
	case "status":
		runStatus()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("autocat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	eng := components.Engine
	cfgWatcher := watcher.NewConfigWatcher(resolvedConfigPath, func(next *config.Config) {
		eng.UpdateSettings(engine.SettingsFromConfig(next))
		logger.Info("classification settings reloaded",
			zap.Float64("threshold", next.Classify.Threshold),
			zap.Int("top_k", next.Classify.TopK))
	}, watcher.WithLogger(logger))
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := cfgWatcher.Start(watchCtx); err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	}
	defer cfgWatcher.Stop()

	srv := server.NewServer(eng, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// reorderArgs moves any flags (and their values) that appear after the positional arguments
// to the front so flag.Parse sees them. The flag package stops at the first non-flag
// argument, so "autocat classify ITEM --dry-run" would otherwise leave --dry-run unparsed.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// reclassifyLimitFromConfig returns the configured batch limit, or the built-in default
// when the config cannot be loaded.
func reclassifyLimitFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return config.Default().Reclassify.DefaultLimit
	}
	return cfg.Reclassify.DefaultLimit
}

// flagWasSet reports whether name was given explicitly on the command line.
func flagWasSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func exitOnError(what string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", what, err)
		if errors.Is(err, prototype.ErrNoCategoriesAvailable) {
			fmt.Fprintln(os.Stderr, "Run \"autocat seed\" to create the default categories.")
		}
		os.Exit(1)
	}
}

// withDirectEngine loads config and components for commands that bypass the server.
func withDirectEngine(configPath string, fn func(cfg *config.Config, c *Components) error) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(cfg, components)
}

func runClassify() {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	dryRun := fs.Bool("dry-run", false, "compute the outcome without writing it")
	threshold := fs.Float64("threshold", 0, "override the confidence threshold")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: autocat classify [flags] <item-id>")
		os.Exit(1)
	}
	itemID := fs.Arg(0)
	format := parseFormat(*outputFormat)
	opts := engine.ClassifyOptions{DryRun: *dryRun}
	if flagWasSet(fs, "threshold") {
		opts.Threshold = threshold
	}

	var out models.ClassificationOutcome
	if *serverURL != "" {
		q := url.Values{}
		q.Set("dry_run", strconv.FormatBool(opts.DryRun))
		if opts.Threshold != nil {
			q.Set("threshold", strconv.FormatFloat(*opts.Threshold, 'f', -1, 64))
		}
		path := "/api/v1/items/" + url.PathEscape(itemID) + "/classify?" + q.Encode()
		exitOnError("Classify", callAPI(http.MethodPost, *serverURL+path, nil, &out))
	} else {
		exitOnError("Classify", withDirectEngine(*configPath, func(_ *config.Config, c *Components) error {
			res, err := c.Engine.ClassifyItem(context.Background(), itemID, opts)
			if err != nil {
				return err
			}
			out = *res
			return nil
		}))
	}
	exitOnError("Output", cli.WriteOutcome(os.Stdout, &out, format))
}

func runReclassify() {
	args := os.Args[2:]
	defaultLimit := reclassifyLimitFromConfig(configPathFromArgs(args, defaultConfigPath))

	fs := flag.NewFlagSet("reclassify", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	limit := fs.Int("limit", defaultLimit, "maximum number of items to scan")
	threshold := fs.Float64("threshold", 0, "override the confidence threshold")
	dryRun := fs.Bool("dry-run", true, "report changes without writing them")
	force := fs.Bool("force", false, "let every unlocked item change category")
	onlyUncategorized := fs.Bool("only-uncategorized", true, "in safe mode, only move items out of Uncategorized")
	includeDeleted := fs.Bool("include-deleted", true, "include soft-deleted items")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format := parseFormat(*outputFormat)
	req := models.ReclassifyRequest{
		Limit:             *limit,
		DryRun:            *dryRun,
		Force:             *force,
		OnlyUncategorized: *onlyUncategorized,
		IncludeDeleted:    *includeDeleted,
	}
	if flagWasSet(fs, "threshold") {
		req.Threshold = threshold
	}
	if req.Limit < 1 {
		fmt.Fprintln(os.Stderr, "--limit must be at least 1")
		os.Exit(1)
	}

	var report models.ReclassifyReport
	if *serverURL != "" {
		exitOnError("Reclassify", callAPI(http.MethodPost, *serverURL+"/api/v1/maintenance/reclassify", req, &report))
	} else {
		exitOnError("Reclassify", withDirectEngine(*configPath, func(_ *config.Config, c *Components) error {
			res, err := c.Engine.Reclassify(context.Background(), req)
			if err != nil {
				return err
			}
			report = *res
			return nil
		}))
	}
	exitOnError("Output", cli.WriteReport(os.Stdout, &report, format))
}

func runPrototypes() {
	fs := flag.NewFlagSet("prototypes", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	var set prototype.Set
	if *serverURL != "" {
		var resp struct {
			Prototypes prototype.Set `json:"prototypes"`
		}
		exitOnError("Prototypes", callAPI(http.MethodGet, *serverURL+"/api/v1/prototypes", nil, &resp))
		set = resp.Prototypes
	} else {
		exitOnError("Prototypes", withDirectEngine(*configPath, func(_ *config.Config, c *Components) error {
			var err error
			set, err = c.Engine.Prototypes(context.Background())
			return err
		}))
	}
	exitOnError("Output", cli.WritePrototypes(os.Stdout, set, format))
}

func runEmbed() {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	categories := fs.Bool("categories", false, "encode category names instead of an item image")
	force := fs.Bool("force", false, "with --categories, re-encode names that already have embeddings")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if !*categories && fs.NArg() < 1 {
		fmt.Println("Usage: autocat embed [flags] <item-id>")
		fmt.Println("       autocat embed --categories [--force]")
		os.Exit(1)
	}

	if *categories {
		var resp struct {
			Encoded int `json:"encoded"`
		}
		if *serverURL != "" {
			path := "/api/v1/categories/embeddings?force=" + strconv.FormatBool(*force)
			exitOnError("Embed", callAPI(http.MethodPost, *serverURL+path, nil, &resp))
		} else {
			exitOnError("Embed", withDirectEngine(*configPath, func(_ *config.Config, c *Components) error {
				var err error
				resp.Encoded, err = c.Engine.EnsureCategoryEmbeddings(context.Background(), *force)
				return err
			}))
		}
		fmt.Printf("Encoded %d category name(s)\n", resp.Encoded)
		return
	}

	itemID := fs.Arg(0)
	var resp struct {
		ModelKey string `json:"model_key"`
		Dim      int    `json:"dim"`
	}
	if *serverURL != "" {
		exitOnError("Embed", callAPI(http.MethodPost, *serverURL+"/api/v1/items/"+url.PathEscape(itemID)+"/embed", nil, &resp))
	} else {
		exitOnError("Embed", withDirectEngine(*configPath, func(_ *config.Config, c *Components) error {
			rec, err := c.Engine.EmbedItem(context.Background(), itemID)
			if err != nil {
				return err
			}
			resp.ModelKey, resp.Dim = rec.ModelKey, rec.Dim
			return nil
		}))
	}
	fmt.Printf("Embedded %s (%s, %d dims)\n", itemID, resp.ModelKey, resp.Dim)
}

func runSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	names := engine.DefaultCategoryNames
	if fs.NArg() > 0 {
		names = fs.Args()
	}
	var created int
	exitOnError("Seed", withDirectEngine(*configPath, func(_ *config.Config, c *Components) error {
		var err error
		created, err = c.Engine.SeedCategories(context.Background(), names)
		return err
	}))
	fmt.Printf("Created %d of %d categories\n", created, len(names))
}

func runLock() {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	unlock := fs.Bool("unlock", false, "release the lock instead")
	category := fs.String("category", "", "set this category manually (always locks)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: autocat lock [--unlock | --category <id>] <item-id>")
		os.Exit(1)
	}
	if *unlock && *category != "" {
		fmt.Fprintln(os.Stderr, "--unlock and --category are mutually exclusive")
		os.Exit(1)
	}
	itemID := fs.Arg(0)
	base := "/api/v1/items/" + url.PathEscape(itemID)

	if *serverURL != "" {
		var err error
		switch {
		case *category != "":
			err = callAPI(http.MethodPut, *serverURL+base+"/category", map[string]string{"category_id": *category}, nil)
		case *unlock:
			err = callAPI(http.MethodDelete, *serverURL+base+"/lock", nil, nil)
		default:
			err = callAPI(http.MethodPut, *serverURL+base+"/lock", nil, nil)
		}
		exitOnError("Lock", err)
	} else {
		exitOnError("Lock", withDirectEngine(*configPath, func(_ *config.Config, c *Components) error {
			ctx := context.Background()
			if *category != "" {
				return c.Engine.SetCategory(ctx, itemID, *category)
			}
			return c.Engine.SetLock(ctx, itemID, !*unlock)
		}))
	}
	switch {
	case *category != "":
		fmt.Printf("%s -> %s (locked)\n", itemID, *category)
	case *unlock:
		fmt.Printf("Unlocked: %s\n", itemID)
	default:
		fmt.Printf("Locked: %s\n", itemID)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	var st engine.Status
	if *serverURL != "" {
		exitOnError("Status", callAPI(http.MethodGet, *serverURL+"/api/v1/status", nil, &st))
	} else {
		exitOnError("Status", withDirectEngine(*configPath, func(cfg *config.Config, c *Components) error {
			res, err := c.Engine.Status(context.Background(), storage.DatabaseFiles(cfg.Storage.DatabasePath)...)
			if err != nil {
				return err
			}
			st = *res
			return nil
		}))
	}
	exitOnError("Output", cli.WriteStatus(os.Stdout, &st, format))
}

// runConfig prints the effective configuration (file, defaults, and environment overrides).
func runConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "yaml", "output format: yaml or json")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, err := loadConfig(*configPath)
	exitOnError("Load config", err)
	switch *outputFormat {
	case "json":
		exitOnError("Output", cli.WriteJSON(os.Stdout, cfg))
	case "yaml":
		fmt.Printf("# %s\n", resolved)
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		exitOnError("Output", enc.Encode(cfg))
		_ = enc.Close()
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use yaml or json\n", *outputFormat)
		os.Exit(1)
	}
}

// apiErrorResponse is the server's error envelope.
type apiErrorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

var httpClient = &http.Client{Timeout: 10 * time.Minute}

// callAPI sends body as JSON (when non-nil) and decodes a 200 response into out (when non-nil).
func callAPI(method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var apiErr apiErrorResponse
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error.Code != "" {
			if apiErr.Error.Code == "NO_CATEGORIES" {
				return fmt.Errorf("%w: %s", prototype.ErrNoCategoriesAvailable, apiErr.Error.Message)
			}
			return fmt.Errorf("server returned %d %s: %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Storage storage.Storage
	Encoder embedding.Encoder
	Engine  *engine.Engine
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Encoder != nil {
		_ = c.Encoder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithStorageRoot(cfg.Storage.StorageRoot),
	}

	onnxEncoder, err := embedding.NewONNXEncoder(embedding.Config{
		ImageModelPath: cfg.Embedding.ImageModelPath,
		TextModelPath:  cfg.Embedding.TextModelPath,
		ModelKey:       cfg.Embedding.ModelKey,
		Dimensions:     cfg.Embedding.Dimensions,
		ImageSize:      cfg.Embedding.ImageSize,
		MaxTokens:      cfg.Embedding.MaxTokens,
		CacheSize:      cfg.Embedding.CacheSize,
	})
	if err != nil {
		// Classification only reads stored embeddings, so it keeps working without a model.
		logger.Warn("encoder unavailable; embedding disabled", zap.Error(err))
	} else {
		c.Encoder = onnxEncoder
		opts = append(opts, engine.WithEncoder(onnxEncoder))
	}

	if cfg.FaceDetector.Endpoint != "" {
		detector := hints.NewHTTPDetector(hints.DetectorConfig{
			Endpoint:         cfg.FaceDetector.Endpoint,
			Timeout:          cfg.FaceDetector.Timeout,
			FailureThreshold: cfg.FaceDetector.FailureThreshold,
			OpenTimeout:      cfg.FaceDetector.OpenTimeout,
		}, hints.WithLogger(logger))
		opts = append(opts, engine.WithDetector(detector))
		logger.Info("face detector configured", zap.String("endpoint", cfg.FaceDetector.Endpoint))
	}

	c.Engine = engine.NewEngine(store, cfg.Embedding.ModelKey, engine.SettingsFromConfig(cfg), opts...)
	logger.Info("engine initialized",
		zap.String("model_key", cfg.Embedding.ModelKey),
		zap.Bool("encoder_ready", c.Encoder != nil))
	return c, nil
}

func printUsage() {
	fmt.Println(`autocat - automatic category classification for image galleries

Usage:
  autocat server [flags]              Start the HTTP server
  autocat classify [flags] <item-id>  Classify one item
  autocat reclassify [flags]          Reclassify items in batch (dry run by default)
  autocat prototypes [flags]          Show category prototypes
  autocat embed [flags] <item-id>     Encode an item image (or --categories for names)
  autocat seed [names...]             Create the default (or given) categories
  autocat lock [flags] <item-id>      Lock, unlock, or manually categorize an item
  autocat status [flags]              Show corpus and encoder status
  autocat config [flags]              Print the effective configuration
  autocat version                     Show version
  autocat help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/autocat/config.yaml)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Classify Flags:
  --dry-run          Compute the outcome without writing it
  --threshold float  Override the confidence threshold

Reclassify Flags:
  --limit int              Maximum items to scan (default from config, or 5000)
  --threshold float        Override the confidence threshold
  --dry-run                Report without writing (default: true; use --dry-run=false to apply)
  --force                  Let every unlocked item change category
  --only-uncategorized     In safe mode, only move Uncategorized items (default: true)
  --include-deleted        Include soft-deleted items (default: true)

Lock Flags:
  --unlock           Release the lock
  --category string  Set the category manually (always locks)

Examples:
  autocat seed
  autocat embed --categories
  autocat classify --dry-run 01HX...
  autocat reclassify --limit 500
  autocat reclassify --dry-run=false --only-uncategorized=false
  autocat lock --category <category-id> <item-id>
  autocat status --output json`)
}
