package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/dshills/memex-mcp/internal/config"
	"github.com/dshills/memex-mcp/internal/embedder"
	"github.com/dshills/memex-mcp/internal/mcp"
	"github.com/dshills/memex-mcp/internal/service"
	"github.com/dshills/memex-mcp/internal/storage"
	"github.com/dshills/memex-mcp/internal/watch"
	"github.com/dshills/memex-mcp/pkg/types"

	httpT "github.com/dshills/memex-mcp/internal/transport/http"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Printf("Memex MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
	}

	cmd := &cli.Command{
		Name:    "memex",
		Usage:   "Markdown knowledge base for AI assistants",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "kb",
				Usage:   "Path to the knowledge base directory",
				Sources: cli.EnvVars("MEMEX_KB"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the knowledge base over MCP stdio",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "http",
						Usage:   "Also serve the REST API on this address (e.g. :8080)",
						Sources: cli.EnvVars("MEMEX_HTTP_ADDR"),
					},
					&cli.BoolFlag{
						Name:    "watch",
						Usage:   "Reindex a collection when its markdown files change on disk",
						Sources: cli.EnvVars("MEMEX_WATCH"),
					},
				},
				Action: serve,
			},
			{
				Name:   "init",
				Usage:  "Create the knowledge base layout",
				Action: initKnowledgeBase,
			},
			{
				Name:   "stats",
				Usage:  "Show file and index statistics",
				Action: stats,
			},
			{
				Name:   "doctor",
				Usage:  "Check the knowledge base and the embedding provider",
				Action: doctor,
			},
			{
				Name:  "reindex",
				Usage: "Rebuild the vector index from the markdown files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Only reindex guide or context",
					},
					&cli.BoolFlag{
						Name:  "only-new",
						Usage: "Skip documents whose UUID is already indexed",
					},
				},
				Action: reindex,
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

// openService loads the configuration and opens the knowledge base, which
// must already exist
func openService(cmd *cli.Command, log *zap.Logger) (service.Service, config.Config, error) {
	cfg, err := config.Load(cmd.String("kb"))
	if err != nil {
		return nil, cfg, err
	}

	kb, err := config.ResolveKnowledgeBase(cfg.KnowledgeBase)
	if err != nil {
		return nil, cfg, err
	}
	cfg.KnowledgeBase = kb

	svc, err := service.NewService(cfg, log)
	if err != nil {
		return nil, cfg, err
	}

	return service.LoggingMiddleware(log)(svc), cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	svc, cfg, err := openService(cmd, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	log.Info("knowledge base opened",
		zap.String("path", cfg.KnowledgeBase),
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("build_mode", storage.BuildMode),
		zap.String("driver", storage.DriverName),
	)

	httpAddr := cmd.String("http")
	if httpAddr == "" {
		httpAddr = cfg.HTTPAddr
	}
	if httpAddr != "" {
		// stdout carries the MCP protocol
		gin.DefaultWriter = os.Stderr
		gin.DefaultErrorWriter = os.Stderr

		r := gin.Default()
		httpT.AddRouters(r, service.NewEndpointSet(svc), cfg.ErrorDetail)

		go func() {
			if err := r.Run(httpAddr); err != nil {
				log.Error("http transport stopped", zap.Error(err))
			}
		}()
		log.Info("http transport listening", zap.String("addr", httpAddr))
	}

	if cmd.Bool("watch") {
		w := watch.New(map[types.Kind]string{
			types.KindGuide:   cfg.GuidesPath(),
			types.KindContext: cfg.ContextsPath(),
		}, svc, watch.DefaultDebounce, log.Named("watch"))

		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("watcher stopped", zap.Error(err))
			}
		}()
	}

	mcp.ServerVersion = version
	srv := mcp.NewServer(svc, cfg.ErrorDetail, log.Named("mcp"))

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sign := <-quit:
		log.Info("graceful shutdown", zap.String("signal", sign.String()))
		cancel()
	case err := <-errs:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("stdin closed, shutting down")
	}

	return nil
}

func initKnowledgeBase(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("kb"))
	if err != nil {
		return err
	}

	for _, dir := range []string{cfg.GuidesPath(), cfg.ContextsPath(), cfg.VectorsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	added, err := ensureGitignore(cfg.KnowledgeBase, config.VectorsDir+"/")
	if err != nil {
		return err
	}

	fmt.Printf("Knowledge base ready at %s\n", cfg.KnowledgeBase)
	fmt.Printf("  %s/\n  %s/\n  %s/\n", config.GuidesDir, config.ContextsDir, config.VectorsDir)
	if added {
		fmt.Printf("Added %s/ to .gitignore\n", config.VectorsDir)
	}
	return nil
}

// ensureGitignore appends entry to root/.gitignore unless a line already
// matches it. It reports whether the file changed.
func ensureGitignore(root, entry string) (bool, error) {
	path := filepath.Join(root, ".gitignore")

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	lines := strings.Split(string(data), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	if slices.Contains(lines, entry) || slices.Contains(lines, strings.TrimSuffix(entry, "/")) {
		return false, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	prefix := ""
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		prefix = "\n"
	}
	if _, err := f.WriteString(prefix + entry + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

func stats(ctx context.Context, cmd *cli.Command) error {
	svc, _, err := openService(cmd, zap.NewNop())
	if err != nil {
		return err
	}
	defer svc.Close()

	status, err := svc.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Knowledge base: %s\n", status.KnowledgeBase)
	fmt.Printf("Provider:       %s (%s)\n", status.Provider, status.Model)
	fmt.Printf("Storage:        %s, driver %s\n", status.BuildMode, status.Driver)
	fmt.Println()
	fmt.Printf("Files:     %d guides, %d contexts\n", status.Files[types.KindGuide], status.Files[types.KindContext])

	idx := status.Index
	fmt.Printf("Indexed:   %d guides, %d contexts\n", idx.ByKind[types.KindGuide], idx.ByKind[types.KindContext])
	fmt.Printf("Records:   %d documents, %d sections, %d chunks\n", idx.Documents, idx.Sections, idx.Chunks)
	fmt.Printf("Models:    %s\n", strings.Join(idx.Models, ", "))
	fmt.Printf("Size:      %.2f MB (schema %s)\n", idx.IndexSizeMB, idx.SchemaVer)

	if !idx.Health.ConsistentDimension {
		fmt.Println("\nWarning: the index mixes vector dimensions, run 'memex reindex'")
	}
	return nil
}

func doctor(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("kb"))
	if err != nil {
		return err
	}

	failed := 0
	check := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Printf("[FAIL] %s: %v\n", name, err)
			return
		}
		fmt.Printf("[ OK ] %s\n", name)
	}

	if cfg.Source != "" {
		fmt.Printf("Config file: %s\n", cfg.Source)
	}

	_, err = config.ResolveKnowledgeBase(cfg.KnowledgeBase)
	check("knowledge base "+cfg.KnowledgeBase, err)

	for _, dir := range []string{cfg.GuidesPath(), cfg.ContextsPath()} {
		_, err := config.ResolveKnowledgeBase(dir)
		check("directory "+dir, err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err == nil {
		defer emb.Close()
		err = embedder.Check(ctx, emb)
	}
	check(fmt.Sprintf("embedding provider %s", cfg.Embedding.Provider), err)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func reindex(ctx context.Context, cmd *cli.Command) error {
	var kind types.Kind
	if t := cmd.String("type"); t != "" {
		k, err := types.ParseKind(t)
		if err != nil {
			return err
		}
		kind = k
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, _, err := openService(cmd, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	counts, err := svc.Reindex(ctx, kind, cmd.Bool("only-new"))
	for _, k := range []types.Kind{types.KindGuide, types.KindContext} {
		if n, ok := counts[k]; ok {
			fmt.Printf("%ss: %d indexed\n", k, n)
		}
	}
	return err
}
