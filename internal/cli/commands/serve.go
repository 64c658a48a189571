package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schemalens/schemalens/internal/analysis"
	"github.com/schemalens/schemalens/internal/cache"
	"github.com/schemalens/schemalens/internal/cli/config"
	"github.com/schemalens/schemalens/internal/ledger"
	"github.com/schemalens/schemalens/internal/service"
	"github.com/schemalens/schemalens/internal/source"
	"github.com/schemalens/schemalens/internal/source/javasrc"
	"github.com/schemalens/schemalens/internal/store"
)

const shutdownTimeout = 30 * time.Second

var (
	serveHost string
	servePort int
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis service",
		Long: `Serve the analysis API over HTTP.

POST /api/analyses queues runs on an in-process worker pool; run
progress streams over a websocket at /api/analyses/{id}/events.
Served documents are cached (Redis when configured, in-memory
otherwise) and mirrored to every configured document store.`,
		Example: `  # Serve with the configured address
  schemalens serve

  # Bind everywhere on a different port
  schemalens serve --host 0.0.0.0 --port 9000`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveHost, "host", "", "Bind address (default from config)")
	cmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	host := cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("open run ledger %s: %w", cfg.Ledger.Path, err)
	}
	defer l.Close()

	c, err := buildCache(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	// The file store doubles as the primary read path for served documents
	docs := store.NewFileStore(filepath.Join(cfg.Output.Dir, "documents"))
	mirrors, cleanup, err := buildMirrors(cfg, docs)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := analysis.Options{
		Parser:      source.NewCachedParser(javasrc.NewParser()),
		OutputBase:  cfg.Output.Dir,
		StagingBase: cfg.Staging.Dir,
		Compress:    cfg.Output.Compress,
		Concurrency: cfg.Analysis.Concurrency,
		MaxFileSize: cfg.Analysis.MaxFileSize,
		Mirrors:     mirrors,
		Ledger:      l,
		Logger:      logger,
	}

	svcCfg := service.DefaultConfig()
	svcCfg.Host = host
	svcCfg.Port = port
	svcCfg.Workers = cfg.Server.Workers
	svcCfg.QueueSize = cfg.Server.QueueSize
	svcCfg.Cache = c
	svcCfg.DocumentStore = docs

	srv, err := service.NewServer(svcCfg, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Restore default signal handling so a second interrupt kills the
	// process instead of waiting out the drain
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return <-errCh
}

// buildCache selects the served-document cache: Redis when an address is
// configured, the in-process cache otherwise.
func buildCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryCache(), nil
	}

	cacheCfg := cache.DefaultConfig()
	if cfg.Cache.TTL > 0 {
		cacheCfg.DefaultTTL = cfg.Cache.TTL
	}

	c, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		Config:   cacheCfg,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// buildMirrors assembles the document stores every run is mirrored to: the
// local file store always, Postgres and S3 when configured. The returned
// cleanup closes whatever was opened.
func buildMirrors(cfg *config.Config, docs store.Store) ([]store.Store, func(), error) {
	mirrors := []store.Store{docs}
	cleanup := func() {}

	if dsn := config.GetDatabaseURL(); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		db, err := store.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		mirrors = append(mirrors, store.NewPostgresStore(db))
		cleanup = func() { db.Close() }
	}

	if cfg.S3.Endpoint != "" {
		s3, err := store.NewS3Store(store.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		mirrors = append(mirrors, s3)
	}

	return mirrors, cleanup, nil
}
