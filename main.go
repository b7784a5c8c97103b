package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Atronar/yt-dlp-web-api/auth"
	"github.com/Atronar/yt-dlp-web-api/config"
	"github.com/Atronar/yt-dlp-web-api/failures"
	"github.com/Atronar/yt-dlp-web-api/fetcher"
	"github.com/Atronar/yt-dlp-web-api/janitor"
	"github.com/Atronar/yt-dlp-web-api/job"
	"github.com/Atronar/yt-dlp-web-api/limits"
	"github.com/Atronar/yt-dlp-web-api/logger"
	"github.com/Atronar/yt-dlp-web-api/metrics"
	"github.com/Atronar/yt-dlp-web-api/mirror"
	"github.com/Atronar/yt-dlp-web-api/proxy"
	"github.com/Atronar/yt-dlp-web-api/routes"
	"github.com/Atronar/yt-dlp-web-api/success"
	"github.com/Atronar/yt-dlp-web-api/tagger"
	"github.com/Atronar/yt-dlp-web-api/transcoder"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	config.LoadEnv()
	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.LogFile, true); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.Info("Starting yt-dlp web API initialization")

	var report func(error)
	if cfg.BugCatcher {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.BugCatcherDSN}); err != nil {
			logger.Fatalf("Failed to initialize error reporting: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
		report = func(err error) { sentry.CaptureException(err) }
		logger.Info("Error reporting enabled")
	}

	for _, dir := range []string{cfg.DownloadsPath, cfg.DataPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	// Initialize job history stores
	logger.Debug("Initializing success database")
	successes, err := success.Open(cfg.SuccessDBPath())
	if err != nil {
		logger.Fatalf("Failed to initialize success store: %v", err)
	}
	defer successes.Close()

	logger.Debug("Initializing failures database")
	failed, err := failures.Open(cfg.FailuresDBPath())
	if err != nil {
		logger.Fatalf("Failed to initialize failure store: %v", err)
	}
	defer failed.Close()
	logger.Info("Job history databases initialized successfully")

	recorder := metrics.New()

	tc := transcoder.New(cfg.FFmpegPath, cfg.GifsiclePath)
	for _, kind := range []string{"mp4", "gif"} {
		if !tc.Supports(kind) {
			logger.Warnf("No %s renderer available; clip requests for it will fail", kind)
		}
	}

	deps := job.Deps{
		DownloadsDir: cfg.DownloadsPath,
		BaseURL:      cfg.URL,
		Limits: limits.New(cfg.MaxLength, cfg.MaxPlaylistLength, cfg.MaxGifLength,
			cfg.MaxGifResolution, cfg.MaxLengthPlaylistVideo),
		Fetcher:    fetcher.NewYtDlp(cfg.YtDlpPath),
		Direct:     fetcher.NewDirect(),
		Transcoder: tc,
		Tagger:     tagger.New(),
		Successes:  successes,
		Failures:   failed,
		Metrics:    recorder,
		Report:     report,
	}

	var pool *proxy.Pool
	if cfg.ProxiesEnabled() {
		pool = proxy.NewPool(cfg.ProxyCachePath, cfg.ProxyListURL.URL)
		pool.OnSwap = recorder.Proxies
		deps.Proxies = pool
		logger.Infof("Proxies enabled from %s", cfg.ProxyListURL.URL)
		// Jobs need a proxy, so the first list is in place before serving.
		if err := pool.Init(context.Background()); err != nil {
			logger.Errorf("%v; jobs will fail until a refresh succeeds", err)
		}
	}
	if len(cfg.Mirrors) > 0 {
		deps.Mirror = mirror.NewSet(cfg.Mirrors)
		logger.Infof("Mirroring artifacts to %d targets", len(cfg.Mirrors))
	}
	executor := job.NewExecutor(deps)

	var verify *auth.VerifyConfig
	if cfg.JWTSecret != "" {
		verify = &auth.VerifyConfig{
			SecretKey:      []byte(cfg.JWTSecret),
			ExpectedIssuer: cfg.JWTIssuer,
			ClockSkew:      30 * time.Second,
		}
		logger.Info("Bearer token authentication enabled for job requests")
	}

	// Register HTTP routes
	handler := routes.NewRouter(routes.Options{
		DownloadsDir:      cfg.DownloadsPath,
		AllowedOrigins:    cfg.AllowedOrigins,
		Jobs:              executor,
		Fetcher:           deps.Fetcher,
		Successes:         successes,
		Failures:          failed,
		Metrics:           recorder,
		Auth:              verify,
		RequestsPerSecond: cfg.RequestsPerSecond,
		RequestBurst:      cfg.RequestBurst,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ListeningPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	jan := janitor.New(cfg.DownloadsPath, map[string]janitor.RecordPruner{
		"success": successes,
		"failure": failed,
	})
	jan.OnSweep = recorder.Swept
	g.Go(func() error { return jan.Run(gctx) })

	if pool != nil {
		g.Go(func() error { return pool.Run(gctx) })
	}

	g.Go(func() error {
		logger.Infof("yt-dlp web API listening on port %d", cfg.ListeningPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down: draining in-flight requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Server stopped with error: %v", err)
		if report != nil {
			report(err)
		}
		return
	}
	logger.Info("Server stopped")
}
