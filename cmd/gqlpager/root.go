package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/graphql-pager/pkg/cache"
	"github.com/Sternrassler/graphql-pager/pkg/client"
	"github.com/Sternrassler/graphql-pager/pkg/config"
	"github.com/Sternrassler/graphql-pager/pkg/logging"
	"github.com/Sternrassler/graphql-pager/pkg/metrics"
	"github.com/Sternrassler/graphql-pager/pkg/probe"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	logLevel    string
	pretty      bool
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "gqlpager",
		Short:         "gqlpager fetches complete paged GraphQL collections.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "gqlpager.json5", "Configuration file (a <name>.local.<ext> file is merged over it).")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides the config file).")
	flags.BoolVar(&opts.pretty, "pretty", false, "Human-readable console logs instead of JSON.")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address while running.")

	cmd.AddCommand(newFetchCmd(opts), newProbeCmd(opts))
	return cmd
}

// load reads the configuration and sets up logging.
func (o *globalOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cfg, err
	}

	logging.Setup(logging.Config{
		Level:  level,
		Pretty: o.pretty || cfg.Log.Pretty,
		Output: os.Stderr,
	})

	return cfg, nil
}

// session holds the collaborators of one command run.
type session struct {
	cfg     config.Config
	client  *client.Client
	prober  *probe.Prober
	closers []func()
}

func (o *globalOptions) open(ctx context.Context, cfg config.Config) (*session, error) {
	s := &session{cfg: cfg}

	if o.metricsAddr != "" {
		addr, shutdown, err := startMetricsServer(o.metricsAddr)
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		s.closers = append(s.closers, shutdown)
	}

	c, err := client.New(client.Config{
		Endpoint:  cfg.Endpoint,
		Token:     cfg.Token,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout.Std(),
		Headers:   cfg.Headers,
	})
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to create GraphQL client: %w", err)
	}
	s.client = c

	probeOpts := []probe.Option{probe.WithPause(cfg.Probe.Pause.Std())}
	if manager, closeRedis := openCache(ctx, cfg.Redis.URL); manager != nil {
		probeOpts = append(probeOpts, probe.WithCache(manager, cfg.Probe.CacheTTL.Std()))
		s.closers = append(s.closers, closeRedis)
	}
	s.prober = probe.New(c, probeOpts...)

	return s, nil
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// probeTarget describes the configured collection for the prober.
func (s *session) probeTarget() probe.Target {
	return probe.Target{
		Endpoint:    s.cfg.Endpoint,
		OffsetQuery: s.cfg.Queries.Offset,
		CursorQuery: s.cfg.Queries.Cursor,
		Variables:   s.cfg.Variables,
		PageSize:    s.cfg.Probe.PageSize,
		Locator:     s.cfg.Locator(),
	}
}

// openCache connects to Redis for probe reports. Probing works without it, so connection
// problems only disable caching.
func openCache(ctx context.Context, url string) (*cache.Manager, func()) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid Redis URL, probe cache disabled")
		return nil, nil
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unavailable, probe cache disabled")
		rdb.Close()
		return nil, nil
	}

	log.Debug().Str("addr", opts.Addr).Msg("Connected to Redis")
	return cache.NewManager(rdb), func() { rdb.Close() }
}

// startMetricsServer serves Prometheus metrics and a health check on addr.
// It returns the bound address and a shutdown function.
func startMetricsServer(addr string) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return ln.Addr().String(), shutdown, nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
