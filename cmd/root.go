// Package cmd is the load generator's command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yashrajoria/E-Commerce-loadgen/browser"
	"github.com/yashrajoria/E-Commerce-loadgen/catalog"
	"github.com/yashrajoria/E-Commerce-loadgen/clients"
	"github.com/yashrajoria/E-Commerce-loadgen/config"
	"github.com/yashrajoria/E-Commerce-loadgen/controllers"
	"github.com/yashrajoria/E-Commerce-loadgen/flags"
	"github.com/yashrajoria/E-Commerce-loadgen/logger"
	"github.com/yashrajoria/E-Commerce-loadgen/middleware"
	awspkg "github.com/yashrajoria/E-Commerce-loadgen/pkg/aws"
	"github.com/yashrajoria/E-Commerce-loadgen/routes"
	"github.com/yashrajoria/E-Commerce-loadgen/runner"
	"github.com/yashrajoria/E-Commerce-loadgen/stats"
	"github.com/yashrajoria/E-Commerce-loadgen/telemetry"
	"github.com/yashrajoria/E-Commerce-loadgen/users"
)

type overrides struct {
	users      int
	spawnRate  float64
	host       string
	runTime    time.Duration
	statusAddr string
}

// NewRootCmd returns the load generator command.
func NewRootCmd() *cobra.Command {
	var o overrides
	root := &cobra.Command{
		Use:   "loadgen",
		Short: "Synthetic shopper traffic for the storefront",
		Long: `loadgen simulates a population of shoppers against the storefront.
Each virtual user browses products, asks for recommendations and ads, fills
carts and checks out, with weights favouring browsing. When browser traffic
is enabled a headless Chrome population runs UI journeys as well.

Settings come from the environment (and an optional .env file); flags
override them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.load(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := root.Flags()
	f.IntVarP(&o.users, "users", "u", 0, "number of virtual users (LOCUST_USERS)")
	f.Float64VarP(&o.spawnRate, "spawn-rate", "r", 0, "users started per second (LOCUST_SPAWN_RATE)")
	f.StringVarP(&o.host, "host", "H", "", "storefront base URL (TARGET_HOST)")
	f.DurationVarP(&o.runTime, "run-time", "t", 0, "stop after this long, 0 runs until interrupted (LOCUST_RUN_TIME)")
	f.StringVar(&o.statusAddr, "status-addr", "", "status server listen address (STATUS_ADDR)")
	return root
}

// load reads the environment, applies the flags given on the command line
// and validates the result.
func (o overrides) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	o.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("users") {
		cfg.Users = o.users
	}
	if f.Changed("spawn-rate") {
		cfg.SpawnRate = o.spawnRate
	}
	if f.Changed("host") {
		cfg.TargetHost = strings.TrimRight(o.host, "/")
	}
	if f.Changed("run-time") {
		cfg.RunTime = o.runTime
	}
	if f.Changed("status-addr") {
		cfg.StatusAddr = o.statusAddr
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	// AWS clients are optional; the generator runs without them.
	var (
		metricsClient *awspkg.MetricsClient
		logsClient    *awspkg.CloudWatchLogsClient
		logsWriter    io.Writer
	)
	var awsErr error
	if cfg.CloudWatchEnabled {
		if metricsClient, awsErr = awspkg.NewMetricsClient(ctx); awsErr == nil {
			if logsClient, awsErr = awspkg.NewCloudWatchLogsClient(ctx, cfg.ServiceName); awsErr == nil {
				logsWriter = logsClient
			}
		}
	}

	if err := logger.InitializeWithWriter(cfg.Env, cfg.LogLevel, os.Stdout, logsWriter); err != nil {
		return err
	}
	log := logger.Log
	defer log.Sync() //nolint:errcheck
	if awsErr != nil {
		log.Warn("CloudWatch unavailable, continuing without it", zap.Error(awsErr))
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	cat, err := catalog.Load(cfg.PeopleFile)
	if err != nil {
		return err
	}
	behaviors, err := users.WithWeights(users.DefaultBehaviors(), cfg.BehaviorWeights)
	if err != nil {
		return err
	}
	picker, err := users.NewPicker(behaviors)
	if err != nil {
		return err
	}

	// Stats and sinks.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sinks := []stats.Sink{stats.NewPrometheusSink(reg)}
	var cwSink *stats.CloudWatchSink
	if metricsClient != nil && metricsClient.IsEnabled() {
		cwSink = stats.NewCloudWatchSink(metricsClient, log.Named("stats"))
		sinks = append(sinks, cwSink)
	}
	recorder := stats.NewRecorder(sinks...)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	var background sync.WaitGroup
	if cwSink != nil {
		background.Go(func() { cwSink.Run(runCtx, cfg.StatsInterval) })
	}
	if logsClient != nil && logsClient.IsEnabled() {
		background.Go(func() { logsClient.Run(runCtx, 5*time.Second) })
	}
	background.Go(func() { recorder.Report(runCtx, log.Named("stats"), cfg.StatsInterval) })

	srv := newStatusServer(cfg, recorder, reg, metricsClient, log)
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Status server listening", zap.String("addr", cfg.StatusAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	flagClient := flags.NewClient(cfg.FlagdBaseURL(), cfg.FlagTimeout, log.Named("flags"))
	storefront := clients.NewStorefrontClient(cfg.TargetHost, cfg.RequestTimeout, recorder)

	deps := users.Deps{
		Storefront: storefront,
		Catalog:    cat,
		Flags:      flagClient,
		Stats:      recorder,
		Picker:     picker,
		Log:        log.Named("user"),
	}
	userOpts := users.Options{ThinkMin: cfg.ThinkMin, ThinkMax: cfg.ThinkMax}
	groups := []runner.Group{{
		Kind:  runner.KindHTTP,
		Count: cfg.Users,
		Run: func(ctx context.Context, rng *rand.Rand) error {
			users.New(deps, userOpts, rng).Run(ctx)
			return nil
		},
	}}
	if cfg.BrowserTrafficEnabled {
		groups = append(groups, browserGroup(cfg, recorder, log.Named("browser")))
	}

	log.Info("Load generator started",
		zap.String("target", cfg.TargetHost),
		zap.String("flagd", cfg.FlagdBaseURL()),
		zap.Bool("browser_traffic", cfg.BrowserTrafficEnabled),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = runner.New(runner.Options{SpawnRate: cfg.SpawnRate, RunTime: cfg.RunTime}, recorder, log.Named("runner"), groups...).Run(runCtx)
	}()

	var runErr error
	select {
	case <-done:
	case runErr = <-serverErr:
		log.Error("Status server failed", zap.Error(runErr))
		cancelRun()
		<-done
	}
	cancelRun()

	log.Info("Shutting down load generator")
	recorder.LogSummary(log.Named("stats"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Status server forced to shutdown", zap.Error(err))
	}
	background.Wait()
	if logsClient != nil && logsClient.IsEnabled() {
		_ = logsClient.Flush(shutdownCtx)
	}
	if runErr != nil {
		return fmt.Errorf("status server: %w", runErr)
	}
	return nil
}

func newStatusServer(cfg config.Config, recorder *stats.Recorder, reg *prometheus.Registry, metricsClient *awspkg.MetricsClient, log *zap.Logger) *http.Server {
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(log.Named("status")))
	r.Use(middleware.MetricsMiddleware(metricsClient, cfg.ServiceName))

	routes.RegisterStatusRoutes(r, controllers.NewStatusController(recorder, log.Named("status")), reg)

	return &http.Server{
		Addr:              cfg.StatusAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func browserGroup(cfg config.Config, recorder *stats.Recorder, log *zap.Logger) runner.Group {
	bcfg := browser.Config{
		BaseURL:  cfg.TargetHost,
		Timeouts: browser.Timeouts{Step: cfg.BrowserStepTimeout, Settle: cfg.BrowserSettleTimeout},
		ThinkMin: cfg.ThinkMin,
		ThinkMax: cfg.ThinkMax,
		Stats:    recorder,
		Log:      log,
		NewDriver: func(ctx context.Context) (browser.Driver, error) {
			return browser.NewChromeDriver(ctx, browser.ChromeOptions{
				ExecPath: cfg.BrowserExecPath,
				Log:      log,
			})
		},
	}
	return runner.Group{
		Kind:  runner.KindBrowser,
		Count: cfg.BrowserUsers,
		Run: func(ctx context.Context, rng *rand.Rand) error {
			return browser.NewUser(bcfg, rng).Run(ctx)
		},
	}
}
