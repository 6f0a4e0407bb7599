package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	api "github.com/oshokin/sayit-alarm/internal/api/grpc/alarmclock"
	"github.com/oshokin/sayit-alarm/internal/config"
	"github.com/oshokin/sayit-alarm/internal/delivery"
	"github.com/oshokin/sayit-alarm/internal/logger"
	"github.com/oshokin/sayit-alarm/internal/metrics"
	"github.com/oshokin/sayit-alarm/internal/player"
	"github.com/oshokin/sayit-alarm/internal/repository/alarms"
	wakeuprepo "github.com/oshokin/sayit-alarm/internal/repository/wakeup"
	"github.com/oshokin/sayit-alarm/internal/sayit"
	"github.com/oshokin/sayit-alarm/internal/schedule"
	"github.com/oshokin/sayit-alarm/internal/speech"
	"github.com/oshokin/sayit-alarm/internal/wakeup"
)

// metricsReadHeaderTimeout bounds slow clients of the metrics endpoint.
const metricsReadHeaderTimeout = 5 * time.Second

// Options controls the alarm-clockd process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// Database overrides the SQLite alarm store path.
	Database string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the daemon and blocks until ctx is canceled or the gRPC server stops.
//
//nolint:funlen // Run is the composition root of the daemon.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	setupLogger(settings)

	ctx = logger.WithName(ctx, "alarm-clockd")

	database := settings.Database
	if opts.Database != "" {
		database = opts.Database
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	store, err := alarms.Open(ctx, database)
	if err != nil {
		return fmt.Errorf("open alarm store: %w", err)
	}

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Close alarm store failed", "error", closeErr)
		}
	}()

	timer := wakeup.NewTimer(wakeuprepo.NewFileRepository(settings.WakeupFile))
	if err = timer.Start(ctx); err != nil {
		return fmt.Errorf("start wakeup timer: %w", err)
	}

	defer timer.Stop()

	var recorder metrics.Recorder = metrics.Noop{}

	var prom *metrics.Prometheus
	if settings.MetricsAddress != "" {
		prom = metrics.NewPrometheus()
		recorder = prom
	}

	scheduler := schedule.NewScheduler(store, timer, schedule.WithRecorder(recorder))
	if err = scheduler.Reconcile(ctx); err != nil {
		logger.WarnKV(ctx, "Initial reconcile failed", "error", err)
	}

	svc := newService(store, scheduler, sessionFactoryFor(store, settings), recorder, settings.SnoozeMinutes)

	reconciler, err := startReconciler(ctx, scheduler, settings.ReconcileSchedule)
	if err != nil {
		return err
	}

	defer func() {
		<-reconciler.Stop().Done()
	}()

	if prom != nil {
		metricsDone := make(chan struct{})

		go func() {
			defer close(metricsDone)

			serveMetrics(ctx, settings.MetricsAddress, prom.Handler())
		}()

		defer func() {
			<-metricsDone
		}()
	}

	go svc.consumeWakes(ctx, timer.Wakes())

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(api.LoggingInterceptor(ctx)))
	api.RegisterAlarmClockServer(grpcServer, api.NewServer(svc))

	logger.InfoKV(ctx, "Alarm clock daemon listening",
		"listen_address", listenAddress,
		"database", database,
		"wakeup_file", settings.WakeupFile,
	)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err = grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done

	// Cancelled ctx disconnects every ringing session.
	svc.wait()
	logger.Info(ctx, "Alarm clock daemon stopped")

	return nil
}

// setupLogger applies the configured level and optional log file.
func setupLogger(settings *config.Config) {
	level, _ := logger.ParseLogLevel(settings.LogLevel)
	logger.SetLevel(level)

	if settings.LogFile != "" {
		logger.SetLogger(logger.NewWithFile(nil, settings.LogFile))
	}
}

// sessionFactoryFor builds sessions with a dedicated player and recognizer each.
func sessionFactoryFor(store AlarmStore, settings *config.Config) sessionFactory {
	playerConfig := player.Config{
		SoundCommand:    settings.Player.SoundCommand,
		VibrateCommand:  settings.Player.VibrateCommand,
		DefaultRingtone: settings.Player.DefaultRingtone,
	}

	return func(alarmID int64, opts ...delivery.Option) (*delivery.Session, func()) {
		var recognizer interface {
			sayit.Recognizer
			Close() error
		} = speech.Disabled{}

		if settings.Recognizer.URL != "" {
			recognizer = speech.NewClient(speech.Config{
				URL:      settings.Recognizer.URL,
				Language: settings.Recognizer.Language,
				APIKey:   settings.Recognizer.APIKey,
			})
		}

		session := delivery.NewSession(alarmID, store, player.NewExec(playerConfig), recognizer, opts...)

		release := func() {
			if err := recognizer.Close(); err != nil {
				logger.WarnKV(context.Background(), "Close recognizer failed", "alarm_id", alarmID, "error", err)
			}
		}

		return session, release
	}
}

// startReconciler re-arms enabled alarms on the configured cron schedule.
func startReconciler(ctx context.Context, scheduler *schedule.Scheduler, spec string) (*cron.Cron, error) {
	reconciler := cron.New(cron.WithLogger(newCronLogger(ctx)))

	_, err := reconciler.AddFunc(spec, func() {
		if reconcileErr := scheduler.Reconcile(ctx); reconcileErr != nil {
			logger.WarnKV(ctx, "Reconcile failed", "error", reconcileErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reconcile %q: %w", spec, err)
	}

	reconciler.Start()

	return reconciler, nil
}

// serveMetrics exposes the Prometheus handler until ctx is done.
func serveMetrics(ctx context.Context, address string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	//nolint:exhaustruct // Remaining server fields keep their defaults.
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		if err := server.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.WarnKV(ctx, "Shutdown metrics server failed", "error", err)
		}
	}()

	logger.InfoKV(ctx, "Metrics endpoint listening", "metrics_address", address)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorKV(ctx, "Serve metrics failed", "error", err)
	}
}

// cronLogger forwards cron's own logs to the daemon logger. Routine scheduler
// events are only shown when the daemon runs at debug level.
type cronLogger struct {
	log *zap.SugaredLogger
}

func newCronLogger(ctx context.Context) cronLogger {
	log := logger.FromContext(ctx).Named("cron")
	if logger.Level() > zap.DebugLevel {
		log = log.WithOptions(logger.WithLevel(zap.WarnLevel))
	}

	return cronLogger{log: log}
}

// Info logs routine scheduler events.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Infow(msg, keysAndValues...)
}

// Error logs failed jobs.
func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}
