package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/oshokin/pump-monitor/internal/api/rest"
	"github.com/oshokin/pump-monitor/internal/config"
	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/logger"
	"github.com/oshokin/pump-monitor/internal/port"
	"github.com/oshokin/pump-monitor/internal/repository/battery"
)

// Options controls the pump-monitor process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Ports overrides the configured candidate ports when not empty.
	Ports []string
	// LogLevel overrides the configured log level when not empty.
	LogLevel string
	// NoConnect skips connecting to the pump on startup.
	NoConnect bool
	// Opener overrides the serial port opener; used by tests.
	Opener port.Opener
}

// errInvalidLevel is returned for a battery level outside [0, 100].
var errInvalidLevel = errors.New("battery level must be between 0 and 100")

// Run starts the monitor and blocks until ctx is canceled or a server fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "pump-monitor")

	// Load configuration first to get every other setting.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if len(opts.Ports) > 0 {
		settings.Ports = opts.Ports
	}

	if opts.LogLevel != "" {
		settings.Log.Level = opts.LogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.Log.Level); !ok {
		return fmt.Errorf("unknown log level %q", settings.Log.Level)
	}

	logger.Setup(settings.Log.Level, settings.Log.Format)
	defer logger.Sync()

	opener := opts.Opener
	if opener == nil {
		opener = port.OpenSerial(port.Config{
			BaudRate:    settings.BaudRate,
			ReadTimeout: settings.ReadTimeout,
		})
	}

	// Listen before building anything that starts goroutines.
	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", settings.HTTP.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.HTTP.Address, err)
	}

	var grpcListener net.Listener
	if settings.GRPC.Address != "" {
		grpcListener, err = lc.Listen(ctx, "tcp", settings.GRPC.Address)
		if err != nil {
			_ = httpListener.Close()
			return fmt.Errorf("listen on %s: %w", settings.GRPC.Address, err)
		}
	}

	a, err := newApp(ctx, settings, opener, os.Stdout)
	if err != nil {
		_ = httpListener.Close()

		if grpcListener != nil {
			_ = grpcListener.Close()
		}

		return fmt.Errorf("initialise monitor: %w", err)
	}

	logger.InfoKV(ctx, "Pump monitor started",
		"session_id", a.session.ID(),
		"ports", settings.Ports,
		"battery_file", settings.BatteryFile,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 2)
	)

	wg.Go(func() {
		if err := rest.Serve(runCtx, httpListener, a.router); err != nil {
			errs <- err

			cancel()
		}
	})

	if grpcListener != nil {
		wg.Go(func() {
			if err := serveGRPC(runCtx, grpcListener, a); err != nil {
				errs <- err

				cancel()
			}
		})
	}

	wg.Go(func() {
		a.session.RunTimers(runCtx)
	})

	if !opts.NoConnect && !settings.ManualConnect {
		if _, err := a.session.Connect(runCtx, settings.Ports); err != nil {
			logger.WarnKV(ctx, "Pump not connected, use POST /connect to retry", "error", err)
		}
	}

	<-runCtx.Done()
	logger.Info(ctx, "Shutting down pump monitor")

	wg.Wait()
	a.close(context.WithoutCancel(ctx))

	close(errs)

	var serveErr error
	for err := range errs {
		serveErr = errors.Join(serveErr, err)
	}

	logger.Info(ctx, "Pump monitor stopped")

	return serveErr
}

// serveGRPC serves the health service until ctx is canceled.
func serveGRPC(ctx context.Context, lis net.Listener, a *app) error {
	grpcServer := grpc.NewServer()
	a.health.Register(grpcServer)

	logger.InfoKV(ctx, "gRPC health listening", "listen_address", lis.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		a.health.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// ResetBattery writes level to the configured battery file. A running
// monitor picks it up on restart; POST /battery/reset resets a live one.
func ResetBattery(ctx context.Context, configPath string, level float64) error {
	if level < 0 || level > pump.FullBattery {
		return fmt.Errorf("%w: %v", errInvalidLevel, level)
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	repo := battery.NewFileRepository(settings.BatteryFile)

	record := &battery.Record{
		Level:     level,
		Timestamp: time.Now(),
	}

	if err := repo.Save(ctx, record); err != nil {
		return fmt.Errorf("save battery level: %w", err)
	}

	logger.InfoKV(ctx, "Battery level reset", "level", level, "battery_file", settings.BatteryFile)

	return nil
}
