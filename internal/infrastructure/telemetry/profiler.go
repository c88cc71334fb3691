package telemetry

import (
	"fmt"
	"os"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"

	"github.com/dormitory/backend/internal/infrastructure/config"
)

// profileTypes are the Pyroscope profiles collected for the service.
// Mutex and block profiles need runtime sampling and are left off.
var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
}

// Profiler is a stoppable Pyroscope session
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	once     sync.Once
}

// StartProfiler starts continuous profiling when cfg.ProfilingEnabled is set.
// A disabled profiler is returned otherwise; Stop on it is a no-op.
func StartProfiler(cfg config.TelemetryConfig, logger *zap.Logger) (*Profiler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Profiler{logger: logger.Named("pyroscope")}
	if !cfg.ProfilingEnabled {
		return p, nil
	}
	if cfg.ProfilingServerURL == "" {
		return nil, fmt.Errorf("profiling server URL is required when profiling is enabled")
	}

	tags := map[string]string{}
	if hostname, err := os.Hostname(); err == nil {
		tags["hostname"] = hostname
	}

	prof, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.ProfilingServerURL,
		Logger:          p.logger.Sugar(),
		Tags:            tags,
		ProfileTypes:    profileTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.profiler = prof

	p.logger.Info("Profiler started",
		zap.String("server_address", cfg.ProfilingServerURL),
		zap.String("application_name", cfg.ServiceName),
	)
	return p, nil
}

// Enabled reports whether profiles are being sent
func (p *Profiler) Enabled() bool {
	return p != nil && p.profiler != nil
}

// Stop flushes pending profiles. It is safe to call more than once.
func (p *Profiler) Stop() error {
	if !p.Enabled() {
		return nil
	}
	var err error
	p.once.Do(func() {
		if stopErr := p.profiler.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop profiler: %w", stopErr)
		}
	})
	return err
}
