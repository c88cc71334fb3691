package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig tunes what GORM reports through zap.
type GormLoggerConfig struct {
	Level gormlogger.LogLevel
	// SlowThreshold of zero disables slow query warnings.
	SlowThreshold time.Duration
	// LogNotFound reports gorm.ErrRecordNotFound as an error. Off by
	// default since IPN lookups by unknown txn ref miss routinely.
	LogNotFound bool
}

// GormLogger routes GORM output into zap with request correlation fields.
// Individual statements are logged at debug, so enabling SQL tracing
// needs log.level=debug.
type GormLogger struct {
	logger *zap.Logger
	cfg    GormLoggerConfig
}

func NewGormLogger(zapLogger *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{logger: zapLogger.Named("gorm"), cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.cfg.Level = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Info, msg, args)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Warn, msg, args)
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Error, msg, args)
}

func (l *GormLogger) printf(ctx context.Context, level gormlogger.LogLevel, msg string, args []any) {
	if l.cfg.Level < level {
		return
	}
	log := l.logger.With(correlationFields(ctx)...)
	text := fmt.Sprintf(msg, args...)
	switch level {
	case gormlogger.Error:
		log.Error(text)
	case gormlogger.Warn:
		log.Warn(text)
	default:
		log.Info(text)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	if err != nil && !l.cfg.LogNotFound && errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold
	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
	case slow && l.cfg.Level >= gormlogger.Warn:
	case l.cfg.Level >= gormlogger.Info:
	default:
		return
	}

	stmt, rows := fc()
	fields := append(correlationFields(ctx),
		zap.String("sql", stmt),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
		l.logger.Error("SQL Error", append(fields, zap.Error(err))...)
	case slow && l.cfg.Level >= gormlogger.Warn:
		l.logger.Warn("Slow SQL", append(fields, zap.Duration("threshold", l.cfg.SlowThreshold))...)
	default:
		l.logger.Debug("SQL Query", fields...)
	}
}

// MapGormLogLevel converts log.level into a GORM level. Only debug turns on
// per-statement tracing.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
