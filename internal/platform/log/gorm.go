package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger forwards Gorm's query and driver messages to logrus.
type GormLogger struct {
	logger        *logrus.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger maps the logrus level onto Gorm's levels: debug traces every
// statement, info and warn report slow queries, error reports failures only.
func NewGormLogger(logger *logrus.Logger) *GormLogger {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
		return &GormLogger{logger: logger, level: gormlogger.Silent, slowThreshold: defaultSlowQuery}
	}

	level := gormlogger.Warn
	switch {
	case logger.IsLevelEnabled(logrus.DebugLevel):
		level = gormlogger.Info
	case !logger.IsLevelEnabled(logrus.WarnLevel):
		level = gormlogger.Error
	}

	return &GormLogger{logger: logger, level: level, slowThreshold: defaultSlowQuery}
}

// LogMode returns a copy using the given Gorm level.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.entry(ctx).Info(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.entry(ctx).Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.entry(ctx).Error(fmt.Sprintf(msg, args...))
	}
}

// Trace logs a finished statement. Missing records are not failures.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	fields := func() logrus.Fields {
		sql, rows := fc()
		return logrus.Fields{
			"sql":         sql,
			"rows":        rows,
			"duration_ms": float64(elapsed.Microseconds()) / 1000,
		}
	}

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		l.entry(ctx).WithFields(fields()).WithField("error", err.Error()).Error("query failed")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.entry(ctx).WithFields(fields()).Warn("slow query")
	case l.level >= gormlogger.Info:
		l.entry(ctx).WithFields(fields()).Debug("query executed")
	}
}

func (l *GormLogger) entry(ctx context.Context) *logrus.Entry {
	return Component(l.logger, "gorm").WithContext(ctx)
}
