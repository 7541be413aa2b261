package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewLoggerParsesLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(" DEBUG ")
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	defaulted, err := NewLogger("")
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	if defaulted.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level by default, got %s", defaulted.GetLevel())
	}

	if _, err := NewLogger("chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestComponentTagsEntries(t *testing.T) {
	t.Parallel()

	logger, buf := bufferedLogger(t, "info")
	Component(logger, "articles.service").Info("hello")

	record := decodeLine(t, buf.String())
	if record["component"] != "articles.service" {
		t.Fatalf("expected component field, got %v", record)
	}
	if record["msg"] != "hello" {
		t.Fatalf("expected msg hello, got %v", record["msg"])
	}
}

func TestGormLoggerLevels(t *testing.T) {
	t.Parallel()

	debug, _ := bufferedLogger(t, "debug")
	if got := NewGormLogger(debug).level; got != gormlogger.Info {
		t.Fatalf("expected gorm info level for debug logger, got %v", got)
	}

	info, _ := bufferedLogger(t, "info")
	if got := NewGormLogger(info).level; got != gormlogger.Warn {
		t.Fatalf("expected gorm warn level for info logger, got %v", got)
	}

	errLogger, _ := bufferedLogger(t, "error")
	if got := NewGormLogger(errLogger).level; got != gormlogger.Error {
		t.Fatalf("expected gorm error level for error logger, got %v", got)
	}

	if got := NewGormLogger(nil).level; got != gormlogger.Silent {
		t.Fatalf("expected silent gorm logger without logrus logger, got %v", got)
	}
}

func TestGormLoggerTraceReportsFailures(t *testing.T) {
	t.Parallel()

	logger, buf := bufferedLogger(t, "info")
	gl := NewGormLogger(logger)

	statement := func() (string, int64) { return "SELECT 1", 0 }

	gl.Trace(context.Background(), time.Now(), statement, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("expected record-not-found to be ignored, got %q", buf.String())
	}

	gl.Trace(context.Background(), time.Now(), statement, errors.New("disk I/O error"))
	record := decodeLine(t, buf.String())
	if record["level"] != "error" || record["sql"] != "SELECT 1" || record["component"] != "gorm" {
		t.Fatalf("unexpected failure entry: %v", record)
	}

	buf.Reset()
	gl.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)
	record = decodeLine(t, buf.String())
	if record["msg"] != "slow query" {
		t.Fatalf("expected slow query warning, got %v", record)
	}

	buf.Reset()
	gl.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), statement, errors.New("boom"))
	if buf.Len() != 0 {
		t.Fatalf("expected silent mode to drop entries, got %q", buf.String())
	}
}

func TestInitSentryWithoutDSN(t *testing.T) {
	t.Parallel()

	hub, flush, err := InitSentry(logrus.New(), SentrySettings{})
	if err != nil {
		t.Fatalf("InitSentry returned error: %v", err)
	}
	if hub != nil {
		t.Fatalf("expected nil hub without DSN")
	}
	flush()
}

func TestInitSentryRejectsInvalidDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := InitSentry(logrus.New(), SentrySettings{DSN: "::not-a-dsn"}); err == nil {
		t.Fatalf("expected error for invalid DSN")
	}
}

func TestInitSentryAddsLogHook(t *testing.T) {
	t.Parallel()

	logger := logrus.New()
	hub, flush, err := InitSentry(logger, SentrySettings{DSN: "https://public@example.com/1", Environment: "test"})
	if err != nil {
		t.Fatalf("InitSentry returned error: %v", err)
	}
	if hub == nil {
		t.Fatalf("expected hub")
	}
	defer flush()

	if len(logger.Hooks[logrus.ErrorLevel]) != 1 {
		t.Fatalf("expected one error-level hook, got %d", len(logger.Hooks[logrus.ErrorLevel]))
	}
}

func bufferedLogger(t *testing.T, level string) (*logrus.Logger, *bytes.Buffer) {
	t.Helper()

	logger, err := NewLogger(level)
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	return logger, &buf
}

func decodeLine(t *testing.T, output string) map[string]interface{} {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(output), "\n")
	var record map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &record); err != nil {
		t.Fatalf("decoding log line %q: %v", output, err)
	}
	return record
}
