package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryBatch LogCategory = "batch" // batch lifecycle events (JSON)
	CategoryError LogCategory = "error" // application errors (JSON)
)

// EventLogger writes categorized JSON event logs to per-day files.
// It records batch lifecycle events (batch_started, item_failed,
// batch_completed, ...) separately from application errors.
type EventLogger struct {
	loggers map[LogCategory]*zap.Logger
	config  EventLoggerConfig
	mu      sync.RWMutex
}

// EventLoggerConfig contains configuration for the event logger
type EventLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // directory for log files
}

// NewEventLogger creates a new categorized event logger
func NewEventLogger(config EventLoggerConfig) (*EventLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}
	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	el := &EventLogger{
		loggers: make(map[LogCategory]*zap.Logger),
		config:  config,
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	batchLogger, err := el.createStructuredLogger(CategoryBatch, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch logger: %w", err)
	}
	el.loggers[CategoryBatch] = batchLogger

	errorLogger, err := el.createStructuredLogger(CategoryError, zapcore.ErrorLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create error logger: %w", err)
	}
	el.loggers[CategoryError] = errorLogger

	return el, nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (el *EventLogger) createStructuredLogger(category LogCategory, level zapcore.Level) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	syncer := newDailyFileSyncer(el.config.LogsDir, category)
	if err := syncer.rotate(); err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, syncer, level)
	return zap.New(core), nil
}

// dailyFileSyncer appends to {category}-{yyyymmdd}.log, reopening the
// file when the date rolls over so a long-running server does not keep
// writing to the previous day's file
type dailyFileSyncer struct {
	mu       sync.Mutex
	dir      string
	category LogCategory
	now      func() time.Time
	date     string
	file     *os.File
}

func newDailyFileSyncer(dir string, category LogCategory) *dailyFileSyncer {
	return &dailyFileSyncer{
		dir:      dir,
		category: category,
		now:      time.Now,
	}
}

func (s *dailyFileSyncer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rotateLocked(); err != nil {
		return 0, err
	}
	return s.file.Write(p)
}

func (s *dailyFileSyncer) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

func (s *dailyFileSyncer) rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotateLocked()
}

func (s *dailyFileSyncer) rotateLocked() error {
	date := s.now().Format("20060102")
	if s.file != nil && date == s.date {
		return nil
	}
	if s.file != nil {
		s.file.Close()
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.log", s.category, date))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	s.file = file
	s.date = date
	return nil
}

// GetLogger returns the structured logger for a specific category
func (el *EventLogger) GetLogger(category LogCategory) *zap.Logger {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if logger, ok := el.loggers[category]; ok {
		return logger
	}
	return el.loggers[CategoryError]
}

// LogBatchEvent logs a batch lifecycle event with structured data
func (el *EventLogger) LogBatchEvent(event string, fields ...zap.Field) {
	el.GetLogger(CategoryBatch).Info(event, fields...)
}

// LogAppError logs an application-level error
func (el *EventLogger) LogAppError(msg string, fields ...zap.Field) {
	el.GetLogger(CategoryError).Error(msg, fields...)
}

// Sync flushes all loggers
func (el *EventLogger) Sync() error {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var lastErr error
	for _, logger := range el.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
