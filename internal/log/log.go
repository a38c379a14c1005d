// Package log provides centralized logging functionality using zap logger.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// Init initializes the package-level logger
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	SetLogger(zapLogger)
	return nil
}

// SetLogger replaces the package-level logger, e.g. with zaptest or zap.NewNop in tests
func SetLogger(l *zap.Logger) {
	baseLogger = l
	log = l.Sugar()
}

// GetZapLogger returns the base zap logger for cases where it's needed (like GORM)
func GetZapLogger() *zap.Logger {
	if baseLogger == nil {
		// Fallback logger if not initialized
		l, _ := zap.NewProduction(zap.AddCallerSkip(1))
		SetLogger(l)
	}
	return baseLogger
}

// GetSugaredLogger returns the sugared logger instance
func GetSugaredLogger() *zap.SugaredLogger {
	GetZapLogger()
	return log
}

// Sync flushes any buffered log entries
func Sync() {
	if log != nil {
		log.Sync()
	}
}

// Package-level convenience functions
func Debug(args ...interface{}) {
	GetSugaredLogger().Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	GetSugaredLogger().Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	GetSugaredLogger().Info(args...)
}

func Infof(template string, args ...interface{}) {
	GetSugaredLogger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Infow(msg, keysAndValues...)
}

func Warn(args ...interface{}) {
	GetSugaredLogger().Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	GetSugaredLogger().Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Warnw(msg, keysAndValues...)
}

func Error(args ...interface{}) {
	GetSugaredLogger().Error(args...)
}

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Errorw(msg, keysAndValues...)
}

func Fatal(args ...interface{}) {
	GetSugaredLogger().Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...interface{}) {
	GetSugaredLogger().Fatalf(template, args...)
	os.Exit(1)
}
