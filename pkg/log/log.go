package log

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log atomic.Value

// NMOS severities, from the most verbose to the least verbose.
const (
	SeverityTooMuchInfo = -40
	SeverityMoreInfo    = -10
	SeverityInfo        = 0
	SeverityWarning     = 10
	SeverityError       = 20
	SeveritySevere      = 30
	SeverityFatal       = 40
)

// Config configuration for setup logging.
type Config struct {
	// Level is an NMOS severity in the range [-40, 40].
	Level int  `yaml:"level" json:"level" description:"logging level, between -40 (most verbose) and 40 (only fatal messages)"`
	Debug bool `yaml:"debug" json:"debug" description:"enable development encoder"`
}

func (c *Config) Validate() error {
	if c.Level < SeverityTooMuchInfo || c.Level > SeverityFatal {
		return fmt.Errorf("level('%v')", c.Level)
	}
	return nil
}

type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	With(args ...interface{}) Logger
}

// WrapSuggarLogger adapts zap's sugared logger to Logger and owns the
// atomic level shared by all loggers derived from it with With.
type WrapSuggarLogger struct {
	*zap.SugaredLogger
	level zap.AtomicLevel
}

func (l *WrapSuggarLogger) With(args ...interface{}) Logger {
	return &WrapSuggarLogger{
		SugaredLogger: l.SugaredLogger.With(args...),
		level:         l.level,
	}
}

// SetSeverity changes the level of the logger and of every logger derived from it.
func (l *WrapSuggarLogger) SetSeverity(severity int) {
	l.level.SetLevel(SeverityToLevel(severity))
}

func (l *WrapSuggarLogger) Level() zapcore.Level {
	return l.level.Level()
}

// LevelEnabler returns the level shared by the logger and the loggers derived from it.
func (l *WrapSuggarLogger) LevelEnabler() zapcore.LevelEnabler {
	return l.level
}

// Tee returns a logger which writes its entries to core too. Both loggers
// share the level.
func (l *WrapSuggarLogger) Tee(core zapcore.Core) *WrapSuggarLogger {
	logger := l.SugaredLogger.Desugar().WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	}))
	return &WrapSuggarLogger{
		SugaredLogger: logger.Sugar(),
		level:         l.level,
	}
}

// LevelToSeverity maps a zap level to an NMOS severity.
func LevelToSeverity(level zapcore.Level) int {
	switch {
	case level >= zapcore.PanicLevel:
		return SeverityFatal
	case level == zapcore.DPanicLevel:
		return SeveritySevere
	case level == zapcore.ErrorLevel:
		return SeverityError
	case level == zapcore.WarnLevel:
		return SeverityWarning
	case level == zapcore.InfoLevel:
		return SeverityInfo
	}
	return SeverityMoreInfo
}

// SeverityToLevel maps an NMOS severity to a zap level.
func SeverityToLevel(severity int) zapcore.Level {
	switch {
	case severity >= SeverityFatal:
		return zapcore.FatalLevel
	case severity >= SeveritySevere:
		return zapcore.DPanicLevel
	case severity >= SeverityError:
		return zapcore.ErrorLevel
	case severity >= SeverityWarning:
		return zapcore.WarnLevel
	case severity >= SeverityInfo:
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

func init() {
	logger, err := NewLogger(Config{})
	if err != nil {
		panic("Unable to create logger")
	}
	log.Store(logger)
}

// Setup changes log configuration for the application.
// Call ASAP in main after parse args/env.
func Setup(config Config) {
	if err := Build(config); err != nil {
		panic(err)
	}
}

// Set logger for global log fuctions
func Set(logger *WrapSuggarLogger) {
	log.Store(logger)
}

// NewLogger creates logger
func NewLogger(config Config) (*WrapSuggarLogger, error) {
	var cfg zap.Config
	if config.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(SeverityToLevel(config.Level))
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &WrapSuggarLogger{
		SugaredLogger: logger.Sugar(),
		level:         cfg.Level,
	}, nil
}

// Build is a panic-free version of Setup.
func Build(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return fmt.Errorf("logger creation failed: %w", err)
	}
	Set(logger)
	return nil
}

func Get() *WrapSuggarLogger {
	return log.Load().(*WrapSuggarLogger)
}

// Debug uses fmt.Sprint to construct and log a message.
func Debug(args ...interface{}) {
	Get().Debug(args...)
}

// Info uses fmt.Sprint to construct and log a message.
func Info(args ...interface{}) {
	Get().Info(args...)
}

// Warn uses fmt.Sprint to construct and log a message.
func Warn(args ...interface{}) {
	Get().Warn(args...)
}

// Error uses fmt.Sprint to construct and log a message.
func Error(args ...interface{}) {
	Get().Error(args...)
}

// Fatal uses fmt.Sprint to construct and log a message, then calls os.Exit.
func Fatal(args ...interface{}) {
	Get().Fatal(args...)
}

// Debugf uses fmt.Sprintf to log a templated message.
func Debugf(template string, args ...interface{}) {
	Get().Debugf(template, args...)
}

// Infof uses fmt.Sprintf to log a templated message.
func Infof(template string, args ...interface{}) {
	Get().Infof(template, args...)
}

// Warnf uses fmt.Sprintf to log a templated message.
func Warnf(template string, args ...interface{}) {
	Get().Warnf(template, args...)
}

// Errorf uses fmt.Sprintf to log a templated message.
func Errorf(template string, args ...interface{}) {
	Get().Errorf(template, args...)
}

// Fatalf uses fmt.Sprintf to log a templated message, then calls os.Exit.
func Fatalf(template string, args ...interface{}) {
	Get().Fatalf(template, args...)
}
