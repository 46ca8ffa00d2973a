package logger

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taskmaster/tracker/internal/infrastructure/config"
)

// Logger wraps zap.SugaredLogger with the tracker's event helpers
type Logger struct {
	*zap.SugaredLogger
}

// New builds a logger from configuration. Format "json" selects zap's
// production encoder; anything else the development console encoder.
func New(cfg config.LoggerConfig) (*Logger, error) {
	zapConfig, err := zapConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	zapLogger, err := zapConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

func zapConfigFor(cfg config.LoggerConfig) (zap.Config, error) {
	zapConfig := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("invalid log level: %w", err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	// errors always reach stderr unless everything goes to a file
	switch {
	case cfg.Output == "file" && cfg.Filename != "":
		zapConfig.OutputPaths = []string{cfg.Filename}
		zapConfig.ErrorOutputPaths = []string{cfg.Filename}
	case cfg.Output == "stderr":
		zapConfig.OutputPaths = []string{"stderr"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	default:
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}
	return zapConfig, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// WithFields adds structured fields to the logger
func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(fields...)}
}

// WithComponent tags every entry with the emitting component
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// LogUserAction records a successful state change made by a user
func (l *Logger) LogUserAction(userID, action string, metadata map[string]interface{}) {
	fields := append([]interface{}{"user_id", userID, "action", action}, sortedFields(metadata)...)
	l.Infow("User action", fields...)
}

// LogSecurityEvent records authentication and authorization failures.
// Empty user or ip values are left out.
func (l *Logger) LogSecurityEvent(event, userID, ip string, details map[string]interface{}) {
	fields := []interface{}{"security_event", event}
	if userID != "" {
		fields = append(fields, "user_id", userID)
	}
	if ip != "" {
		fields = append(fields, "ip", ip)
	}
	l.Warnw("Security event", append(fields, sortedFields(details)...)...)
}

// Close flushes any buffered log entries
func (l *Logger) Close() error {
	return l.SugaredLogger.Sync()
}

func sortedFields(m map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		fields = append(fields, k, m[k])
	}
	return fields
}
