package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/roprofile/internal/setup/config"
	"github.com/robalyx/roprofile/internal/setup/telemetry/logger"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sessionLayout names each session directory.
const sessionLayout = "2006-01-02_15-04-05"

// Manager handles the creation and management of log files and directories.
// Each run writes into its own timestamped session directory.
type Manager struct {
	instanceID        string              // Unique identifier for this program instance
	componentName     string              // Component identifier for this instance
	currentSessionDir string              // Path to the current session's log directory
	logDir            string              // Base directory for all logs
	level             string              // Logging level (debug, info, warn, error)
	maxLogsToKeep     int                 // Maximum number of log sessions to retain
	maxLogLines       int                 // Maximum number of lines to keep in each log file
	stderr            zapcore.WriteSyncer // Optional console output
	tracing           bool                // Whether error logs are forwarded as spans
	files             []*logger.LogRotator
}

// NewManager creates a new Manager instance.
func NewManager(componentName, logDir string, debugCfg *config.Debug) *Manager {
	manager := &Manager{
		instanceID:    uuid.New().String(),
		componentName: componentName,
		logDir:        logDir,
		level:         debugCfg.LogLevel,
		maxLogsToKeep: debugCfg.MaxLogsToKeep,
		maxLogLines:   debugCfg.MaxLogLines,
	}

	if debugCfg.LogToStderr {
		manager.stderr = zapcore.Lock(os.Stderr)
	}

	return manager
}

// EnableTracing configures the OpenTelemetry exporter. It must be called
// before GetLogger for error logs to be forwarded as spans.
func (lm *Manager) EnableTracing(cfg *config.Telemetry, version string) {
	if !cfg.Enabled || cfg.DSN == "" {
		return
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.DSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(version),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
		uptrace.WithResourceAttributes(
			instanceAttribute(lm.instanceID),
			componentAttribute(lm.componentName),
		),
	)
	lm.tracing = true
}

// Stop flushes pending spans and closes the log files.
func (lm *Manager) Stop(ctx context.Context) {
	if lm.tracing {
		_ = uptrace.Shutdown(ctx)
	}

	for _, file := range lm.files {
		_ = file.Sync()
		_ = file.Close()
	}
	lm.files = nil
}

// GetLogger initializes the main application logger.
func (lm *Manager) GetLogger() (*zap.Logger, error) {
	if err := lm.setupLogDirectories(); err != nil {
		return nil, err
	}

	mainLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, lm.componentName+".log"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	return mainLogger.With(zap.String("instance", lm.instanceID)), nil
}

// GetCurrentSessionDir returns the current session directory.
func (lm *Manager) GetCurrentSessionDir() string {
	return lm.currentSessionDir
}

// GetInstanceID returns the unique instance identifier for this program run.
func (lm *Manager) GetInstanceID() string {
	return lm.instanceID
}

// setupLogDirectories ensures the base directory exists, rotates old logs,
// and creates a new session directory.
func (lm *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(lm.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	// Leave room for the session about to be created
	if err := lm.rotateLogSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	lm.currentSessionDir = filepath.Join(lm.logDir, time.Now().Format(sessionLayout))
	if err := os.MkdirAll(lm.currentSessionDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	return nil
}

// initLogger creates a zap logger writing to a line-capped file, stderr
// and the span core when each is enabled.
func (lm *Manager) initLogger(path string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(lm.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	rotator := logger.NewLogRotator(file, lm.maxLogLines, path)
	lm.files = append(lm.files, rotator)

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(rotator),
			zapLevel,
		),
	}

	if lm.stderr != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			lm.stderr,
			zapLevel,
		))
	}

	if lm.tracing {
		cores = append(cores, NewCore(zapcore.ErrorLevel))
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// rotateLogSessions removes the oldest sessions so that, together with the
// session about to be created, at most maxLogsToKeep remain.
func (lm *Manager) rotateLogSessions() error {
	if lm.maxLogsToKeep <= 0 {
		return nil
	}

	sessions, err := filepath.Glob(filepath.Join(lm.logDir, "*"))
	if err != nil {
		return err
	}

	if len(sessions) < lm.maxLogsToKeep {
		return nil
	}

	// Sort sessions by modification time (oldest first)
	sort.Slice(sessions, func(i, j int) bool {
		iInfo, _ := os.Stat(sessions[i])
		jInfo, _ := os.Stat(sessions[j])

		return iInfo.ModTime().Before(jInfo.ModTime())
	})

	toDelete := len(sessions) - lm.maxLogsToKeep + 1
	for i := range toDelete {
		if err := os.RemoveAll(sessions[i]); err != nil {
			return err
		}
	}

	return nil
}
