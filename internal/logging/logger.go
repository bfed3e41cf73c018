package logging

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"exifai/internal/config"
)

// New builds a zap logger from cfg. Console format uses the development
// encoder, anything else the production JSON encoder. A non-empty logFile is
// added to the output paths.
func New(cfg config.LogConfig, logFile string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "logging: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	if logFile != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, logFile)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "logging: build logger")
	}
	return logger, nil
}

// Init builds the logger and installs it as the zap global.
func Init(cfg config.LogConfig, logFile string) (*zap.Logger, error) {
	logger, err := New(cfg, logFile)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Measure returns a stop function that logs the elapsed time when called.
func Measure(logger *zap.Logger, label string) func() {
	if logger == nil || !logger.Core().Enabled(zapcore.DebugLevel) {
		return func() {}
	}
	start := time.Now()
	return func() {
		logger.Debug(label, zap.Duration("took", time.Since(start).Round(time.Millisecond)))
	}
}
