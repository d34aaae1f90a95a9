package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fatflowers/iptv-crm/pkg/config"
)

// New builds the process-wide sugared logger. Production config everywhere,
// dev only switches to a console encoder so local output stays readable.
func New(cfg *config.Config) (*zap.SugaredLogger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.TimeKey = "time"
	if cfg != nil {
		if cfg.Env == config.EnvDev {
			zc.Encoding = "console"
		}
		if cfg.LogLevel != "" {
			lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
			if err != nil {
				return nil, err
			}
			zc.Level = lvl
		}
	}
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().With("service", "iptv-crm"), nil
}

var Module = fx.Options(
	fx.Provide(New),
)
