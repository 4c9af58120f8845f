package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds the process-wide logger. Dev gets colored console output;
// every other env gets sampled JSON with ISO-8601 timestamps. The service
// and env ride along on every entry so aggregated logs stay attributable.
func Init(service, env, level string) {
	cfg := buildConfig(env)

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	built, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic("logger init: " + err.Error())
	}

	log = built.With(
		zap.String("service", service),
		zap.String("env", env),
	)
	sugar = log.Sugar()
	sugar.Infow("logger initialized", "level", cfg.Level.String())
}

func buildConfig(env string) zap.Config {
	if env == "dev" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		return cfg
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	// burst protection for the hot quote path; the first entries per tick
	// always land
	cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}

// L returns the base structured logger.
func L() *zap.Logger {
	if log == nil {
		Init("unknown", "dev", "info")
	}
	return log
}

// S returns the sugared logger.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init("unknown", "dev", "info")
	}
	return sugar
}

// Sync flushes any buffered logs (defer this in main()).
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
