package logger

import (
	"os"

	"go.uber.org/zap"
)

// NewLogger пишет одновременно в stdout и ./logs/app.log.
func NewLogger() *zap.Logger {
	outputs := []string{"stdout"}
	if err := os.MkdirAll("./logs", 0o755); err == nil {
		outputs = append(outputs, "./logs/app.log")
	}

	dualConfig := zap.Config{
		Encoding:         "console",
		Level:            zap.NewAtomicLevelAt(zap.DebugLevel),
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    zap.NewProductionEncoderConfig(),
	}

	dualLogger, err := dualConfig.Build()
	if err != nil {
		panic(err)
	}

	return dualLogger
}

// Named - дочерний логгер для отдельного модуля (workflow, notifications, http).
func Named(base *zap.Logger, module string) *zap.Logger {
	return base.Named(module)
}
