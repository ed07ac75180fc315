// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Sugared = *zap.SugaredLogger

// New returns a production JSON logger for env "prod" and a development
// console logger otherwise.
func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		z, _ = cfg.Build()
	} else {
		z, _ = zap.NewDevelopment()
	}
	if z == nil {
		z = zap.NewNop()
	}
	return z.Sugar().Named("par")
}

// Nop discards everything; handy in tests.
func Nop() Sugared { return zap.NewNop().Sugar() }
