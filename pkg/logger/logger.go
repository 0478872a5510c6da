package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log   = zap.NewNop()
	Sugar = Log.Sugar()
)

// Init initializes the global logger configuration. The server logs JSON to stdout.
func Init(level string) {
	set(newCore(level, zapcore.AddSync(os.Stdout)))
}

// InitCLI is Init for the command line client: stdout belongs to command output,
// so logs go to stderr.
func InitCLI(level string) {
	set(newCore(level, zapcore.AddSync(os.Stderr)))
}

// InitNop discards all log output.
func InitNop() {
	Log = zap.NewNop()
	Sugar = Log.Sugar()
}

func newCore(level string, writer zapcore.WriteSyncer) zapcore.Core {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	return zapcore.NewCore(encoder, writer, lvl)
}

func set(core zapcore.Core) {
	Log = zap.New(core, zap.AddCaller())
	Sugar = Log.Sugar()
}
