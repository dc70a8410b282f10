package kvbench

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultLevel the default log level
	DefaultLevel = zapcore.InfoLevel

	// DefaultTimeLayout the default time layout
	DefaultTimeLayout = time.RFC3339
)

// Option custom setup config
type Option func(*option)

type option struct {
	level          zapcore.Level
	fields         map[string]string
	file           io.Writer
	timeLayout     string
	disableConsole bool
}

func WithLevel(level zapcore.Level) Option {
	return func(opt *option) {
		opt.level = level
	}
}

func WithDebugLevel() Option { return WithLevel(zapcore.DebugLevel) }

func WithWarnLevel() Option { return WithLevel(zapcore.WarnLevel) }

// WithField add some customize fields to logger
func WithField(key, value string) Option {
	return func(opt *option) {
		opt.fields[key] = value
	}
}

func WithTimeLayout(timeLayout string) Option {
	return func(opt *option) {
		opt.timeLayout = timeLayout
	}
}

func WithDisableConsole() Option {
	return func(opt *option) {
		opt.disableConsole = true
	}
}

// WithWriter sends every entry at or above the level to w as well.
func WithWriter(w io.Writer) Option {
	return func(opt *option) {
		opt.file = w
	}
}

// WithFileRotation write log with rotation, lumberjack creates the
// parent directory on first write.
func WithFileRotation(file string) Option {
	return WithWriter(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    128, // megabytes
		MaxBackups: 30,
		MaxAge:     30, // days
		LocalTime:  true,
		Compress:   true,
	})
}

// ParseLevel turns a level name such as "debug" into a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, err
	}
	return lvl, nil
}

// NewJSONLogger return a json-encoder zap logger. Info and warn entries go to
// stdout, error and above to stderr.
func NewJSONLogger(opts ...Option) (*zap.Logger, error) {
	opt := &option{level: DefaultLevel, fields: make(map[string]string)}
	for _, f := range opts {
		f(opt)
	}

	timeLayout := DefaultTimeLayout
	if opt.timeLayout != "" {
		timeLayout = opt.timeLayout
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "time",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format(timeLayout))
		},
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= opt.level && lvl < zapcore.ErrorLevel
	})
	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= opt.level && lvl >= zapcore.ErrorLevel
	})

	stdout := zapcore.Lock(os.Stdout)
	stderr := zapcore.Lock(os.Stderr)

	core := zapcore.NewTee()
	if !opt.disableConsole {
		core = zapcore.NewTee(
			zapcore.NewCore(jsonEncoder, stdout, lowPriority),
			zapcore.NewCore(jsonEncoder, stderr, highPriority),
		)
	}

	if opt.file != nil {
		core = zapcore.NewTee(core,
			zapcore.NewCore(jsonEncoder,
				zapcore.AddSync(opt.file),
				zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
					return lvl >= opt.level
				}),
			),
		)
	}

	log := zap.New(core,
		zap.AddCaller(),
		zap.ErrorOutput(stderr),
	)

	fields := make([]zap.Field, 0, len(opt.fields))
	for key, value := range opt.fields {
		fields = append(fields, zap.String(key, value))
	}
	if len(fields) > 0 {
		log = log.With(fields...)
	}
	return log, nil
}
