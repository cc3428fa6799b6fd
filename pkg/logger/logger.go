package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/zscreen/pkg/config"
)

// dateLayout matches the trading date keys used across the stores
const dateLayout = "2006-01-02"

// Logger is a structured logger wrapper around zerolog
// ⭐ SSOT: 모든 로깅은 이 패키지를 통해서만 수행
type Logger struct {
	zlog zerolog.Logger
}

// New builds the process logger from config.
// Entries go to stderr so tables and CSV on stdout stay machine-readable.
// LOG_FILE additionally receives every entry as JSON lines; when the file
// cannot be opened the logger keeps stderr only and says so once.
// ⭐ SSOT: zerolog 인스턴스는 여기서만 생성
func New(cfg *config.Config) *Logger {
	sink, fileErr := sinks(cfg)
	zerolog.SetGlobalLevel(parseLogLevel(cfg.LogLevel))

	l := &Logger{zlog: zerolog.New(sink).With().Timestamp().Str("env", cfg.Env).Logger()}
	if fileErr != nil {
		l.WithError(fileErr).WithField("path", cfg.LogFile).Warn("Log file unavailable")
	}
	return l
}

// sinks assembles the writers selected by LOG_FORMAT and LOG_FILE
func sinks(cfg *config.Config) (io.Writer, error) {
	var console io.Writer = os.Stderr
	switch cfg.LogFormat {
	case "console", "pretty":
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	if cfg.LogFile == "" {
		return console, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return console, err
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return console, err
	}
	return zerolog.MultiLevelWriter(console, f), nil
}

// NewWithWriter creates a JSON logger writing to w (tests, log capture)
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{zlog: zerolog.New(w).With().Timestamp().Logger()}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// parseLogLevel maps LOG_LEVEL to a zerolog level; unknown values mean info
func parseLogLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

// Fatal logs msg and exits the process
func (l *Logger) Fatal(msg string) { l.zlog.Fatal().Msg(msg) }

// Infof and Warnf format like fmt.Sprintf
func (l *Logger) Infof(format string, args ...interface{}) { l.zlog.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{}) { l.zlog.Warn().Msgf(format, args...) }

func (l *Logger) with(ctx zerolog.Context) *Logger {
	return &Logger{zlog: ctx.Logger()}
}

// WithComponent tags every entry with the emitting component
func (l *Logger) WithComponent(name string) *Logger {
	return l.with(l.zlog.With().Str("component", name))
}

// WithRun tags entries of one batch run
func (l *Logger) WithRun(id string) *Logger {
	return l.with(l.zlog.With().Str("run_id", id))
}

// WithDate tags entries with a trading date as YYYY-MM-DD
func (l *Logger) WithDate(date time.Time) *Logger {
	return l.with(l.zlog.With().Str("date", date.Format(dateLayout)))
}

// WithSymbol tags entries with an instrument code
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.with(l.zlog.With().Str("symbol", symbol))
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(l.zlog.With().Interface(key, value))
}

// WithFields adds every entry of fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(l.zlog.With().Fields(fields))
}

// WithError attaches err under "error"; nil adds nothing
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with(l.zlog.With().Err(err))
}
