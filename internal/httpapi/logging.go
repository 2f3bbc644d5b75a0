package httpapi

import (
	"bytes"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

var zlog = zerolog.Nop()

// SetLogger installs the structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "http").Logger() }

// loggingLineWriter logs complete NDJSON lines at debug level.
type loggingLineWriter struct {
	buf []byte
	rid string
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		if idx > 0 {
			zlog.Debug().Str("request_id", lw.rid).RawJSON("line", lw.buf[:idx]).Msg("chat>")
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// read once; ESSAYLENS_HTTP_LOG selects the level for requests without an override
var defaultLogLevel = parseLevel(os.Getenv("ESSAYLENS_HTTP_LOG"))

// SetDefaultLogLevel sets the level used when a request carries no override.
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// callLog writes the start and end lines of one chat call at the request's
// log level.
type callLog struct {
	lvl  LogLevel
	path string
	rid  string
}

func newCallLog(r *http.Request) callLog {
	return callLog{lvl: requestLogLevel(r), path: r.URL.Path, rid: middleware.GetReqID(r.Context())}
}

func (c callLog) start(task string, stream bool) {
	if c.lvl < LevelInfo {
		return
	}
	zlog.Info().Str("path", c.path).Str("request_id", c.rid).Str("task", task).Bool("stream", stream).Msg("chat start")
}

func (c callLog) end(status int, dur float64, err error) {
	switch {
	case err != nil && c.lvl >= LevelError:
		zlog.Error().Str("path", c.path).Str("request_id", c.rid).Int("status", status).Float64("dur_s", dur).Err(err).Msg("chat end")
	case err == nil && c.lvl >= LevelInfo:
		zlog.Info().Str("path", c.path).Str("request_id", c.rid).Int("status", status).Float64("dur_s", dur).Msg("chat end")
	}
}
