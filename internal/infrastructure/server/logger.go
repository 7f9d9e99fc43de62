package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
)

const requestIDHeader = "X-Request-Id"

var requestLog = slog.New(slog.NewTextHandler(os.Stderr, nil))

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// RequestLogger logs one line per request and stamps a request id on both
// the request and the response.
func RequestLogger(next http.Handler) http.Handler {
	return requestLogger(requestLog, next)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.Header.Get(requestIDHeader) == "" {
			r.Header.Set(requestIDHeader, uuid.NewString())
		}
		w.Header().Set(requestIDHeader, r.Header.Get(requestIDHeader))

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		attrs := requestAttributes(r, rec.status, time.Since(start))
		attrs = append(attrs, slog.Int("response_bytes", rec.bytes))
		logger.LogAttrs(r.Context(), determineLogLevel(rec.status), "request completed", attrs...)
	})
}

func determineLogLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func requestAttributes(r *http.Request, status int, duration time.Duration) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	}

	appendStringAttr(&attrs, "query", r.URL.RawQuery)
	appendStringAttr(&attrs, "peer_addr", r.RemoteAddr)
	appendStringAttr(&attrs, "protocol", r.Proto)

	header := r.Header
	appendStringAttr(&attrs, "user_agent", header.Get("User-Agent"))
	appendStringAttr(&attrs, "request_id", header.Get(requestIDHeader))
	appendStringAttr(&attrs, "client_ip", firstForwardedFor(header))
	appendStringAttr(&attrs, "content_type", header.Get("Content-Type"))
	appendStringAttr(&attrs, "accept", header.Get("Accept"))

	attrs = append(attrs, slog.Int("request_header_count", headerCount(header)))
	if cl := contentLength(header); cl >= 0 {
		attrs = append(attrs, slog.Int("request_bytes", cl))
	}
	return attrs
}

func appendStringAttr(attrs *[]slog.Attr, key, value string) {
	if value == "" {
		return
	}
	*attrs = append(*attrs, slog.String(key, value))
}

func firstForwardedFor(header http.Header) string {
	forwarded := header.Get("X-Forwarded-For")
	if forwarded == "" {
		return ""
	}
	for _, part := range strings.Split(forwarded, ",") {
		if candidate := strings.TrimSpace(part); candidate != "" {
			return candidate
		}
	}
	return ""
}

func headerCount(header http.Header) int {
	count := 0
	for key := range header {
		count += len(header[key])
	}
	return count
}

func contentLength(header http.Header) int {
	if header == nil {
		return -1
	}
	if cl := header.Get("Content-Length"); cl != "" {
		if parsed, err := strconv.Atoi(cl); err == nil {
			return parsed
		}
	}
	return -1
}

// NewLogger builds a configured logrus logger from application config.
func NewLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}
