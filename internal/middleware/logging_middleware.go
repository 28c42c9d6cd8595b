package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/tileworld/internal/logging"
)

// TraceIDKey ключ gin.Context, под которым лежит trace-id запроса
const TraceIDKey = "trace_id"

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет краткие логи.
// Пути из quiet пишутся на уровне DEBUG, чтобы опрос /metrics не засорял лог.
type RequestLogger struct {
	logger *logging.Logger
	quiet  map[string]bool
}

func NewRequestLogger(logger *logging.Logger, quiet ...string) *RequestLogger {
	rl := &RequestLogger{logger: logger, quiet: make(map[string]bool, len(quiet))}
	for _, p := range quiet {
		rl.quiet[p] = true
	}
	return rl
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// otelgin стоит раньше, поэтому span уже создан
		span := trace.SpanFromContext(c.Request.Context())
		var traceID string
		if span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		} else {
			traceID = uuid.NewString()
		}
		c.Set(TraceIDKey, traceID)

		start := time.Now()
		path := routePath(c)

		c.Next()

		logf := rl.logger.Info
		if rl.quiet[path] {
			logf = rl.logger.Debug
		}
		logf("[HTTP] %s %s %d %s ip=%s trace=%s",
			c.Request.Method, path, c.Writer.Status(), time.Since(start), c.ClientIP(), traceID)
	}
}

// routePath шаблон маршрута, а для несовпавших запросов - сырой путь
func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}
