package idempotency

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":      code,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"path":      c.Request.URL.Path,
	})
}

// Middleware makes a mutating endpoint safe to retry: a request repeated with
// the same Idempotency-Key gets the stored response instead of being applied
// twice. Requests without the header pass through untouched. Server errors
// are not stored, so the retry runs again.
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}

		if err := ValidateKey(key, config.MaxKeyLength); err != nil {
			abort(c, http.StatusBadRequest, "IDEMPOTENCY_KEY_INVALID", fmt.Sprintf("invalid idempotency key: %v", err))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		fingerprint := ComputeFingerprint(body)

		ctx := c.Request.Context()
		now := time.Now().UTC()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		rec := &Record{
			ID:                 RecordID(config.ServiceName, c.Request.Method, c.Request.URL.Path, key),
			Key:                key,
			ServiceID:          config.ServiceName,
			RequestPath:        c.Request.URL.Path,
			RequestMethod:      c.Request.Method,
			RequestFingerprint: fingerprint,
			CreatedAt:          now,
			ExpiresAt:          now.Add(config.RetentionPeriod),
		}

		logger := config.Logger.WithContext(ctx).With("idempotencyKey", key, "path", c.Request.URL.Path)

		stored, isNew, err := config.Repository.AcquireLock(ctx, rec, config.LockTimeout)
		if err != nil {
			logger.Error("Failed to acquire idempotency lock", "error", err)
			abort(c, http.StatusServiceUnavailable, "IDEMPOTENCY_STORAGE_UNAVAILABLE", "idempotency storage is temporarily unavailable")
			return
		}

		if !isNew {
			if stored.RequestFingerprint != fingerprint {
				logger.Warn("Idempotency key reused with a different payload")
				abort(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_PARAMETER_MISMATCH", "request differs from the original request with this idempotency key")
				return
			}
			if stored.IsCompleted() {
				logger.Info("Replaying stored response", "statusCode", stored.ResponseCode)
				if config.Metrics != nil {
					config.Metrics.RecordIdempotentReplay(path)
				}
				for k, v := range stored.ResponseHeaders {
					c.Header(k, v)
				}
				c.Header(HeaderReplayed, "true")
				c.Data(stored.ResponseCode, "application/json; charset=utf-8", stored.ResponseBody)
				c.Abort()
				return
			}
			abort(c, http.StatusConflict, "IDEMPOTENCY_CONCURRENT_REQUEST", "a request with this idempotency key is currently being processed")
			return
		}

		writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError || writer.body.Len() > config.MaxResponseSize {
			if err := config.Repository.ReleaseLock(ctx, rec.ID); err != nil {
				logger.Error("Failed to release idempotency lock", "error", err)
			}
			return
		}

		headers := make(map[string]string)
		for k, v := range writer.Header() {
			if len(v) > 0 && k != "Content-Length" {
				headers[k] = v[0]
			}
		}
		if err := config.Repository.StoreResponse(ctx, rec.ID, status, writer.body.Bytes(), headers); err != nil {
			logger.Error("Failed to store idempotent response", "error", err)
		}
	}
}
