package httpclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// New returns the client used for outbound calls to upstream services.
// headerTimeout bounds the wait for response headers only, so long
// streamed bodies are governed by the request context.
func New(headerTimeout time.Duration, log *zap.Logger) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = headerTimeout
	return &http.Client{
		Transport: &loggingTransport{base: base, log: log},
	}
}

// loggingTransport logs upstream failures.
type loggingTransport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.log.Warn("upstream request failed",
			zap.String("method", req.Method),
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		t.log.Error("upstream request failed",
			zap.String("method", req.Method),
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("latency", time.Since(start)))
	}
	return resp, nil
}
