package metrics

import (
	"context"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// retryableHTTPLogger adapts zap.Logger to retryablehttp.LeveledLogger.
type retryableHTTPLogger struct {
	inner *zap.Logger
}

func (r retryableHTTPLogger) Error(format string, args ...any) {
	r.inner.Sugar().Errorw(format, args...)
}

func (r retryableHTTPLogger) Info(format string, args ...any) {
	r.inner.Sugar().Infow(format, args...)
}

func (r retryableHTTPLogger) Warn(format string, args ...any) {
	r.inner.Sugar().Warnw(format, args...)
}

func (r retryableHTTPLogger) Debug(format string, args ...any) {
	r.inner.Sugar().Debugw(format, args...)
}

// PushOpt configures Push.
type PushOpt func(*pushConfig)

type pushConfig struct {
	gatherer prometheus.Gatherer
	retries  int
}

// WithGatherer pushes metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) PushOpt {
	return func(c *pushConfig) {
		c.gatherer = g
	}
}

// WithRetries sets how many times a failed push is retried within a period.
func WithRetries(n int) PushOpt {
	return func(c *pushConfig) {
		c.retries = n
	}
}

// Push periodically pushes metrics to a pushgateway at url until ctx is done.
// Push failures are logged and retried on the next period.
func Push(
	ctx context.Context,
	logger *zap.Logger,
	clock clockwork.Clock,
	url, instance string,
	period time.Duration,
	opts ...PushOpt,
) {
	cfg := pushConfig{gatherer: prometheus.DefaultGatherer, retries: 3}
	for _, opt := range opts {
		opt(&cfg)
	}
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.retries
	client.RetryWaitMax = period / 2
	client.Logger = retryableHTTPLogger{inner: logger}
	pusher := push.New(url, Namespace).
		Client(client.StandardClient()).
		Gatherer(cfg.gatherer).
		Grouping("instance", instance)
	ticker := clock.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := pusher.PushContext(ctx); err != nil {
				logger.Warn("failed to push metrics", zap.String("url", url), zap.Error(err))
			}
		}
	}
}
